package config

import (
	"net"
	"os"
	"strings"
	"sync"
)

// DefaultDockerGateway is the name Docker Desktop resolves to the host machine.
const DefaultDockerGateway = "host.docker.internal"

var (
	dockerEnvPath  = "/.dockerenv"
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker reports whether the connector runs inside a Docker
// container, detected by the /.dockerenv marker file. The result is cached.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat(dockerEnvPath)
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker rewrites a loopback datasource host to the Docker host
// gateway when running in a container, so that a database listening on the
// developer's machine stays reachable. DOCKER_HOST_GATEWAY overrides the
// gateway name (Linux hosts often use the bridge address instead).
func ResolveHostForDocker(host string) string {
	return resolveHost(host, IsRunningInDocker(), os.Getenv("DOCKER_HOST_GATEWAY"))
}

func resolveHost(host string, inDocker bool, gateway string) string {
	if !inDocker || !isLoopback(host) {
		return host
	}
	if gateway == "" {
		gateway = DefaultDockerGateway
	}
	return gateway
}

func isLoopback(host string) bool {
	host = strings.Trim(host, "[]")
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
