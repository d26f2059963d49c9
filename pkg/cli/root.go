// Package cli provides the sqlconnector command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	// Register datasource adapters
	_ "github.com/ekaya-inc/ekaya-sql-connector/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/ekaya-sql-connector/pkg/adapters/datasource/postgres"
	_ "github.com/ekaya-inc/ekaya-sql-connector/pkg/adapters/datasource/sqlite"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/config"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	version    string
	configPath string
	verbose    bool
}

// NewRootCmd creates and returns the root command.
func NewRootCmd(version string) *cobra.Command {
	opts := &globalOptions{version: version}

	rootCmd := &cobra.Command{
		Use:   "sqlconnector",
		Short: "SQL connector metadata engine",
		Long: `sqlconnector parses connector SQL statements with named parameters,
rewrites them for the target driver and derives JSON schemas for their
inputs and outputs from a live datasource.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: ./"+config.DefaultPath+", environment only if absent)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(newVersionCommand(version))
	rootCmd.AddCommand(newServeCommand(opts))
	rootCmd.AddCommand(newDescribeCommand(opts))
	rootCmd.AddCommand(newProceduresCommand(opts))

	return rootCmd
}

func newVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "sqlconnector %s\n", version)
		},
	}
}

// loadConfig reads the --config file, then ./config.yaml, and falls back to
// environment variables when neither exists.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	if o.configPath != "" {
		return config.LoadFile(o.configPath, o.version)
	}
	if _, err := os.Stat(config.DefaultPath); err == nil {
		return config.Load(o.version)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat %s: %w", config.DefaultPath, err)
	}
	return config.LoadEnv(o.version)
}

// newLogger writes to w so that command output on stdout stays parseable.
// Local environments get the console encoder, everything else JSON.
func (o *globalOptions) newLogger(cfg *config.Config, w io.Writer) *zap.Logger {
	level := zapcore.InfoLevel
	if o.verbose {
		level = zapcore.DebugLevel
	}

	var encoder zapcore.Encoder
	if cfg.Env == "local" {
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(w)), level)
	return zap.New(core, zap.AddCaller()).With(
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
	)
}
