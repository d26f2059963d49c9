package sql

import (
	"fmt"
	"sort"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/models"
)

// InjectionCheckResult contains the result of an injection check on a sample value.
type InjectionCheckResult struct {
	ParamName   string // Name of the parameter whose sample failed the check
	Fingerprint string // libinjection fingerprint of the detected pattern
	Value       any
}

// Error implements error so a result can be returned directly.
func (r *InjectionCheckResult) Error() string {
	return fmt.Sprintf("sample value for %q looks like SQL injection (fingerprint %s)", r.ParamName, r.Fingerprint)
}

// CheckSampleValue uses libinjection to detect SQL injection patterns in one
// sample value. Only strings are checked; numbers and booleans cannot carry
// an injection. Returns nil when the value is clean.
func CheckSampleValue(paramName string, value any) *InjectionCheckResult {
	s, ok := value.(string)
	if !ok {
		return nil
	}
	if isSQLi, fingerprint := libinjection.IsSQLi(s); isSQLi {
		return &InjectionCheckResult{ParamName: paramName, Fingerprint: string(fingerprint), Value: value}
	}
	return nil
}

// CheckSampleValues validates the sample values supplied for a statement's
// parameters, in parameter order. Parameters without a sample are skipped.
func CheckSampleValues(params []models.Parameter) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for _, p := range params {
		if p.SampleValue == nil {
			continue
		}
		if r := CheckSampleValue(p.Name, p.SampleValue); r != nil {
			results = append(results, r)
		}
	}
	return results
}

// ApplySamples copies sample values onto the statement's parameters by name
// and rejects names that the statement does not use.
func ApplySamples(stmt *ParsedStatement, samples map[string]any) error {
	if len(samples) == 0 {
		return nil
	}
	var unknown []string
	for name := range samples {
		if _, ok := stmt.PositionsByName[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: sample values given for %s", apperrors.ErrUnknownParameter, strings.Join(unknown, ", "))
	}
	for i := range stmt.Parameters {
		if v, ok := samples[stmt.Parameters[i].Name]; ok {
			stmt.Parameters[i].SampleValue = v
		}
	}
	return nil
}
