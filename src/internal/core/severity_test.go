// FILE: logveil/src/internal/core/severity_test.go
package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSeverity(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected Severity
		wantErr  bool
	}{
		{"Debug", "debug", SeverityDebug, false},
		{"Info", "info", SeverityInfo, false},
		{"Warn", "warn", SeverityWarn, false},
		{"WarningAlias", "warning", SeverityWarn, false},
		{"Error", "error", SeverityError, false},
		{"ErrAlias", "err", SeverityError, false},
		{"MixedCase", "WaRn", SeverityWarn, false},
		{"Padded", "  info  ", SeverityInfo, false},
		{"Unknown", "verbose", SeverityError, true},
		{"Empty", "", SeverityError, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sev, err := ParseSeverity(tc.input)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSeverity)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.expected, sev)
		})
	}
}

func TestSeverityOrdering(t *testing.T) {
	assert.True(t, SeverityDebug < SeverityInfo)
	assert.True(t, SeverityInfo < SeverityWarn)
	assert.True(t, SeverityWarn < SeverityError)
}

func TestSeverityString(t *testing.T) {
	assert.Equal(t, "debug", SeverityDebug.String())
	assert.Equal(t, "info", SeverityInfo.String())
	assert.Equal(t, "warn", SeverityWarn.String())
	assert.Equal(t, "error", SeverityError.String())
	assert.Equal(t, "severity(9)", Severity(9).String())
	assert.False(t, Severity(9).Valid())
}
