package monitor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeThresholdsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write thresholds file: %v", err)
	}
	return path
}

func TestLoadThresholds(t *testing.T) {
	path := writeThresholdsFile(t, `
min_sample_size: 25
delivery_rate_warn: 90
delivery_rate_critical: 75
`)

	got, err := LoadThresholds(path)
	if err != nil {
		t.Fatalf("LoadThresholds: %v", err)
	}

	if got.MinSampleSize != 25 {
		t.Errorf("MinSampleSize = %d, want 25", got.MinSampleSize)
	}
	if got.DeliveryRateWarn != 90 {
		t.Errorf("DeliveryRateWarn = %.1f, want 90", got.DeliveryRateWarn)
	}
	// Unset fields fall back to defaults.
	if got.FailureRateWarn != 15 {
		t.Errorf("FailureRateWarn = %.1f, want default 15", got.FailureRateWarn)
	}
	if got.ErrorPatternCount != 5 {
		t.Errorf("ErrorPatternCount = %d, want default 5", got.ErrorPatternCount)
	}
}

func TestLoadThresholdsErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name:    "invalid yaml",
			content: "min_sample_size: [not a number",
			errMsg:  "parse thresholds",
		},
		{
			name: "critical above warn",
			content: `
delivery_rate_warn: 80
delivery_rate_critical: 90
`,
			errMsg: "delivery_rate_critical",
		},
		{
			name: "failure critical below warn",
			content: `
failure_rate_warn: 40
failure_rate_critical: 35
`,
			errMsg: "failure_rate_critical",
		},
		{
			name: "rate out of range",
			content: `
delivery_rate_warn: 120
`,
			errMsg: "between 0 and 100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeThresholdsFile(t, tt.content)
			_, err := LoadThresholds(path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestLoadThresholdsMissingFile(t *testing.T) {
	if _, err := LoadThresholds(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDefaultThresholdsValidate(t *testing.T) {
	d := DefaultThresholds()
	if err := d.Validate(); err != nil {
		t.Fatalf("default thresholds invalid: %v", err)
	}
}
