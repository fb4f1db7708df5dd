package monitor

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Thresholds holds the static classification thresholds. Zero values are
// filled from defaults on load; see DefaultThresholds for the shipped values.
type Thresholds struct {
	// MinSampleSize is the minimum record count in the current window for
	// classification to run at all.
	MinSampleSize int `yaml:"min_sample_size"`

	// DeliveryRateWarn raises low_delivery_rate below this percentage;
	// DeliveryRateCritical makes it critical.
	DeliveryRateWarn     float64 `yaml:"delivery_rate_warn"`
	DeliveryRateCritical float64 `yaml:"delivery_rate_critical"`

	// FailureRateWarn raises high_failure_rate above this percentage;
	// FailureRateCritical makes it critical.
	FailureRateWarn     float64 `yaml:"failure_rate_warn"`
	FailureRateCritical float64 `yaml:"failure_rate_critical"`

	// ErrorPatternCount raises error_pattern when one error string occurs at
	// least this many times; above ErrorPatternHighCount the severity is high.
	ErrorPatternCount     int `yaml:"error_pattern_count"`
	ErrorPatternHighCount int `yaml:"error_pattern_high_count"`

	// DropPoints raises sudden_drop when the delivery rate fell by at least
	// this many percentage points versus the previous window;
	// DropPointsCritical makes it critical.
	DropPoints         float64 `yaml:"drop_points"`
	DropPointsCritical float64 `yaml:"drop_points_critical"`
}

// DefaultThresholds returns the shipped threshold values.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSampleSize:         10,
		DeliveryRateWarn:      85,
		DeliveryRateCritical:  70,
		FailureRateWarn:       15,
		FailureRateCritical:   30,
		ErrorPatternCount:     5,
		ErrorPatternHighCount: 10,
		DropPoints:            20,
		DropPointsCritical:    30,
	}
}

// FillDefaults replaces zero values with defaults.
func (t *Thresholds) FillDefaults() {
	d := DefaultThresholds()
	if t.MinSampleSize == 0 {
		t.MinSampleSize = d.MinSampleSize
	}
	if t.DeliveryRateWarn == 0 {
		t.DeliveryRateWarn = d.DeliveryRateWarn
	}
	if t.DeliveryRateCritical == 0 {
		t.DeliveryRateCritical = d.DeliveryRateCritical
	}
	if t.FailureRateWarn == 0 {
		t.FailureRateWarn = d.FailureRateWarn
	}
	if t.FailureRateCritical == 0 {
		t.FailureRateCritical = d.FailureRateCritical
	}
	if t.ErrorPatternCount == 0 {
		t.ErrorPatternCount = d.ErrorPatternCount
	}
	if t.ErrorPatternHighCount == 0 {
		t.ErrorPatternHighCount = d.ErrorPatternHighCount
	}
	if t.DropPoints == 0 {
		t.DropPoints = d.DropPoints
	}
	if t.DropPointsCritical == 0 {
		t.DropPointsCritical = d.DropPointsCritical
	}
}

// Validate checks threshold consistency.
func (t *Thresholds) Validate() error {
	if t.MinSampleSize < 1 {
		return fmt.Errorf("min_sample_size must be positive")
	}
	if t.DeliveryRateCritical > t.DeliveryRateWarn {
		return fmt.Errorf("delivery_rate_critical (%.1f) must not exceed delivery_rate_warn (%.1f)",
			t.DeliveryRateCritical, t.DeliveryRateWarn)
	}
	if t.FailureRateCritical < t.FailureRateWarn {
		return fmt.Errorf("failure_rate_critical (%.1f) must not be below failure_rate_warn (%.1f)",
			t.FailureRateCritical, t.FailureRateWarn)
	}
	if t.ErrorPatternHighCount < t.ErrorPatternCount {
		return fmt.Errorf("error_pattern_high_count (%d) must not be below error_pattern_count (%d)",
			t.ErrorPatternHighCount, t.ErrorPatternCount)
	}
	if t.DropPointsCritical < t.DropPoints {
		return fmt.Errorf("drop_points_critical (%.1f) must not be below drop_points (%.1f)",
			t.DropPointsCritical, t.DropPoints)
	}
	for name, v := range map[string]float64{
		"delivery_rate_warn":     t.DeliveryRateWarn,
		"delivery_rate_critical": t.DeliveryRateCritical,
		"failure_rate_warn":      t.FailureRateWarn,
		"failure_rate_critical":  t.FailureRateCritical,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%s must be a percentage between 0 and 100", name)
		}
	}
	return nil
}

// LoadThresholds loads thresholds from a YAML file, filling missing values
// with defaults.
func LoadThresholds(path string) (Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Thresholds{}, fmt.Errorf("read thresholds file: %w", err)
	}

	var t Thresholds
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Thresholds{}, fmt.Errorf("parse thresholds: %w", err)
	}

	t.FillDefaults()

	if err := t.Validate(); err != nil {
		return Thresholds{}, fmt.Errorf("validate thresholds: %w", err)
	}

	return t, nil
}
