package config

import (
	"testing"
	"time"
)

func TestValidatePositiveDuration(t *testing.T) {
	if err := ValidatePositiveDuration(time.Second); err != nil {
		t.Errorf("positive duration should pass: %v", err)
	}
	if err := ValidatePositiveDuration(0); err == nil {
		t.Error("zero duration should fail")
	}
	if err := ValidatePositiveDuration(-time.Second); err == nil {
		t.Error("negative duration should fail")
	}
}

func TestValidateIntRange(t *testing.T) {
	if err := ValidateIntRange(5, 1, 10); err != nil {
		t.Errorf("in-range value should pass: %v", err)
	}
	if err := ValidateIntRange(1, 1, 10); err != nil {
		t.Errorf("lower bound is inclusive: %v", err)
	}
	if err := ValidateIntRange(10, 1, 10); err != nil {
		t.Errorf("upper bound is inclusive: %v", err)
	}
	if err := ValidateIntRange(0, 1, 10); err == nil {
		t.Error("below range should fail")
	}
	if err := ValidateIntRange(11, 1, 10); err == nil {
		t.Error("above range should fail")
	}
}

func TestValidateCronSchedule(t *testing.T) {
	valid := []string{"0 6 * * *", "*/10 * * * *", "30 5 * * 1-5"}
	for _, s := range valid {
		if err := ValidateCronSchedule(s); err != nil {
			t.Errorf("ValidateCronSchedule(%q) = %v, want nil", s, err)
		}
	}

	invalid := []string{"", "not a cron", "* * * *", "61 * * * *"}
	for _, s := range invalid {
		if err := ValidateCronSchedule(s); err == nil {
			t.Errorf("ValidateCronSchedule(%q) = nil, want error", s)
		}
	}
}

func TestValidateTimezone(t *testing.T) {
	for _, tz := range []string{"UTC", "Asia/Tokyo", "America/New_York"} {
		if err := ValidateTimezone(tz); err != nil {
			t.Errorf("ValidateTimezone(%q) = %v, want nil", tz, err)
		}
	}
	if err := ValidateTimezone("Not/AZone"); err == nil {
		t.Error("invalid timezone should fail")
	}
}
