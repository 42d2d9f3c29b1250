package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestGetEnvString(t *testing.T) {
	t.Setenv("TEST_STR", "value")
	if got := GetEnvString("TEST_STR", "default"); got != "value" {
		t.Errorf("got %q, want value", got)
	}
	if got := GetEnvString("TEST_STR_MISSING", "default"); got != "default" {
		t.Errorf("got %q, want default", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	if got := GetEnvInt("TEST_INT", 7); got != 42 {
		t.Errorf("got %d, want 42", got)
	}

	t.Setenv("TEST_INT_BAD", "not-a-number")
	if got := GetEnvInt("TEST_INT_BAD", 7); got != 7 {
		t.Errorf("invalid value should fall back, got %d", got)
	}

	if got := GetEnvInt("TEST_INT_MISSING", 7); got != 7 {
		t.Errorf("missing value should fall back, got %d", got)
	}
}

func TestGetEnvFloat(t *testing.T) {
	t.Setenv("TEST_FLOAT", "2.5")
	if got := GetEnvFloat("TEST_FLOAT", 1.0); got != 2.5 {
		t.Errorf("got %g, want 2.5", got)
	}
	t.Setenv("TEST_FLOAT_BAD", "x")
	if got := GetEnvFloat("TEST_FLOAT_BAD", 1.5); got != 1.5 {
		t.Errorf("invalid value should fall back, got %g", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	if !GetEnvBool("TEST_BOOL", false) {
		t.Error("got false, want true")
	}
	t.Setenv("TEST_BOOL_BAD", "maybe")
	if GetEnvBool("TEST_BOOL_BAD", false) {
		t.Error("invalid value should fall back to false")
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DUR", "300s")
	if got := GetEnvDuration("TEST_DUR", time.Minute); got != 300*time.Second {
		t.Errorf("got %v, want 300s", got)
	}
	t.Setenv("TEST_DUR_BAD", "five minutes")
	if got := GetEnvDuration("TEST_DUR_BAD", time.Minute); got != time.Minute {
		t.Errorf("invalid value should fall back, got %v", got)
	}
}

func TestGetEnvStringList(t *testing.T) {
	t.Setenv("TEST_LIST", "a, b ,c,,")
	got := GetEnvStringList("TEST_LIST", nil)
	want := []string{"a", "b", "c"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("list mismatch (-want +got):\n%s", diff)
	}
}

func TestGetEnvWeights(t *testing.T) {
	def := map[string]float64{"claude": 1.0}

	t.Setenv("TEST_WEIGHTS", "claude=0.5, openai=0.3")
	got := GetEnvWeights("TEST_WEIGHTS", def)
	want := map[string]float64{"claude": 0.5, "openai": 0.3}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("weights mismatch (-want +got):\n%s", diff)
	}

	// Malformed entries are dropped, valid ones kept.
	t.Setenv("TEST_WEIGHTS_PARTIAL", "claude=0.5,bogus,openai=-1")
	got = GetEnvWeights("TEST_WEIGHTS_PARTIAL", def)
	want = map[string]float64{"claude": 0.5}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("weights mismatch (-want +got):\n%s", diff)
	}

	// A fully malformed value falls back to the default.
	t.Setenv("TEST_WEIGHTS_BAD", "nonsense")
	got = GetEnvWeights("TEST_WEIGHTS_BAD", def)
	if diff := cmp.Diff(def, got); diff != "" {
		t.Errorf("weights mismatch (-want +got):\n%s", diff)
	}
}

func TestRequireEnv(t *testing.T) {
	t.Setenv("TEST_REQUIRED", "present")
	got, err := RequireEnv("TEST_REQUIRED")
	if err != nil || got != "present" {
		t.Errorf("RequireEnv = (%q, %v), want (present, nil)", got, err)
	}

	if _, err := RequireEnv("TEST_REQUIRED_MISSING"); err == nil {
		t.Error("missing required variable should error")
	}
}
