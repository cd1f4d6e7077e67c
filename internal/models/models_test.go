package models_test

import (
	"testing"

	"carbonalert/internal/models"
)

func TestOpCompare(t *testing.T) {
	tests := []struct {
		op    models.Op
		value float64
		bound float64
		want  bool
	}{
		{models.OpLess, 49, 50, true},
		{models.OpLess, 50, 50, false},
		{models.OpLessEqual, 50, 50, true},
		{models.OpLessEqual, 51, 50, false},
		{models.OpGreater, 201, 200, true},
		{models.OpGreater, 200, 200, false},
		{models.OpGreaterEqual, 200, 200, true},
		{models.OpGreaterEqual, 199, 200, false},
	}

	for _, tt := range tests {
		got := tt.op.Compare(tt.value, tt.bound)
		if got != tt.want {
			t.Errorf("Compare(%v %s %v) = %v, want %v", tt.value, tt.op, tt.bound, got, tt.want)
		}
	}
}

func TestOpIsValid(t *testing.T) {
	for _, op := range []models.Op{models.OpLess, models.OpLessEqual, models.OpGreater, models.OpGreaterEqual} {
		if !op.IsValid() {
			t.Errorf("expected %q to be valid", op)
		}
	}
	for _, op := range []models.Op{"==", "!=", ">>", ""} {
		if op.IsValid() {
			t.Errorf("expected %q to be invalid", op)
		}
	}
}

func TestThresholdRuleValidate(t *testing.T) {
	valid := models.ThresholdRule{Level: "high", Op: models.OpGreater, Bound: 200}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid rule rejected: %v", err)
	}

	tests := []struct {
		name string
		rule models.ThresholdRule
	}{
		{"empty level", models.ThresholdRule{Op: models.OpGreater, Bound: 1}},
		{"reserved level unknown", models.ThresholdRule{Level: models.LevelUnknown, Op: models.OpGreater, Bound: 1}},
		{"reserved level normal", models.ThresholdRule{Level: models.LevelNormal, Op: models.OpGreater, Bound: 1}},
		{"bad operator", models.ThresholdRule{Level: "high", Op: "==", Bound: 1}},
	}

	for _, tt := range tests {
		if err := tt.rule.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestRegionIDLabels(t *testing.T) {
	if got := models.London.DefaultLabel(); got != "London" {
		t.Errorf("expected London, got %q", got)
	}
	if got := models.London.Code(); got != "13" {
		t.Errorf("expected code 13, got %q", got)
	}
	// Unknown ids fall back to the numeric code
	if got := models.RegionID(99).DefaultLabel(); got != "99" {
		t.Errorf("expected fallback label 99, got %q", got)
	}
}
