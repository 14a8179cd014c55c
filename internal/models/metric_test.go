package models

import (
	"testing"
	"time"
)

func TestPeriodDuration(t *testing.T) {
	tests := []struct {
		period   Period
		expected time.Duration
	}{
		{PeriodHour, time.Hour},
		{PeriodDay, 24 * time.Hour},
		{PeriodWeek, 7 * 24 * time.Hour},
		{PeriodMonth, 30 * 24 * time.Hour},
		{Period("2h"), 0},
	}

	for _, tt := range tests {
		if got := tt.period.Duration(); got != tt.expected {
			t.Errorf("Period(%q).Duration() = %v, want %v", tt.period, got, tt.expected)
		}
	}
}

func TestPeriodValid(t *testing.T) {
	for _, p := range Periods() {
		if !p.Valid() {
			t.Errorf("Period(%q).Valid() = false, want true", p)
		}
	}
	if Period("fortnight").Valid() {
		t.Error("Period(\"fortnight\").Valid() = true, want false")
	}
	if Period("").Valid() {
		t.Error("empty period reported as valid")
	}
}
