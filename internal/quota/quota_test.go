package quota

import (
	"testing"
	"time"
)

func TestDecision_Remaining(t *testing.T) {
	tests := []struct {
		name string
		d    Decision
		want int
	}{
		{name: "untouched", d: Decision{SessionLimit: 30}, want: 30},
		{name: "partial", d: Decision{SessionLimit: 30, SessionCount: 12}, want: 18},
		{name: "exhausted", d: Decision{SessionLimit: 30, SessionCount: 30}, want: 0},
		{name: "never negative", d: Decision{SessionLimit: 30, SessionCount: 31}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.Remaining(); got != tt.want {
				t.Errorf("Remaining() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStore_Today_UTCBoundary(t *testing.T) {
	s := &Store{now: func() time.Time {
		// 23:30 in UTC-5 is already 04:30 the next day in UTC
		loc := time.FixedZone("UTC-5", -5*3600)
		return time.Date(2026, 3, 14, 23, 30, 0, 0, loc)
	}}

	got := s.today()
	want := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("today() = %v, want %v", got, want)
	}
}

func TestNewStore_Validation(t *testing.T) {
	if _, err := NewStore(nil, Limits{SessionDaily: 30, IPDaily: 1000}, nil); err == nil {
		t.Error("expected error for nil pool")
	}
}
