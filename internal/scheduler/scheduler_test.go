package scheduler

import (
	"context"
	"testing"
)

func TestDailySpecConvertsClockToCronFields(t *testing.T) {
	spec, err := dailySpec("03:30:15")
	if err != nil {
		t.Fatalf("dailySpec: %v", err)
	}
	if spec != "15 30 3 * * *" {
		t.Errorf("got %q, want %q", spec, "15 30 3 * * *")
	}
}

func TestDailySpecRejectsMalformed(t *testing.T) {
	for _, bad := range []string{"3:30", "24:00:00", "12:60:00", "12:00:60", "not:a:time"} {
		if _, err := dailySpec(bad); err == nil {
			t.Errorf("expected dailySpec(%q) to fail", bad)
		}
	}
}

func TestScheduleFullPushRejectsBadTimeOfDay(t *testing.T) {
	s := New(nil)
	if err := s.ScheduleFullPush("bad", func(ctx context.Context) {}); err == nil {
		t.Fatal("expected an error for a malformed time-of-day")
	}
}
