package classes

import (
	"testing"
	"time"
)

// dateAt builds a time.Time in a fixed zero-offset zone so the test's
// local-derived tokens (hour, minute, quarter, shift) are deterministic
// regardless of the machine's configured timezone.
func dateAt(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.FixedZone("test", 0))
}

// TestQuarterBucketFromMinute covers the fix for quarterBucket: quarters
// are derived from the minute-of-hour (minute/15), per
// original_source/src/timeout.c's AddTimeClass "Add quarters" switch, not
// from a six-hour-of-day split (that is the distinct shift token).
func TestQuarterBucketFromMinute(t *testing.T) {
	cases := []struct {
		minute int
		want   string
	}{
		{0, "Q1"}, {14, "Q1"},
		{15, "Q2"}, {29, "Q2"},
		{30, "Q3"}, {44, "Q3"},
		{45, "Q4"}, {59, "Q4"},
	}
	for _, tc := range cases {
		if got := quarterBucket(tc.minute); got != tc.want {
			t.Fatalf("quarterBucket(%d) = %q, want %q", tc.minute, got, tc.want)
		}
	}
}

func TestHourQuarterToken(t *testing.T) {
	if got := hourQuarterToken(9, "Q3"); got != "Hr09_Q3" {
		t.Fatalf("hourQuarterToken(9, Q3) = %q, want Hr09_Q3", got)
	}
	if got := hourQuarterToken(14, "Q1"); got != "Hr14_Q1" {
		t.Fatalf("hourQuarterToken(14, Q1) = %q, want Hr14_Q1", got)
	}
}

// TestSeedQuarterDistinctFromShift proves the two buckets no longer
// collapse to the same boundaries: an afternoon hour (shift=Afternoon,
// hour/6 split) paired with a minute in the second quarter-hour
// (quarter=Q2, minute/15 split) must set both independently, plus the
// combined Hr<hour>_Q<n> token and the five-minute bucket.
func TestSeedQuarterDistinctFromShift(t *testing.T) {
	c := NewContext()
	now := dateAt(2024, 3, 5, 14, 20)
	c.Seed(now)

	for _, want := range []string{"Q2", "Afternoon", "Hr14_Q2", "Min20_25", "Hr14"} {
		if !c.IsSet(want) {
			t.Fatalf("expected class %q to be set after Seed, got heap=%v", want, c.heap)
		}
	}
	if c.IsSet("Q3") || c.IsSet("Night") {
		t.Fatalf("unrelated quarter/shift tokens must not be set")
	}
}
