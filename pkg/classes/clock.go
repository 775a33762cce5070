package classes

import (
	"strconv"
	"time"
)

// minuteBucketLabels are the twelve five-minute-of-hour buckets, grounded
// on original_source/src/granules.c's GenTimeKey, which emits tokens of
// the form "MinNN_MM" for each five-minute slice of the hour.
var minuteBucketLabels = [12]string{
	"Min00_05", "Min05_10", "Min10_15", "Min15_20", "Min20_25", "Min25_30",
	"Min30_35", "Min35_40", "Min40_45", "Min45_50", "Min50_55", "Min55_00",
}

var shiftLabels = [4]string{"Night", "Morning", "Afternoon", "Evening"}

// Seed computes the wall-clock-derived class names of §4.6/C11 and adds
// them to the heap: day name, month name, year token, hour bucket, five-
// minute bucket, quarter-of-the-hour bucket (Q1..Q4 from minute/15), the
// combined Hr<hh>_Q<n> token, shift token, lifecycle token, plus the
// UTC-interpreted GMT_Hr auxiliary token.
func (c *Context) Seed(now time.Time) {
	local := now
	hour := local.Hour()
	minute := local.Minute()
	quarter := quarterBucket(minute)

	c.AddHeap(local.Weekday().String())
	c.AddHeap(local.Month().String())
	c.AddHeap(yearToken(local.Year()))
	c.AddHeap(hourBucket(hour))
	c.AddHeap(minuteBucketLabels[minute/5])
	c.AddHeap(quarter)
	c.AddHeap(hourQuarterToken(hour, quarter))
	c.AddHeap(shiftLabels[hour/6])
	c.AddHeap(lifecycleToken(local.Year()))

	gmt := now.UTC()
	c.AddHeap(gmtHourToken(gmt.Hour()))
}

func yearToken(year int) string {
	return "Yr" + strconv.Itoa(year)
}

func hourBucket(hour int) string {
	return "Hr" + pad2(hour)
}

func gmtHourToken(hour int) string {
	return "GMT_Hr" + pad2(hour)
}

// quarterBucket maps the minute-of-hour into one of four quarter-hour
// buckets Q1..Q4 (minute/15), per original_source/src/timeout.c's
// AddTimeClass ("Add quarters" switch on i/15, i the minute value) — not
// a six-hour-of-day split, which is the distinct shift token above.
func quarterBucket(minute int) string {
	switch minute / 15 {
	case 0:
		return "Q1"
	case 1:
		return "Q2"
	case 2:
		return "Q3"
	default:
		return "Q4"
	}
}

// hourQuarterToken combines the hour bucket with the quarter-hour bucket,
// e.g. "Hr09_Q3", matching timeout.c's "Hr%s_Qn" token emitted alongside
// the bare Qn class.
func hourQuarterToken(hour int, quarter string) string {
	return "Hr" + pad2(hour) + "_" + quarter
}

// lifecycleToken buckets the year into a three-year cycle, per §4.6's
// "lifecycle token (three-year cycle)".
func lifecycleToken(year int) string {
	return "Lcycle_" + strconv.Itoa(year%3)
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
