package util

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// unixMillisCutoff separates unix seconds from unix milliseconds. Second
// readings stay below it until the year 33658.
const unixMillisCutoff = 1e12

// ParseTime tries RFC3339, RFC3339Nano, unix seconds and unix milliseconds.
// Fractional seconds are accepted. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return UnixAuto(ts), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && !math.IsInf(f, 0) {
		return UnixFloat(f), true
	}
	return time.Time{}, false
}

// UnixAuto reads ts as unix milliseconds when it is too large to be seconds.
func UnixAuto(ts int64) time.Time {
	if ts >= unixMillisCutoff {
		return time.UnixMilli(ts).UTC()
	}
	return time.Unix(ts, 0).UTC()
}

// UnixFloat is UnixAuto for fractional readings.
func UnixFloat(f float64) time.Time {
	if f >= unixMillisCutoff {
		return time.UnixMicro(int64(f * 1e3)).UTC()
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}
