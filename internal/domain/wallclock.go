package domain

import (
	"bytes"
	"fmt"
	"time"
)

// wallClockLayout matches JavaScript's Date.toISOString output.
const wallClockLayout = "2006-01-02T15:04:05.000Z"

var wallClockParseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// WallClock is a timezone-naive timestamp: a local wall-clock reading
// labelled UTC. The authority stores it without a zone.
type WallClock struct {
	t time.Time
}

// WallClockOf returns the wall-clock reading of t in its own location.
func WallClockOf(t time.Time) WallClock {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	return WallClock{t: time.Date(y, mo, d, h, mi, s, t.Nanosecond(), time.UTC)}
}

// Add returns w shifted by d.
func (w WallClock) Add(d time.Duration) WallClock {
	return WallClock{t: w.t.Add(d)}
}

// IsZero reports whether w is unset.
func (w WallClock) IsZero() bool {
	return w.t.IsZero()
}

// In interprets the reading as local time in loc and returns the instant.
func (w WallClock) In(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	y, mo, d := w.t.Date()
	h, mi, s := w.t.Clock()
	return time.Date(y, mo, d, h, mi, s, w.t.Nanosecond(), loc)
}

// Naive returns the reading labelled UTC.
func (w WallClock) Naive() time.Time {
	return w.t
}

func (w WallClock) String() string {
	return w.t.Format(wallClockLayout)
}

func (w WallClock) MarshalJSON() ([]byte, error) {
	if w.t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + w.t.Format(wallClockLayout) + `"`), nil
}

func (w *WallClock) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*w = WallClock{}
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("wallclock: invalid value %s", data)
	}
	raw := string(data[1 : len(data)-1])
	for _, layout := range wallClockParseLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			// Zoned values keep their wall reading; the offset is discarded.
			*w = WallClockOf(t)
			return nil
		}
	}
	return fmt.Errorf("wallclock: cannot parse %q", raw)
}
