// Package countdown computes time remaining until a trip starts.
package countdown

import (
	"fmt"
	"time"
)

// startLayouts are the accepted startDate formats, most specific first.
// The store always holds a full timestamp, but imported data may carry
// zone offsets.
var startLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// TimeLeft is the remaining duration broken into display units.
type TimeLeft struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// Until returns the time left from now until target. The second return
// value reports whether the trip has started: a non-positive remaining
// duration yields the terminal started state and a zero TimeLeft.
func Until(target, now time.Time) (TimeLeft, bool) {
	diff := target.Sub(now)
	if diff <= 0 {
		return TimeLeft{}, true
	}

	secs := int(diff / time.Second)
	return TimeLeft{
		Days:    secs / 86400,
		Hours:   (secs / 3600) % 24,
		Minutes: (secs / 60) % 60,
		Seconds: secs % 60,
	}, false
}

// ParseStart parses a stored or imported startDate value.
func ParseStart(s string) (time.Time, error) {
	for _, layout := range startLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized start date %q", s)
}
