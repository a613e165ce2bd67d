// Package countdown turns a countdown target into hours, minutes and seconds.
package countdown

import (
	"fmt"
	"time"

	"github.com/designjam/countdown/go/internal/models"
)

var expired = models.CountdownTime{Expired: true}

// Tick computes the time left until target. A nil or already passed target
// is expired with all fields zero. Hours are not capped at 24.
func Tick(target *time.Time, now time.Time) models.CountdownTime {
	if target == nil {
		return expired
	}

	// truncation is a floor here since only positive deltas survive
	delta := int64(target.Sub(now) / time.Second)
	if delta <= 0 {
		return expired
	}

	return models.CountdownTime{
		Hours:   delta / 3600,
		Minutes: (delta % 3600) / 60,
		Seconds: delta % 60,
		Expired: false,
	}
}

// Remaining is the unrounded duration until target, zero once it has passed.
func Remaining(target *time.Time, now time.Time) time.Duration {
	if target == nil {
		return 0
	}
	if d := target.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Format renders a countdown as HH:MM:SS, padding each field to two digits.
func Format(ct models.CountdownTime) string {
	return fmt.Sprintf("%02d:%02d:%02d", ct.Hours, ct.Minutes, ct.Seconds)
}
