package countdown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/designjam/countdown/go/internal/models"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func TestTick(t *testing.T) {
	tests := []struct {
		name   string
		target *time.Time
		want   models.CountdownTime
	}{
		{"nil target", nil, models.CountdownTime{Expired: true}},
		{"passed", at(-time.Second), models.CountdownTime{Expired: true}},
		{"exactly now", at(0), models.CountdownTime{Expired: true}},
		{"sub second", at(999 * time.Millisecond), models.CountdownTime{Expired: true}},
		{"one second", at(time.Second), models.CountdownTime{Seconds: 1}},
		{"floored", at(61*time.Second + 900*time.Millisecond), models.CountdownTime{Minutes: 1, Seconds: 1}},
		{"3661s", at(3661 * time.Second), models.CountdownTime{Hours: 1, Minutes: 1, Seconds: 1}},
		{"one hour less a second", at(time.Hour - time.Second), models.CountdownTime{Minutes: 59, Seconds: 59}},
		{"beyond a day", at(7*24*time.Hour + 5*time.Minute), models.CountdownTime{Hours: 168, Minutes: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tick(tt.target, now))
		})
	}
}

func TestTick_Idempotent(t *testing.T) {
	target := at(90 * time.Minute)
	first := Tick(target, now)
	second := Tick(target, now)
	assert.Equal(t, first, second)
	assert.Equal(t, time.Date(2026, 3, 1, 13, 30, 0, 0, time.UTC), *target)
}

func TestTick_SelfCorrectsAfterGap(t *testing.T) {
	target := at(10 * time.Minute)
	// a skipped stretch of ticks is invisible: the result only depends on now
	assert.Equal(t, models.CountdownTime{Minutes: 5}, Tick(target, now.Add(5*time.Minute)))
}

func TestRemaining(t *testing.T) {
	assert.Equal(t, time.Duration(0), Remaining(nil, now))
	assert.Equal(t, time.Duration(0), Remaining(at(-time.Minute), now))
	assert.Equal(t, 1500*time.Millisecond, Remaining(at(1500*time.Millisecond), now))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "00:00:00", Format(models.CountdownTime{Expired: true}))
	assert.Equal(t, "01:02:03", Format(models.CountdownTime{Hours: 1, Minutes: 2, Seconds: 3}))
	assert.Equal(t, "168:05:00", Format(models.CountdownTime{Hours: 168, Minutes: 5}))
}
