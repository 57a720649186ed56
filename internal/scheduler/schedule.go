package scheduler

import (
	"fmt"
	"time"

	"github.com/saudeaberta/medstock-api/pkg/config"
)

// Schedule computes when a job fires next
type Schedule interface {
	// Next returns the first firing time strictly after after
	Next(after time.Time) time.Time
	String() string
}

// Daily fires once a day at a wall-clock time in a fixed zone
type Daily struct {
	Hour     int
	Minute   int
	Location *time.Location
}

// NewDaily parses an HH:MM clock for loc
func NewDaily(clock string, loc *time.Location) (Daily, error) {
	hour, minute, err := config.ParseClock(clock)
	if err != nil {
		return Daily{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	return Daily{Hour: hour, Minute: minute, Location: loc}, nil
}

// Next implements Schedule
func (d Daily) Next(after time.Time) time.Time {
	local := after.In(d.Location)
	y, m, day := local.Date()
	next := time.Date(y, m, day, d.Hour, d.Minute, 0, 0, d.Location)
	if !next.After(local) {
		next = time.Date(y, m, day+1, d.Hour, d.Minute, 0, 0, d.Location)
	}
	return next
}

func (d Daily) String() string {
	return fmt.Sprintf("daily %02d:%02d %s", d.Hour, d.Minute, d.Location)
}

// Interval fires at a fixed period measured from the previous firing
type Interval struct {
	Every time.Duration
}

// Next implements Schedule
func (i Interval) Next(after time.Time) time.Time {
	return after.Add(i.Every)
}

func (i Interval) String() string {
	return "every " + i.Every.String()
}
