package service

import "time"

// Clock provides time operations. Start uses it to time provisioning.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the actual system time.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// TestClock advances by Step on every call, starting at FixedTime.
type TestClock struct {
	FixedTime time.Time
	Step      time.Duration
	calls     int
}

// Now returns FixedTime plus Step for every previous call.
func (t *TestClock) Now() time.Time {
	now := t.FixedTime.Add(time.Duration(t.calls) * t.Step)
	t.calls++
	return now
}
