package clock

import (
	"fmt"
	"math"
)

// defaultRootTickRate and defaultMaxFreqErrorPpm are the constructor
// defaults for a RootClock left unconfigured.
const (
	defaultRootTickRate    = 1000.0
	defaultMaxFreqErrorPpm = 50.0
)

// RootClockOptions configures NewRootClock. Zero values take the
// spec's documented defaults.
type RootClockOptions struct {
	TickRate        float64
	MaxFreqErrorPpm float64

	// PrecisionSamples overrides the number of samples the one-shot
	// precision probe takes; 0 uses defaultProbeSamples.
	PrecisionSamples int
}

// RootClock is the terminal node of a clock tree: it reads the host's
// monotonic time directly, scaled to TickRate, and reports a fixed
// dispersion measured once at construction by probing the host clock's
// actual resolution (see precision.go).
type RootClock struct {
	base

	host            HostClock
	tickRate        float64
	maxFreqErrorPpm float64
	precision       float64
}

// NewRootClock wraps host in a RootClock. A HostClock with a
// non-decreasing NowMillis is assumed; precision is measured once,
// here, by sampling it.
func NewRootClock(host HostClock, opts RootClockOptions) (*RootClock, error) {
	tickRate := opts.TickRate
	if tickRate == 0 {
		tickRate = defaultRootTickRate
	}
	if tickRate <= 0 {
		return nil, fmt.Errorf("%w: tickRate must be > 0, got %v", ErrInvalidArgument, tickRate)
	}
	maxFreqErrorPpm := opts.MaxFreqErrorPpm
	if maxFreqErrorPpm == 0 {
		maxFreqErrorPpm = defaultMaxFreqErrorPpm
	}

	c := &RootClock{
		base:            newBase(newClockID("root")),
		host:            host,
		tickRate:        tickRate,
		maxFreqErrorPpm: maxFreqErrorPpm,
		precision:       measurePrecision(host.NowMillis, opts.PrecisionSamples),
	}
	c.self = c
	return c, nil
}

func (c *RootClock) Now() float64 {
	return c.host.NowMillis() * c.tickRate / 1000
}

func (c *RootClock) TickRate() float64 { return c.tickRate }

func (c *RootClock) SetTickRate(float64) error {
	return fmt.Errorf("%w: root clock tick rate is fixed at construction", ErrImmutable)
}

func (c *RootClock) Speed() float64 { return 1 }

func (c *RootClock) SetSpeed(float64) error {
	return fmt.Errorf("%w: root clock speed is always 1", ErrImmutable)
}

func (c *RootClock) Parent() Clock { return nil }

func (c *RootClock) SetParent(Clock) error {
	return fmt.Errorf("%w: root clock has no parent to set", ErrImmutable)
}

func (c *RootClock) ToParentTime(float64) (float64, error) {
	return math.NaN(), ErrNoParent
}

func (c *RootClock) FromParentTime(float64) (float64, error) {
	return math.NaN(), ErrNoParent
}

func (c *RootClock) CalcWhen(t float64) float64 {
	return t * 1000 / c.tickRate
}

func (c *RootClock) SetAvailabilityFlag(v bool) error {
	if !v {
		return fmt.Errorf("%w: root clock availability cannot be cleared", ErrImmutable)
	}
	return nil
}

func (c *RootClock) OwnDispersionAtTime(float64) float64 {
	return c.precision
}

func (c *RootClock) RootMaxFreqErrorPpm() float64 {
	return c.maxFreqErrorPpm
}

func (c *RootClock) hostClock() HostClock { return c.host }
