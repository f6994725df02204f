package clock

import "fmt"

// Correlation is the immutable point-of-equivalence anchoring a
// CorrelatedClock's linear relationship to its parent, plus the
// parameters of its linear error-growth model.
//
// Two Correlations are equal iff all four fields are numerically
// equal. There is no in-place mutation: ButWith/ButWithFields always
// return a new value.
type Correlation struct {
	ParentTime      float64
	ChildTime       float64
	InitialError    float64
	ErrorGrowthRate float64
}

// NewCorrelation builds a Correlation from its four scalars directly.
func NewCorrelation(parentTime, childTime, initialError, errorGrowthRate float64) Correlation {
	return Correlation{
		ParentTime:      parentTime,
		ChildTime:       childTime,
		InitialError:    initialError,
		ErrorGrowthRate: errorGrowthRate,
	}
}

// CorrelationAt is the "single scalar" constructor: a Correlation
// with only parentTime set and every other field at its zero default.
func CorrelationAt(parentTime float64) Correlation {
	return Correlation{ParentTime: parentTime}
}

// CorrelationFromSlice is the ordered-tuple constructor. vals is
// interpreted positionally as (parentTime, childTime, initialError,
// errorGrowthRate); missing trailing entries default to zero. A slice
// longer than four entries is invalid.
func CorrelationFromSlice(vals []float64) (Correlation, error) {
	if len(vals) > 4 {
		return Correlation{}, fmt.Errorf("%w: correlation tuple has %d entries, want 0..4", ErrInvalidArgument, len(vals))
	}
	var c Correlation
	fields := [...]*float64{&c.ParentTime, &c.ChildTime, &c.InitialError, &c.ErrorGrowthRate}
	for i, v := range vals {
		*fields[i] = v
	}
	return c, nil
}

// CorrelationOverrides is the typed override record for ButWith: a
// nil pointer leaves the corresponding field unchanged, a non-nil
// pointer replaces it. Supplying an all-nil value returns the
// receiver unchanged.
type CorrelationOverrides struct {
	ParentTime      *float64
	ChildTime       *float64
	InitialError    *float64
	ErrorGrowthRate *float64
}

// ButWith returns a new Correlation differing from c only in the
// fields set in overrides.
func (c Correlation) ButWith(overrides CorrelationOverrides) Correlation {
	next := c
	if overrides.ParentTime != nil {
		next.ParentTime = *overrides.ParentTime
	}
	if overrides.ChildTime != nil {
		next.ChildTime = *overrides.ChildTime
	}
	if overrides.InitialError != nil {
		next.InitialError = *overrides.InitialError
	}
	if overrides.ErrorGrowthRate != nil {
		next.ErrorGrowthRate = *overrides.ErrorGrowthRate
	}
	return next
}

// correlationFieldNames are the only keys ButWithFields accepts.
var correlationFieldNames = map[string]func(*Correlation, float64){
	"parentTime":      func(c *Correlation, v float64) { c.ParentTime = v },
	"childTime":       func(c *Correlation, v float64) { c.ChildTime = v },
	"initialError":    func(c *Correlation, v float64) { c.InitialError = v },
	"errorGrowthRate": func(c *Correlation, v float64) { c.ErrorGrowthRate = v },
}

// ButWithFields is the dynamic-record form of ButWith: it accepts an
// arbitrary map of overrides by field name. This is the strict
// variant — an unknown key is ErrInvalidArgument rather than silently
// ignored.
func (c Correlation) ButWithFields(overrides map[string]float64) (Correlation, error) {
	next := c
	for name, v := range overrides {
		set, ok := correlationFieldNames[name]
		if !ok {
			return Correlation{}, fmt.Errorf("%w: unknown correlation field %q", ErrInvalidArgument, name)
		}
		set(&next, v)
	}
	return next, nil
}

// Equal reports whether c and other have numerically equal fields.
func (c Correlation) Equal(other Correlation) bool {
	return c == other
}
