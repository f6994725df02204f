package clock

// Kind names a concrete clock implementation for introspection.
type Kind string

const (
	KindRoot       Kind = "root"
	KindCorrelated Kind = "correlated"
	KindOffset     Kind = "offset"
)

// Status is a read-side snapshot of a clock's timing state at the
// moment it was taken, in the spirit of the stratum/dispersion status
// structs time-source implementations typically expose (see
// DESIGN.md).
type Status struct {
	ID             string
	Kind           Kind
	ParentID       string
	Now            float64
	TickRate       float64
	Speed          float64
	EffectiveSpeed float64
	Dispersion     float64
	Available      bool
}

// StatusOf takes a Status snapshot of c.
func StatusOf(c Clock) Status {
	s := Status{
		ID:             c.ID(),
		Kind:           KindOf(c),
		Now:            c.Now(),
		TickRate:       c.TickRate(),
		Speed:          c.Speed(),
		EffectiveSpeed: c.EffectiveSpeed(),
		Available:      c.IsAvailable(),
	}
	if p := c.Parent(); p != nil {
		s.ParentID = p.ID()
	}
	s.Dispersion = c.DispersionAtTime(c.Now())
	return s
}

// KindOf returns the Kind of the concrete clock behind c.
func KindOf(c Clock) Kind {
	switch c.(type) {
	case *RootClock:
		return KindRoot
	case *CorrelatedClock:
		return KindCorrelated
	case *OffsetClock:
		return KindOffset
	default:
		return ""
	}
}
