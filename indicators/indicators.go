// Package indicators provides streaming indicators over daily closes.
package indicators

// Indicator consumes one close per day. It is deterministic and keeps no
// state outside its own value, so independent simulations never share one.
type Indicator interface {
	// Name returns a stable identifier like "SMA(375)".
	Name() string

	// Warmup returns how many updates are needed before Ready() is true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next close.
	Update(close float64)

	// Ready reports whether Value() is meaningful.
	Ready() bool

	// Value returns the current value. Callers should check Ready().
	Value() float64
}
