package models

// ScopeID identifies an interned scope name. 0 is reserved for the root
// (empty) scope.
type ScopeID uint32

// RootScope is the ScopeID of the empty scope.
const RootScope ScopeID = 0

type Kind int8

const (
	KindCounter Kind = iota + 1
	KindGauge
	KindHistogram
)

func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindGauge:
		return "gauge"
	case KindHistogram:
		return "histogram"
	default:
		return "unknown"
	}
}

// Valid reports whether k is one of the three defined kinds.
func (k Kind) Valid() bool {
	return k == KindCounter || k == KindGauge || k == KindHistogram
}

// Key identifies a single aggregated series. Multiple kinds may coexist
// under the same scope.
type Key struct {
	Scope ScopeID
	Kind  Kind
}

// Sample is one observation. The meaning of Value depends on Kind:
// counters carry a delta, gauges an absolute value, histograms a recorded
// value. Timestamp is monotonic nanoseconds from the injected clock.
type Sample struct {
	Key       Key
	Value     int64
	Timestamp int64
}
