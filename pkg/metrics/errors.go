package metrics

import "errors"

var (
	// ErrDisabledFacet is returned by Record when the sample's kind is not
	// enabled for its scope. Recoverable; the caller may ignore or log it.
	ErrDisabledFacet = errors.New("metric kind is disabled for scope")

	// ErrAggregatorGone is returned when the engine has been closed and can
	// no longer accept samples or serve snapshots.
	ErrAggregatorGone = errors.New("aggregator has terminated")

	// ErrInvalidScope is returned when an empty scope segment is used to
	// derive a scoped sink.
	ErrInvalidScope = errors.New("invalid scope")

	// ErrInvalidConfig wraps engine construction failures.
	ErrInvalidConfig = errors.New("invalid configuration")
)
