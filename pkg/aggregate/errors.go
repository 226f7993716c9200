package aggregate

import "errors"

var (
	// ErrAggregationSkew marks a metric column with no aggregation rule. The
	// column is excluded from the rollup, never guessed at.
	ErrAggregationSkew = errors.New("no aggregation rule for metric")
	// ErrUnknownRule is returned when a spec names an unsupported rule.
	ErrUnknownRule = errors.New("unknown aggregation rule")
)
