package port

import "context"

type IDGenerator interface {
	// NextID produces a globally unique, roughly time-ordered 64-bit id for
	// the given business prefix
	NextID(ctx context.Context, prefix string) (uint64, error)
}
