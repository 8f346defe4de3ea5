package memory

import (
	"context"
	"time"

	"bakery/internal/core/numerator"
)

// Numerator implements numerator.Generator over an in-memory sequence table.
type Numerator struct {
	store *Store
}

var _ numerator.Generator = (*Numerator)(nil)

func (n *Numerator) GetNextNumber(ctx context.Context, cfg numerator.Config, period time.Time) (string, error) {
	var next int64
	err := n.store.write(ctx, OpSequence, func(st *state) error {
		key := cfg.Key(period)
		st.sequences[key]++
		next = st.sequences[key]
		return nil
	})
	if err != nil {
		return "", err
	}
	return cfg.Format(period, next), nil
}
