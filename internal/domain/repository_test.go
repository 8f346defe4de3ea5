package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHookRegistry_RunsInOrderAndStopsOnError(t *testing.T) {
	r := NewHookRegistry[*string]()
	var calls []string

	r.On(AfterConfirm, func(_ context.Context, s *string) error {
		calls = append(calls, "first:"+*s)
		return nil
	})
	r.On(AfterConfirm, func(context.Context, *string) error {
		calls = append(calls, "second")
		return errors.New("audit down")
	})
	r.On(AfterConfirm, func(context.Context, *string) error {
		calls = append(calls, "third")
		return nil
	})

	doc := "SI-2026-00001"
	err := r.Run(context.Background(), AfterConfirm, &doc)

	assert.EqualError(t, err, "audit down")
	assert.Equal(t, []string{"first:SI-2026-00001", "second"}, calls)
	assert.NoError(t, r.Run(context.Background(), AfterDelete, &doc))
}
