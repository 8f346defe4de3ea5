package tx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"bakery/internal/core/apperror"
)

type fakeManager struct {
	inTx bool
}

func (m *fakeManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *fakeManager) InTransaction(context.Context) bool { return m.inTx }

func TestRunWithRetry(t *testing.T) {
	conflict := apperror.NewConcurrencyConflict("product", "p1")

	tests := []struct {
		name      string
		inTx      bool
		errs      []error
		wantCalls int
		wantErr   error
	}{
		{name: "success first try", errs: []error{nil}, wantCalls: 1},
		{name: "conflict then success", errs: []error{conflict, nil}, wantCalls: 2},
		{name: "conflict twice surfaces", errs: []error{conflict, conflict}, wantCalls: 2, wantErr: conflict},
		{name: "other error not retried", errs: []error{errors.New("boom")}, wantCalls: 1, wantErr: errors.New("boom")},
		{name: "nested conflict not retried", inTx: true, errs: []error{conflict}, wantCalls: 1, wantErr: conflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := RunWithRetry(context.Background(), &fakeManager{inTx: tt.inTx}, func(context.Context) error {
				e := tt.errs[calls]
				calls++
				return e
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tt.wantErr.Error())
			}
		})
	}
}
