// Package memory is an in-process storage driver.
//
// Transactions are serialized and copy-on-write: each one works on a
// private clone of the committed state that replaces it on commit, so a
// failed transaction leaves nothing behind. Reads outside a transaction
// see the last committed state.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"bakery/internal/core/id"
	"bakery/internal/core/tx"
	"bakery/internal/domain/documents/stock_in"
	"bakery/internal/domain/ledger"
	"bakery/internal/domain/product"
)

// Fault points accepted by Inject.
const (
	OpCommit         = "commit"
	OpProductUpdate  = "products.update"
	OpMovementInsert = "movements.insert"
	OpStockInCreate  = "stock_ins.create"
	OpStockInUpdate  = "stock_ins.update"
	OpLineWrite      = "stock_in_items.write"
	OpSequence       = "sequences.next"
)

type state struct {
	products  map[id.ID]product.Product
	docs      map[id.ID]stock_in.StockIn
	lines     map[id.ID]stock_in.Line
	movements []ledger.Movement
	sequences map[string]int64
}

func newState() *state {
	return &state{
		products:  make(map[id.ID]product.Product),
		docs:      make(map[id.ID]stock_in.StockIn),
		lines:     make(map[id.ID]stock_in.Line),
		sequences: make(map[string]int64),
	}
}

// clone copies every table. Movements are immutable values, so clipping
// the slice is enough to keep appends off the shared backing array.
func (st *state) clone() *state {
	return &state{
		products:  maps.Clone(st.products),
		docs:      maps.Clone(st.docs),
		lines:     maps.Clone(st.lines),
		movements: slices.Clip(st.movements),
		sequences: maps.Clone(st.sequences),
	}
}

type txKey struct{}

type txState struct {
	st *state
}

// Store holds all tables and implements tx.Manager.
type Store struct {
	txMu sync.Mutex

	mu        sync.RWMutex
	committed *state

	faultMu sync.Mutex
	faults  map[string][]error

	now func() time.Time
}

var _ tx.Manager = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		committed: newState(),
		faults:    make(map[string][]error),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RunInTransaction runs fn against a private copy of the state and
// publishes it only if fn succeeds. Nested calls join the outer one.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.InTransaction(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.committed.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, &txState{st: work})); err != nil {
		return err
	}
	if err := s.fault(OpCommit); err != nil {
		return err
	}

	s.mu.Lock()
	s.committed = work
	s.mu.Unlock()
	return nil
}

// InTransaction reports whether ctx carries a transaction of this store.
func (s *Store) InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*txState)
	return ok
}

// Inject makes the next call reaching op fail with err. Several injections
// for the same op fire in order.
func (s *Store) Inject(op string, err error) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults[op] = append(s.faults[op], err)
}

func (s *Store) fault(op string) error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	queue := s.faults[op]
	if len(queue) == 0 {
		return nil
	}
	s.faults[op] = queue[1:]
	return queue[0]
}

// view returns the state visible to ctx. The committed state is never
// written in place, so it is safe to read without holding a lock.
func (s *Store) view(ctx context.Context) *state {
	if t, ok := ctx.Value(txKey{}).(*txState); ok {
		return t.st
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.committed
}

// write runs fn on the transaction state, opening an implicit transaction
// when ctx has none.
func (s *Store) write(ctx context.Context, op string, fn func(st *state) error) error {
	run := func(ctx context.Context) error {
		if err := s.fault(op); err != nil {
			return err
		}
		return fn(ctx.Value(txKey{}).(*txState).st)
	}
	if s.InTransaction(ctx) {
		return run(ctx)
	}
	return s.RunInTransaction(ctx, run)
}

// Products returns the product repository.
func (s *Store) Products() *ProductRepo { return &ProductRepo{store: s} }

// Ledger returns the movement repository.
func (s *Store) Ledger() *LedgerRepo { return &LedgerRepo{store: s} }

// StockIns returns the stock-in repository.
func (s *Store) StockIns() *StockInRepo { return &StockInRepo{store: s} }

// Numerator returns the code generator.
func (s *Store) Numerator() *Numerator { return &Numerator{store: s} }
