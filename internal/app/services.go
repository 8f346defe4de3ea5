// Package app wires storage drivers into the domain services.
package app

import (
	"context"

	"bakery/internal/core/numerator"
	"bakery/internal/core/tx"
	"bakery/internal/domain/documents/stock_in"
	"bakery/internal/domain/ledger"
	"bakery/internal/domain/posting"
	"bakery/internal/domain/product"
	"bakery/internal/domain/registers/stock"
	"bakery/internal/domain/reports"
	"bakery/internal/domain/reservation"
	infranumerator "bakery/internal/infrastructure/numerator"
	"bakery/internal/infrastructure/storage/memory"
	"bakery/internal/infrastructure/storage/postgres"
	"bakery/internal/infrastructure/storage/postgres/catalog_repo"
	"bakery/internal/infrastructure/storage/postgres/document_repo"
	"bakery/internal/infrastructure/storage/postgres/register_repo"
)

// Storage is the set of ports a driver must provide.
type Storage struct {
	TxManager tx.Manager
	Products  product.Repository
	Ledger    ledger.Repository
	StockIns  stock_in.Repository
	Numerator numerator.Generator
}

// Observers receive domain events for metrics. Any of them may be nil.
type Observers struct {
	Ledger      ledger.Recorder
	Posting     posting.Observer
	Reservation reservation.Observer
}

// Services is the assembled domain layer.
type Services struct {
	Products     product.Repository
	Ledger       *ledger.Service
	Stock        *stock.Service
	Posting      *posting.Engine
	StockIns     *stock_in.Service
	Reservations *reservation.Service
	Reports      *reports.Service
}

// NewServices builds every domain service on top of st.
func NewServices(st Storage, obs Observers) *Services {
	ledgerSvc := ledger.NewService(st.Ledger, obs.Ledger)
	stockSvc := stock.NewService(st.TxManager, st.Products, ledgerSvc)
	engine := posting.NewEngine(st.TxManager, stockSvc, ledgerSvc, obs.Posting)

	return &Services{
		Products:     st.Products,
		Ledger:       ledgerSvc,
		Stock:        stockSvc,
		Posting:      engine,
		StockIns:     stock_in.NewService(st.StockIns, st.Products, engine, st.Numerator, st.TxManager),
		Reservations: reservation.NewService(st.TxManager, stockSvc, ledgerSvc, obs.Reservation),
		Reports:      reports.NewService(ledgerSvc, stockSvc, st.StockIns),
	}
}

// MemoryStorage exposes an in-memory store as a Storage.
func MemoryStorage(store *memory.Store) Storage {
	return Storage{
		TxManager: store,
		Products:  store.Products(),
		Ledger:    store.Ledger(),
		StockIns:  store.StockIns(),
		Numerator: store.Numerator(),
	}
}

// PostgresStorage builds the repositories over one transaction manager.
func PostgresStorage(txManager *postgres.TxManager) Storage {
	return Storage{
		TxManager: txManager,
		Products:  catalog_repo.NewProductRepo(txManager),
		Ledger:    register_repo.NewMovementRepo(txManager),
		StockIns:  document_repo.NewStockInRepo(txManager),
		Numerator: infranumerator.New(func(ctx context.Context) infranumerator.Querier {
			return txManager.GetQuerier(ctx)
		}),
	}
}
