package stock_in

import (
	"context"
	"time"

	"bakery/internal/core/id"
	"bakery/internal/domain"
)

// Repository defines operations for stock-in documents.
// Reads skip deletion-marked headers and lines.
type Repository interface {
	// Create inserts the header and its lines.
	Create(ctx context.Context, doc *StockIn) error
	GetByID(ctx context.Context, docID id.ID) (*StockIn, error)

	// GetForUpdate reads the header and locks its row.
	GetForUpdate(ctx context.Context, docID id.ID) (*StockIn, error)

	// Update persists header fields if Version-1 matches the stored version.
	Update(ctx context.Context, doc *StockIn) error

	// Delete sets the deletion mark on the header.
	Delete(ctx context.Context, docID id.ID) error

	// Line operations
	GetLines(ctx context.Context, docID id.ID) ([]Line, error)
	GetLine(ctx context.Context, lineID id.ID) (*Line, error)
	InsertLine(ctx context.Context, line *Line) error
	UpdateLine(ctx context.Context, line *Line) error
	DeleteLine(ctx context.Context, lineID id.ID) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[ListItem], error)
}

// ListFilter for the paged document list.
type ListFilter struct {
	DateFrom *time.Time
	DateTo   *time.Time
	Status   *Status
	// Search matches code, supplier or note, case-insensitive.
	Search string
	Limit  int
	Offset int
}

// ListItem is a header with its totals.
type ListItem struct {
	*StockIn
	Totals
}
