package stock_in

import (
	"context"
	"fmt"
	"time"

	"bakery/internal/core/apperror"
	"bakery/internal/core/id"
	"bakery/internal/core/numerator"
	"bakery/internal/core/tx"
	"bakery/internal/domain"
	"bakery/internal/domain/posting"
	"bakery/internal/domain/product"
	"bakery/pkg/logger"
)

// CodePrefix starts every stock-in code, e.g. SI-2026-00001.
const CodePrefix = "SI"

// ConfirmResult is returned by a successful Confirm.
type ConfirmResult struct {
	Document    *StockIn `json:"document"`
	MovementIDs []id.ID  `json:"movementIds"`
	Totals      Totals   `json:"totals"`
}

// Service provides business operations for stock-in documents.
type Service struct {
	repo          Repository
	products      product.Repository
	postingEngine *posting.Engine
	numerator     numerator.Generator
	txManager     tx.Manager
	hooks         *domain.HookRegistry[*StockIn]
	codeConfig    numerator.Config
	now           func() time.Time
}

// NewService creates a new stock-in service.
func NewService(
	repo Repository,
	products product.Repository,
	postingEngine *posting.Engine,
	gen numerator.Generator,
	txManager tx.Manager,
) *Service {
	return &Service{
		repo:          repo,
		products:      products,
		postingEngine: postingEngine,
		numerator:     gen,
		txManager:     txManager,
		hooks:         domain.NewHookRegistry[*StockIn](),
		codeConfig:    numerator.DefaultConfig(CodePrefix),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*StockIn] {
	return s.hooks
}

// SetCodePrefix changes the prefix of generated codes.
func (s *Service) SetCodePrefix(prefix string) {
	s.codeConfig = numerator.DefaultConfig(prefix)
}

func (s *Service) runHook(ctx context.Context, event domain.HookEvent, doc *StockIn) {
	if err := s.hooks.Run(ctx, event, doc); err != nil {
		logger.Warn(ctx, "stock-in hook failed", "event", event, "id", doc.ID, "error", err)
	}
}

// Check returns every header, line and product problem of doc. The error is
// reserved for storage failures.
func (s *Service) Check(ctx context.Context, doc *StockIn) (apperror.FieldErrors, error) {
	fe := doc.FieldErrors()
	unknown, err := s.unknownProducts(ctx, doc.Lines)
	if err != nil {
		return nil, err
	}
	fe.Merge("", unknown)
	return fe, nil
}

// Create validates and stores a new Draft document with its lines.
func (s *Service) Create(ctx context.Context, doc *StockIn) error {
	doc.Status = StatusDraft
	doc.Confirmed = nil
	for i := range doc.Lines {
		doc.Lines[i].StockInID = doc.ID
		if doc.Lines[i].LineNo == 0 {
			doc.Lines[i].LineNo = i + 1
		}
	}

	fe, err := s.Check(ctx, doc)
	if err != nil {
		return err
	}
	if err := fe.Err(); err != nil {
		return err
	}

	err = tx.RunWithRetry(ctx, s.txManager, func(ctx context.Context) error {
		if err := s.checkProducts(ctx, doc.Lines); err != nil {
			return err
		}

		if doc.Code == "" {
			code, err := s.numerator.GetNextNumber(ctx, s.codeConfig, doc.Date)
			if err != nil {
				return fmt.Errorf("generate code: %w", err)
			}
			doc.Code = code
		}

		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.runHook(ctx, domain.AfterCreate, doc)
	logger.Info(ctx, "stock-in created", "id", doc.ID, "code", doc.Code, "lines", len(doc.Lines))
	return nil
}

// Get returns a document with its active lines.
func (s *Service) Get(ctx context.Context, docID id.ID) (*StockIn, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.GetLines(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	doc.Lines = lines
	return doc, nil
}

// List returns a page of documents with totals.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[ListItem], error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, filter)
}

// AddLine appends a line to a Draft document.
func (s *Service) AddLine(ctx context.Context, docID id.ID, in LineInput) (*Line, error) {
	var line Line
	var doc *StockIn
	err := tx.RunWithRetry(ctx, s.txManager, func(ctx context.Context) error {
		var err error
		doc, err = s.lockDraft(ctx, docID)
		if err != nil {
			return err
		}

		line = doc.NewLine(in, s.now())
		if err := line.Check().Err(); err != nil {
			return err
		}
		if err := s.checkProducts(ctx, []Line{line}); err != nil {
			return err
		}

		if err := s.repo.InsertLine(ctx, &line); err != nil {
			return err
		}
		return s.touch(ctx, doc)
	})
	if err != nil {
		return nil, err
	}

	s.runHook(ctx, domain.AfterUpdate, doc)
	return &line, nil
}

// UpdateLine changes qty, price or note of a line on a Draft document.
func (s *Service) UpdateLine(ctx context.Context, lineID id.ID, patch LinePatch) (*Line, error) {
	if patch.Empty() {
		return nil, apperror.NewValidation("nothing to update")
	}

	var line *Line
	var doc *StockIn
	err := tx.RunWithRetry(ctx, s.txManager, func(ctx context.Context) error {
		var err error
		line, err = s.repo.GetLine(ctx, lineID)
		if err != nil {
			return err
		}
		doc, err = s.lockDraft(ctx, line.StockInID)
		if err != nil {
			return err
		}

		line.Apply(patch)
		if err := line.Check().Err(); err != nil {
			return err
		}
		line.Touch(s.now())
		if err := s.repo.UpdateLine(ctx, line); err != nil {
			return err
		}
		return s.touch(ctx, doc)
	})
	if err != nil {
		return nil, err
	}

	s.runHook(ctx, domain.AfterUpdate, doc)
	return line, nil
}

// RemoveLine soft-deletes a line of a Draft document.
func (s *Service) RemoveLine(ctx context.Context, lineID id.ID) error {
	var doc *StockIn
	err := tx.RunWithRetry(ctx, s.txManager, func(ctx context.Context) error {
		line, err := s.repo.GetLine(ctx, lineID)
		if err != nil {
			return err
		}
		doc, err = s.lockDraft(ctx, line.StockInID)
		if err != nil {
			return err
		}
		if err := s.repo.DeleteLine(ctx, lineID); err != nil {
			return err
		}
		return s.touch(ctx, doc)
	})
	if err != nil {
		return err
	}

	s.runHook(ctx, domain.AfterUpdate, doc)
	return nil
}

// Delete soft-deletes a Draft document.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	var doc *StockIn
	err := tx.RunWithRetry(ctx, s.txManager, func(ctx context.Context) error {
		var err error
		doc, err = s.lockDraft(ctx, docID)
		if err != nil {
			return err
		}
		return s.repo.Delete(ctx, docID)
	})
	if err != nil {
		return err
	}

	s.runHook(ctx, domain.AfterDelete, doc)
	logger.Info(ctx, "stock-in deleted", "id", docID, "code", doc.Code)
	return nil
}

// Confirm moves a Draft document to Confirmed and appends one IN movement
// per line, all or nothing. A second call fails with AlreadyConfirmed.
func (s *Service) Confirm(ctx context.Context, docID id.ID) (*ConfirmResult, error) {
	var result *ConfirmResult
	err := tx.RunWithRetry(ctx, s.txManager, func(ctx context.Context) error {
		doc, err := s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if doc.IsConfirmed() {
			return apperror.NewAlreadyConfirmed(docID)
		}

		doc.Lines, err = s.repo.GetLines(ctx, docID)
		if err != nil {
			return fmt.Errorf("get lines: %w", err)
		}
		if len(doc.Lines) == 0 {
			return apperror.NewValidationFields(apperror.FieldErrors{"items": "at least one item is required"})
		}
		if err := s.checkProducts(ctx, doc.Lines); err != nil {
			return err
		}

		if err := doc.MarkConfirmed(s.now()); err != nil {
			return err
		}

		ids, err := s.postingEngine.Post(ctx, doc, func(ctx context.Context) error {
			return s.repo.Update(ctx, doc)
		})
		if err != nil {
			return err
		}

		result = &ConfirmResult{Document: doc, MovementIDs: ids, Totals: doc.Totals()}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.runHook(ctx, domain.AfterConfirm, result.Document)
	logger.Info(ctx, "stock-in confirmed",
		"id", docID,
		"code", result.Document.Code,
		"movements", len(result.MovementIDs),
		"total_qty", result.Totals.TotalQty)
	return result, nil
}

// lockDraft locks the header and fails unless it is still a Draft.
func (s *Service) lockDraft(ctx context.Context, docID id.ID) (*StockIn, error) {
	doc, err := s.repo.GetForUpdate(ctx, docID)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.GetLines(ctx, docID)
	if err != nil {
		return nil, err
	}
	doc.Lines = lines
	if err := doc.CanModify(); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Service) touch(ctx context.Context, doc *StockIn) error {
	doc.Touch(s.now())
	return s.repo.Update(ctx, doc)
}

// checkProducts fails with a ValidationError naming every line whose
// product is missing or deleted.
func (s *Service) checkProducts(ctx context.Context, lines []Line) error {
	fe, err := s.unknownProducts(ctx, lines)
	if err != nil {
		return err
	}
	return fe.Err()
}

// unknownProducts returns items[i].product_id entries for lines whose product
// is missing or deleted. Lines without a product id are skipped.
func (s *Service) unknownProducts(ctx context.Context, lines []Line) (apperror.FieldErrors, error) {
	fe := apperror.FieldErrors{}
	want := make([]id.ID, 0, len(lines))
	for _, l := range lines {
		if !id.IsNil(l.ProductID) {
			want = append(want, l.ProductID)
		}
	}
	if len(want) == 0 {
		return fe, nil
	}
	existing, err := s.products.ExistingIDs(ctx, want)
	if err != nil {
		return nil, err
	}
	missing := product.Missing(want, existing)
	if len(missing) == 0 {
		return fe, nil
	}

	gone := make(map[id.ID]struct{}, len(missing))
	for _, pid := range missing {
		gone[pid] = struct{}{}
	}
	for i, l := range lines {
		if _, ok := gone[l.ProductID]; ok {
			fe.Add(fmt.Sprintf("items[%d].product_id", i), "product does not exist")
		}
	}
	return fe, nil
}
