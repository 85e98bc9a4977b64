package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/yndnr/tillvault-go/internal/core/domain"
	"github.com/yndnr/tillvault-go/internal/storage"
	"github.com/yndnr/tillvault-go/internal/storage/backup"
	"github.com/yndnr/tillvault-go/internal/storage/intent"
	"github.com/yndnr/tillvault-go/internal/storage/schema"
	"github.com/yndnr/tillvault-go/internal/telemetry/metric"
)

// ProductCatalog is the sale ledger's write path into the product
// catalog. All stock movement goes through it, so the non-negative
// stock invariant has a single home.
type ProductCatalog interface {
	ApplyStockDelta(ctx context.Context, id string, delta int64) (*domain.Product, error)
}

// SaleService is the sale ledger. It records sales, reverses them
// within the configured window, and answers history queries and
// summaries.
//
// Every recording and reversal runs under a write-ahead intent so a
// crash mid-operation can be compensated on the next open.
type SaleService struct {
	store     *storage.Store
	catalog   ProductCatalog
	alloc     *storage.Allocator
	intents   *intent.Log
	audit     *AuditService
	settings  *SettingsService
	scheduler *backup.Scheduler // nil disables debounced backups
	metrics   *metric.Metrics   // nil disables instrumentation
	logger    *slog.Logger
}

// NewSaleService creates a new SaleService. The scheduler may be nil
// when no automatic backups are wanted.
func NewSaleService(store *storage.Store, catalog ProductCatalog, alloc *storage.Allocator, intents *intent.Log, audit *AuditService, settings *SettingsService, scheduler *backup.Scheduler, logger *slog.Logger) *SaleService {
	return &SaleService{
		store:     store,
		catalog:   catalog,
		alloc:     alloc,
		intents:   intents,
		audit:     audit,
		settings:  settings,
		scheduler: scheduler,
		logger:    logger,
	}
}

// RegisterMetrics attaches instrumentation. Returns the service for
// chaining.
func (s *SaleService) RegisterMetrics(m *metric.Metrics) *SaleService {
	s.metrics = m
	return s
}

// countFailure records a rejected sale operation by error code.
func (s *SaleService) countFailure(err error) {
	if s.metrics != nil {
		s.metrics.SaleFailures.WithLabelValues(domain.GetErrorCode(err)).Inc()
	}
}

// RecordSaleRequest contains parameters for recording a sale.
type RecordSaleRequest struct {
	Items         []domain.SaleItem // Required, at least one
	PaymentMethod string            // Required
	StaffID       string            // Optional
	Customer      string            // Optional, redacted in logs
}

// RecordSale records a completed sale.
//
// Stock is decremented product by product; an insufficient product
// aborts the sale but decrements already applied stay applied. The
// receipt is best-effort: if numbering or persisting it fails the
// sale stands without one. The single exception is a duplicate
// receipt number, which means the allocator misbehaved and comes
// back as a fatal CounterConflict.
func (s *SaleService) RecordSale(ctx context.Context, req *RecordSaleRequest) (*domain.Sale, error) {
	if req.PaymentMethod == "" {
		return nil, domain.ErrMissingArgument.WithDetails("payment_method is required")
	}
	sale, err := domain.NewSale(req.Items, req.PaymentMethod, req.StaffID, req.Customer)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(sale)
	if err != nil {
		return nil, domain.ErrStorage.WithCause(err)
	}
	txn, err := s.intents.Begin(intent.KindSaleRecord, sale.ID, payload)
	if err != nil {
		return nil, domain.ErrStorage.WithCause(err)
	}

	// 1. Decrement stock per item. A failure aborts the sale but
	// completes the intent: partial decrements are final, not
	// compensated.
	for _, item := range sale.Items {
		if err := s.decrementStock(ctx, txn, item); err != nil {
			s.completeIntent(txn)
			s.countFailure(err)
			return nil, err
		}
	}

	// 2. Persist the sale in completed status.
	if err := s.store.Put(ctx, schema.CollectionSales, sale); err != nil {
		s.completeIntent(txn)
		return nil, err
	}
	if err := txn.Step(intent.Step{Name: intent.StepSaleWritten, RecordID: sale.ID}); err != nil {
		s.logger.Warn("intent step dropped", "sale_id", sale.ID, "error", err)
	}

	// 3. Issue the receipt. Only a duplicate number blocks the sale.
	if err := s.attachReceipt(ctx, txn, sale); err != nil {
		s.completeIntent(txn)
		s.countFailure(err)
		return nil, err
	}

	// 4. Audit trail.
	s.audit.RecordBestEffort(ctx, domain.AuditActionSaleRecorded,
		"sale", sale.ID, sale.StaffID, "", domain.AuditMeta{
			Total:      sale.TotalAmount,
			ItemsCount: sale.ItemsCount(),
		})

	s.completeIntent(txn)
	s.scheduleBackup()
	if s.metrics != nil {
		s.metrics.SalesRecorded.Inc()
		s.metrics.SaleAmountTotal.Add(float64(sale.TotalAmount))
	}

	s.logger.Info("sale recorded",
		"sale_id", sale.ID,
		"total", sale.TotalAmount,
		"items", sale.ItemsCount(),
		"payment_method", sale.PaymentMethod)
	return sale, nil
}

// decrementStock takes one item's quantity out of stock through the
// catalog and logs the intent step.
func (s *SaleService) decrementStock(ctx context.Context, txn *intent.Txn, item domain.SaleItem) error {
	product, err := s.catalog.ApplyStockDelta(ctx, item.ProductID, -item.Quantity)
	if err != nil {
		return err
	}
	if err := txn.Step(intent.Step{
		Name:      intent.StepStockAdjusted,
		ProductID: product.ID,
		Delta:     -item.Quantity,
	}); err != nil {
		s.logger.Warn("intent step dropped", "product_id", product.ID, "error", err)
	}
	return nil
}

// attachReceipt allocates a receipt number, persists the receipt, and
// attaches it to the sale. Failures log and leave the sale without a
// receipt, except a unique-index hit on the receipt number: that is a
// duplicate counter value and comes back as CounterConflict.
func (s *SaleService) attachReceipt(ctx context.Context, txn *intent.Txn, sale *domain.Sale) error {
	number, err := s.alloc.Increment(ctx, domain.CounterReceiptNumber, 1)
	if err != nil {
		s.logger.Warn("receipt number allocation failed, sale has no receipt",
			"sale_id", sale.ID, "error", err)
		return nil
	}
	receipt, err := domain.NewReceipt(sale.ID, number, sale.TotalAmount, sale.PaymentMethod)
	if err != nil {
		s.logger.Warn("receipt construction failed, sale has no receipt",
			"sale_id", sale.ID, "error", err)
		return nil
	}
	if err := s.store.Put(ctx, schema.CollectionReceipts, receipt); err != nil {
		if errors.Is(err, domain.ErrUniqueViolation) {
			return domain.ErrCounterConflict.WithDetails(
				fmt.Sprintf("receipt number %d already issued", number)).WithCause(err)
		}
		s.logger.Warn("receipt write failed, sale has no receipt",
			"sale_id", sale.ID, "error", err)
		return nil
	}
	if err := txn.Step(intent.Step{Name: intent.StepReceiptWritten, RecordID: receipt.ID}); err != nil {
		s.logger.Warn("intent step dropped", "receipt_id", receipt.ID, "error", err)
	}

	sale.Receipt = receipt
	if err := s.store.Put(ctx, schema.CollectionSales, sale); err != nil {
		// The receipt row exists but the sale does not point at it.
		// The sale_id index still ties them together.
		sale.Receipt = nil
		s.logger.Warn("receipt attach failed, sale has no receipt",
			"sale_id", sale.ID, "error", err)
	}
	return nil
}

// GetSale retrieves one sale by id.
func (s *SaleService) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	record, err := s.store.GetByID(ctx, schema.CollectionSales, id)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, domain.ErrSaleNotFound.WithDetails(id)
		}
		return nil, err
	}
	return record.(*domain.Sale), nil
}

// CanReverseSale reports whether the sale is still reversible:
// completed status, inside the configured window.
func (s *SaleService) CanReverseSale(ctx context.Context, id string) (bool, error) {
	sale, err := s.GetSale(ctx, id)
	if err != nil {
		return false, err
	}
	window, err := s.settings.ReversalWindowHours(ctx)
	if err != nil {
		return false, err
	}
	return sale.CanReverse(window), nil
}

// ReverseSale reverses a completed sale: the status flips first, then
// stock is restored item by item. If restoring stock fails the status
// flip is compensated so the sale does not read as reversed with
// stock still deducted.
func (s *SaleService) ReverseSale(ctx context.Context, id, staffID, reason string) (*domain.Sale, error) {
	sale, err := s.GetSale(ctx, id)
	if err != nil {
		return nil, err
	}
	window, err := s.settings.ReversalWindowHours(ctx)
	if err != nil {
		return nil, err
	}
	if !sale.CanReverse(window) {
		s.countFailure(domain.ErrReversalNotAllowed)
		if sale.Status == domain.SaleStatusReversed {
			return nil, domain.ErrReversalNotAllowed.WithDetails("sale is already reversed")
		}
		return nil, domain.ErrReversalNotAllowed.WithDetails(
			fmt.Sprintf("sale is outside the %d hour reversal window", window),
		)
	}

	payload, err := json.Marshal(sale)
	if err != nil {
		return nil, domain.ErrStorage.WithCause(err)
	}
	txn, err := s.intents.Begin(intent.KindSaleReverse, sale.ID, payload)
	if err != nil {
		return nil, domain.ErrStorage.WithCause(err)
	}

	originalDate := sale.Date
	originalTotal := sale.TotalAmount

	// 1. Flip the status before touching stock.
	sale.MarkReversed(reason)
	if err := s.store.Put(ctx, schema.CollectionSales, sale); err != nil {
		s.completeIntent(txn)
		return nil, err
	}
	if err := txn.Step(intent.Step{Name: intent.StepStatusFlipped, RecordID: sale.ID}); err != nil {
		s.logger.Warn("intent step dropped", "sale_id", sale.ID, "error", err)
	}

	// 2. Restore stock. Failure here un-flips the status.
	if err := s.restoreStock(ctx, txn, sale); err != nil {
		s.unflipSale(ctx, sale)
		s.completeIntent(txn)
		return nil, domain.ErrStockRestoreFailed.WithCause(err)
	}

	// 3. Audit trail.
	s.audit.RecordBestEffort(ctx, domain.AuditActionSaleReversed,
		"sale", sale.ID, staffID, reason, domain.AuditMeta{
			Total:        originalTotal,
			ItemsCount:   sale.ItemsCount(),
			OriginalDate: originalDate,
		})

	s.completeIntent(txn)
	s.scheduleBackup()
	if s.metrics != nil {
		s.metrics.SalesReversed.Inc()
	}

	s.logger.Info("sale reversed", "sale_id", sale.ID, "total", originalTotal)
	return sale, nil
}

// restoreStock adds each item's quantity back through the catalog.
// Products deleted since the sale are skipped; their stock no longer
// exists to restore.
func (s *SaleService) restoreStock(ctx context.Context, txn *intent.Txn, sale *domain.Sale) error {
	for _, item := range sale.Items {
		product, err := s.catalog.ApplyStockDelta(ctx, item.ProductID, item.Quantity)
		if err != nil {
			if domain.IsDomainError(err, domain.ErrProductNotFound.Code) {
				s.logger.Warn("product gone, stock not restored",
					"sale_id", sale.ID, "product_id", item.ProductID)
				continue
			}
			return err
		}
		if err := txn.Step(intent.Step{
			Name:      intent.StepStockAdjusted,
			ProductID: product.ID,
			Delta:     item.Quantity,
		}); err != nil {
			s.logger.Warn("intent step dropped", "product_id", product.ID, "error", err)
		}
	}
	return nil
}

// unflipSale compensates a failed reversal by putting the sale back
// into completed status.
func (s *SaleService) unflipSale(ctx context.Context, sale *domain.Sale) {
	sale.Status = domain.SaleStatusCompleted
	sale.ReversedAt = 0
	sale.ReversalReason = ""
	if err := s.store.Put(ctx, schema.CollectionSales, sale); err != nil {
		s.logger.Error("failed to restore sale status after aborted reversal",
			"sale_id", sale.ID, "error", err)
	}
}

// SalesByDateRange returns sales with dates in [from, to] ascending.
// Reversed sales are filtered out unless asked for.
func (s *SaleService) SalesByDateRange(ctx context.Context, from, to int64, includeReversed bool) ([]*domain.Sale, error) {
	records, err := s.store.GetRange(ctx, schema.CollectionSales, from, to)
	if err != nil {
		return nil, err
	}
	sales := make([]*domain.Sale, 0, len(records))
	for _, r := range records {
		sale := r.(*domain.Sale)
		if !includeReversed && sale.Status == domain.SaleStatusReversed {
			continue
		}
		sales = append(sales, sale)
	}
	sort.Slice(sales, func(i, j int) bool {
		return sales[i].Date < sales[j].Date
	})
	return sales, nil
}

// PaymentBreakdown aggregates sales taken with one payment method.
type PaymentBreakdown struct {
	Count  int   `json:"count"`
	Amount int64 `json:"amount"`
}

// Summary aggregates completed sales over a period. Reversed sales
// are excluded.
type Summary struct {
	From        int64                       `json:"from"`
	To          int64                       `json:"to"`
	SalesCount  int                         `json:"sales_count"`
	TotalAmount int64                       `json:"total_amount"`
	ItemsSold   int64                       `json:"items_sold"`
	ByPayment   map[string]PaymentBreakdown `json:"by_payment_method"`
}

// DailySummary summarizes the calendar day containing t, in t's
// location.
func (s *SaleService) DailySummary(ctx context.Context, t time.Time) (*Summary, error) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	end := start.AddDate(0, 0, 1)
	return s.summarize(ctx, start, end)
}

// MonthlySummary summarizes the calendar month containing t, in t's
// location.
func (s *SaleService) MonthlySummary(ctx context.Context, t time.Time) (*Summary, error) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	end := start.AddDate(0, 1, 0)
	return s.summarize(ctx, start, end)
}

// summarize aggregates completed sales in [start, end).
func (s *SaleService) summarize(ctx context.Context, start, end time.Time) (*Summary, error) {
	from := start.UnixMilli()
	to := end.UnixMilli() - 1
	sales, err := s.SalesByDateRange(ctx, from, to, false)
	if err != nil {
		return nil, err
	}
	summary := &Summary{
		From:      from,
		To:        to,
		ByPayment: map[string]PaymentBreakdown{},
	}
	for _, sale := range sales {
		summary.SalesCount++
		summary.TotalAmount += sale.TotalAmount
		for _, item := range sale.Items {
			summary.ItemsSold += item.Quantity
		}
		b := summary.ByPayment[sale.PaymentMethod]
		b.Count++
		b.Amount += sale.TotalAmount
		summary.ByPayment[sale.PaymentMethod] = b
	}
	return summary, nil
}

// ReplayIntents compensates intents left incomplete by a crash. Steps
// are undone in reverse order, then the intent is marked completed.
// Called once at open, before the store serves traffic.
func (s *SaleService) ReplayIntents(ctx context.Context, pending []*intent.Pending) error {
	for _, p := range pending {
		s.logger.Warn("compensating incomplete intent",
			"intent_id", p.ID, "kind", p.Kind, "entity_id", p.EntityID, "steps", len(p.Steps))
		for i := len(p.Steps) - 1; i >= 0; i-- {
			if err := s.undoStep(ctx, p, p.Steps[i]); err != nil {
				return fmt.Errorf("compensate intent %s: %w", p.ID, err)
			}
		}
		txn := s.intents.Resume(p.ID)
		if err := txn.Complete(); err != nil {
			return fmt.Errorf("complete replayed intent %s: %w", p.ID, err)
		}
	}
	return s.intents.Compact()
}

// undoStep reverses one recorded step of an incomplete intent.
func (s *SaleService) undoStep(ctx context.Context, p *intent.Pending, step intent.Step) error {
	switch step.Name {
	case intent.StepStockAdjusted:
		record, err := s.store.GetByID(ctx, schema.CollectionProducts, step.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrRecordNotFound) {
				s.logger.Warn("product gone, stock compensation skipped",
					"intent_id", p.ID, "product_id", step.ProductID)
				return nil
			}
			return err
		}
		product := record.(*domain.Product)
		product.Stock -= step.Delta
		if product.Stock < 0 {
			product.Stock = 0
		}
		product.UpdatedAt = domain.NowMillis()
		return s.store.Put(ctx, schema.CollectionProducts, product)

	case intent.StepSaleWritten:
		return s.store.Delete(ctx, schema.CollectionSales, step.RecordID)

	case intent.StepReceiptWritten:
		return s.store.Delete(ctx, schema.CollectionReceipts, step.RecordID)

	case intent.StepStatusFlipped:
		// Restore the sale exactly as the intent payload captured
		// it before the flip.
		var original domain.Sale
		if err := json.Unmarshal(p.Payload, &original); err != nil {
			return fmt.Errorf("decode intent payload: %w", err)
		}
		return s.store.Put(ctx, schema.CollectionSales, &original)

	default:
		s.logger.Warn("unknown intent step skipped",
			"intent_id", p.ID, "step", step.Name)
		return nil
	}
}

// completeIntent marks the intent done; a failure here only costs a
// spurious compensation on the next open.
func (s *SaleService) completeIntent(txn *intent.Txn) {
	if err := txn.Complete(); err != nil {
		s.logger.Warn("intent completion dropped", "intent_id", txn.ID(), "error", err)
	}
}

// scheduleBackup arms the debounced backup, when one is configured.
func (s *SaleService) scheduleBackup() {
	if s.scheduler != nil {
		s.scheduler.Schedule()
	}
}
