// Package service implements the mutation entry points over the state
// document. Every mutation follows the same cycle: validate against the
// cached document, apply the change to a clone, swap the clone in, persist
// the whole document. A failed save leaves the mutated copy in memory so a
// retry only has to save again.
//
// One logical session drives the document at a time. There is no
// concurrent-writer coordination across processes: a save from another
// process between our load and save is silently overwritten (last writer
// wins). That race is a known limitation of the whole-document model, kept on
// purpose. Within one process a mutex serializes all access to the cached
// document, so concurrent HTTP requests never observe a half-applied
// mutation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"roomie/internal/core"
	"roomie/internal/ledger"
	"roomie/internal/session"
	"roomie/internal/store"
)

var (
	// ErrPersistenceUnavailable wraps load/save collaborator failures. The
	// in-memory state is preserved and the operation can be retried.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")

	ErrEmptyCart      = errors.New("cart total must be greater than zero")
	ErrNothingPending = errors.New("no furniture purchase pending")
	ErrNotParticipant = errors.New("not a participant of the active context")
)

// Notifier publishes a best-effort signal after each successful save. A nil
// notifier disables notifications; publish failures never fail the mutation.
type Notifier interface {
	PublishDocumentSaved(ctx context.Context, revision int64) error
}

type Household struct {
	store    store.DocumentStore
	notifier Notifier
	roster   core.Roster

	mu       sync.Mutex
	doc      core.Document
	loaded   bool
	dirty    bool
	revision int64

	now   func() time.Time
	newID func() string
}

type Option func(*Household)

// WithNotifier attaches a saved-document notifier.
func WithNotifier(n Notifier) Option {
	return func(h *Household) { h.notifier = n }
}

// WithClock overrides time in tests.
func WithClock(now func() time.Time) Option {
	return func(h *Household) { h.now = now }
}

// WithIDGenerator overrides id generation in tests.
func WithIDGenerator(gen func() string) Option {
	return func(h *Household) { h.newID = gen }
}

func NewHousehold(st store.DocumentStore, roster core.Roster, opts ...Option) *Household {
	h := &Household{
		store:  st,
		roster: roster,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Roster returns the static participant configuration.
func (h *Household) Roster() core.Roster { return h.roster }

// Document returns the cached state document, loading it on first use.
func (h *Household) Document(ctx context.Context) (core.Document, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ensureLoaded(ctx); err != nil {
		return core.Document{}, err
	}
	return h.doc.Clone(), nil
}

// Dirty reports whether the in-memory document has mutations that have not
// reached the store yet.
func (h *Household) Dirty() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dirty
}

// ensureLoaded requires h.mu to be held.
func (h *Household) ensureLoaded(ctx context.Context) error {
	if h.loaded {
		return nil
	}
	doc, err := h.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: load state document: %v", ErrPersistenceUnavailable, err)
	}
	h.doc = doc
	h.loaded = true
	return nil
}

// apply runs one mutation against a clone of the cached document and persists
// the result. Validation errors inside mutate leave the cache untouched; a
// persistence failure keeps the mutated clone as the new cache so Save can
// retry. Requires h.mu to be held.
func (h *Household) apply(ctx context.Context, op string, mutate func(*core.Document) error) (core.Document, error) {
	if err := h.ensureLoaded(ctx); err != nil {
		return core.Document{}, err
	}

	next := h.doc.Clone()
	if err := mutate(&next); err != nil {
		return core.Document{}, err
	}
	h.doc = next
	h.dirty = true

	if err := h.persist(ctx); err != nil {
		slog.ErrorContext(ctx, "Failed to persist state document",
			"operation", op,
			"error", err)
		return h.doc.Clone(), err
	}

	slog.InfoContext(ctx, "State document persisted",
		"operation", op,
		"revision", h.revision)
	return h.doc.Clone(), nil
}

// persist requires h.mu to be held.
func (h *Household) persist(ctx context.Context) error {
	if err := h.store.Save(ctx, h.doc); err != nil {
		return fmt.Errorf("%w: save state document: %v", ErrPersistenceUnavailable, err)
	}
	h.dirty = false
	h.revision++

	if h.notifier != nil {
		if err := h.notifier.PublishDocumentSaved(ctx, h.revision); err != nil {
			slog.WarnContext(ctx, "Failed to publish document-saved notification",
				"revision", h.revision,
				"error", err)
		}
	}
	return nil
}

// Save re-persists the cached document. It is the retry path after a
// persistence failure and a no-op when nothing is dirty.
func (h *Household) Save(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.loaded || !h.dirty {
		return nil
	}
	return h.persist(ctx)
}

// Balances computes net positions across the bill history of one context for
// that context's participant set.
func (h *Household) Balances(ctx context.Context, scope core.Context) (map[string]float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return ledger.Balances(h.doc.BillsIn(scope), h.roster.Participants(scope)), nil
}

// TaskInput carries the user-entered fields of a new task.
type TaskInput struct {
	Title      string
	Assignees  []string
	Importance int
	Due        string
}

// CreateTask appends a pending task. The id is time-derived, matching the
// original data.
func (h *Household) CreateTask(ctx context.Context, scope core.Context, in TaskInput) (core.Document, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	task := core.Task{
		ID:         strconv.FormatInt(now.UnixNano(), 10),
		Title:      strings.TrimSpace(in.Title),
		Assignees:  in.Assignees,
		Status:     core.TaskPending,
		Importance: in.Importance,
		Created:    now.Format("2006-01-02"),
		Due:        in.Due,
		Context:    scope,
	}
	if task.Due == "" {
		task.Due = core.NoDate
	}
	if err := task.Validate(); err != nil {
		return core.Document{}, err
	}

	return h.apply(ctx, "create_task", func(d *core.Document) error {
		d.Tasks = append(d.Tasks, task)
		return nil
	})
}

// UpdateTaskStatus moves a task to a new status. A stale id is a no-op.
func (h *Household) UpdateTaskStatus(ctx context.Context, scope core.Context, id string, status core.TaskStatus) (core.Document, error) {
	if err := status.Validate(); err != nil {
		return core.Document{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.apply(ctx, "update_task_status", func(d *core.Document) error {
		t := d.FindTask(scope, id)
		if t == nil {
			slog.WarnContext(ctx, "Task not found, ignoring status update",
				"task_id", id,
				"context", string(scope))
			return nil
		}
		t.Status = status
		return nil
	})
}

// BillInput carries the user-entered fields of a manual bill.
type BillInput struct {
	Date        string
	Amount      float64
	Category    core.BillCategory
	Description string
	Payer       string
	Debtors     []string
}

// CreateBill appends a shared expense to the history.
func (h *Household) CreateBill(ctx context.Context, scope core.Context, in BillInput) (core.Document, error) {
	bill := core.Bill{
		Date:        in.Date,
		Amount:      in.Amount,
		Category:    in.Category,
		Description: in.Description,
		Payer:       in.Payer,
		Debtors:     in.Debtors,
		Context:     scope,
	}
	if bill.Date == "" {
		bill.Date = h.now().Format("2006-01-02")
	}
	if err := h.validateBill(scope, bill); err != nil {
		return core.Document{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.apply(ctx, "create_bill", func(d *core.Document) error {
		d.Bills = append(d.Bills, bill)
		return nil
	})
}

func (h *Household) validateBill(scope core.Context, bill core.Bill) error {
	if err := bill.Validate(); err != nil {
		return err
	}
	if !h.roster.Contains(scope, bill.Payer) {
		return fmt.Errorf("payer %q: %w", bill.Payer, ErrNotParticipant)
	}
	for _, d := range bill.Debtors {
		if !h.roster.Contains(scope, d) {
			return fmt.Errorf("debtor %q: %w", d, ErrNotParticipant)
		}
	}
	return nil
}

// AddShoppingItem adds a to-buy item. The name must be unique within the
// active context; the same name may exist in the other context.
func (h *Household) AddShoppingItem(ctx context.Context, scope core.Context, name string) (core.Document, error) {
	item := core.ShoppingItem{
		ID:      h.newID(),
		Name:    strings.TrimSpace(name),
		Status:  core.ShoppingToBuy,
		Context: scope,
	}
	if err := item.Validate(); err != nil {
		return core.Document{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.apply(ctx, "add_shopping_item", func(d *core.Document) error {
		if d.HasShoppingName(scope, item.Name) {
			return fmt.Errorf("%q: %w", item.Name, core.ErrDuplicateItem)
		}
		d.Shopping = append(d.Shopping, item)
		return nil
	})
}

// ToggleShoppingItemStatus flips an item between to-buy and have. A stale id
// is a no-op.
func (h *Household) ToggleShoppingItemStatus(ctx context.Context, scope core.Context, id string) (core.Document, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.apply(ctx, "toggle_shopping_item", func(d *core.Document) error {
		it := d.FindShopping(scope, id)
		if it == nil {
			slog.WarnContext(ctx, "Shopping item not found, ignoring toggle",
				"item_id", id,
				"context", string(scope))
			return nil
		}
		if it.Status == core.ShoppingToBuy {
			it.Status = core.ShoppingHave
		} else {
			it.Status = core.ShoppingToBuy
		}
		return nil
	})
}

// RemoveShoppingItem deletes an item from the active context only. A stale id
// is a no-op.
func (h *Household) RemoveShoppingItem(ctx context.Context, scope core.Context, id string) (core.Document, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.apply(ctx, "remove_shopping_item", func(d *core.Document) error {
		for i := range d.Shopping {
			if d.Shopping[i].ID == id && d.Shopping[i].Context == scope {
				d.Shopping = append(d.Shopping[:i], d.Shopping[i+1:]...)
				return nil
			}
		}
		slog.WarnContext(ctx, "Shopping item not found, ignoring removal",
			"item_id", id,
			"context", string(scope))
		return nil
	})
}

// Checkout converts the session cart into one supermarket bill and flips the
// bought items to have, as a single state transition. The cart is only
// cleared once the mutation is applied; if the save fails the document keeps
// the bill in memory and Save retries the write.
func (h *Household) Checkout(ctx context.Context, sess *session.Session, payer string, debtors []string) (core.Document, error) {
	scope := sess.Context()
	entries := sess.CartSnapshot()
	total := sess.CartTotal()
	if total <= 0 {
		return core.Document{}, ErrEmptyCart
	}

	bill := core.Bill{
		Date:        h.now().Format("2006-01-02"),
		Amount:      total,
		Category:    core.CategorySupermarket,
		Description: cartDescription(entries),
		Payer:       payer,
		Debtors:     debtors,
		Context:     scope,
	}
	if err := h.validateBill(scope, bill); err != nil {
		return core.Document{}, err
	}

	h.mu.Lock()
	doc, err := h.apply(ctx, "checkout", func(d *core.Document) error {
		d.Bills = append(d.Bills, bill)
		for _, e := range entries {
			// Match on name and context: a same-named item in the other
			// context must stay untouched.
			for i := range d.Shopping {
				if d.Shopping[i].Name == e.Name && d.Shopping[i].Context == scope {
					d.Shopping[i].Status = core.ShoppingHave
				}
			}
		}
		return nil
	})
	h.mu.Unlock()
	if err != nil && !errors.Is(err, ErrPersistenceUnavailable) {
		return core.Document{}, err
	}

	// The mutation is part of the in-memory document now, even when the save
	// failed, so the cart is done either way.
	sess.ClearCart()

	slog.InfoContext(ctx, "Checkout completed",
		"items", len(entries),
		"amount", total,
		"payer", payer,
		"context", string(scope))
	return doc, err
}

func cartDescription(entries []session.CartEntry) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = fmt.Sprintf("%s (%s)", e.Name, strconv.FormatFloat(e.Price, 'f', -1, 64))
	}
	return strings.Join(parts, ", ")
}

// AddFurnitureItem appends a wish-list entry.
func (h *Household) AddFurnitureItem(ctx context.Context, scope core.Context, name string, estimate float64, targetDate string) (core.Document, error) {
	item := core.FurnitureItem{
		ID:             h.newID(),
		Name:           strings.TrimSpace(name),
		EstimatedValue: estimate,
		TargetDate:     targetDate,
		Status:         core.FurnitureWish,
		Context:        scope,
	}
	if item.TargetDate == "" {
		item.TargetDate = core.NoDate
	}
	if err := item.Validate(); err != nil {
		return core.Document{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.apply(ctx, "add_furniture_item", func(d *core.Document) error {
		d.Furniture = append(d.Furniture, item)
		return nil
	})
}

// BeginFurniturePurchase stages one wish-list item for confirmation. Only one
// purchase may be pending per session.
func (h *Household) BeginFurniturePurchase(ctx context.Context, sess *session.Session, id string) (core.FurnitureItem, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ensureLoaded(ctx); err != nil {
		return core.FurnitureItem{}, err
	}
	scope := sess.Context()
	item := h.doc.FindFurniture(scope, id)
	if item == nil || item.Status != core.FurnitureWish {
		return core.FurnitureItem{}, fmt.Errorf("furniture item %q: %w", id, core.ErrNotFound)
	}
	if err := sess.BeginFurniturePurchase(id); err != nil {
		return core.FurnitureItem{}, err
	}
	return *item, nil
}

// ConfirmFurniturePurchase turns the pending wish-list item into a bill and
// marks that specific item bought, matched by id so a same-named item is
// never touched. realPrice < 0 falls back to the stored estimate.
func (h *Household) ConfirmFurniturePurchase(ctx context.Context, sess *session.Session, realPrice float64, payer string, debtors []string) (core.Document, error) {
	id := sess.PendingFurniture()
	if id == "" {
		return core.Document{}, ErrNothingPending
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ensureLoaded(ctx); err != nil {
		return core.Document{}, err
	}

	scope := sess.Context()
	item := h.doc.FindFurniture(scope, id)
	if item == nil || item.Status != core.FurnitureWish {
		sess.CancelFurniturePurchase()
		return core.Document{}, fmt.Errorf("furniture item %q: %w", id, core.ErrNotFound)
	}

	price := realPrice
	if price < 0 {
		price = item.EstimatedValue
	}
	bill := core.Bill{
		Date:        h.now().Format("2006-01-02"),
		Amount:      price,
		Category:    core.CategoryFurniture,
		Description: "Furniture purchase: " + item.Name,
		Payer:       payer,
		Debtors:     debtors,
		Context:     scope,
	}
	if err := h.validateBill(scope, bill); err != nil {
		return core.Document{}, err
	}

	doc, err := h.apply(ctx, "confirm_furniture_purchase", func(d *core.Document) error {
		d.Bills = append(d.Bills, bill)
		if it := d.FindFurniture(scope, id); it != nil {
			it.Status = core.FurnitureBought
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrPersistenceUnavailable) {
		return core.Document{}, err
	}

	sess.CancelFurniturePurchase()
	return doc, err
}

// CancelFurniturePurchase drops the staged purchase without touching the
// document.
func (h *Household) CancelFurniturePurchase(sess *session.Session) {
	sess.CancelFurniturePurchase()
}
