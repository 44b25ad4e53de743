package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"roomie/internal/core"
	"roomie/internal/session"
	"roomie/internal/store/memory"
)

var houseAll = []string{"Ale", "Ferb", "Fandi"}

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC) }
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestHousehold(t *testing.T, st *memory.Store) *Household {
	t.Helper()
	return NewHousehold(st, core.DefaultRoster(),
		WithClock(fixedClock()),
		WithIDGenerator(sequentialIDs()))
}

func TestCreateTask(t *testing.T) {
	h := newTestHousehold(t, memory.New())
	doc, err := h.CreateTask(context.Background(), core.ContextHouse, TaskInput{
		Title:      "take out trash",
		Assignees:  []string{"Ferb"},
		Importance: 2,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if len(doc.Tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(doc.Tasks))
	}
	task := doc.Tasks[0]
	if task.Status != core.TaskPending {
		t.Fatalf("new task should be pending, got %s", task.Status)
	}
	if task.Due != core.NoDate {
		t.Fatalf("missing due date should default to %q, got %q", core.NoDate, task.Due)
	}
	if task.Created != "2026-02-01" {
		t.Fatalf("unexpected created date %q", task.Created)
	}
	if task.ID == "" {
		t.Fatalf("task id must be set")
	}
}

func TestCreateTaskInvalid(t *testing.T) {
	h := newTestHousehold(t, memory.New())
	if _, err := h.CreateTask(context.Background(), core.ContextHouse, TaskInput{Title: " "}); err == nil {
		t.Fatalf("expected validation error for empty title")
	}
	doc, err := h.Document(context.Background())
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	if len(doc.Tasks) != 0 {
		t.Fatalf("rejected task must not be stored")
	}
}

func TestUpdateTaskStatusStaleID(t *testing.T) {
	h := newTestHousehold(t, memory.New())
	if _, err := h.CreateTask(context.Background(), core.ContextHouse, TaskInput{Title: "mop", Assignees: []string{"Ale"}, Importance: 1}); err != nil {
		t.Fatalf("create task: %v", err)
	}
	doc, err := h.UpdateTaskStatus(context.Background(), core.ContextHouse, "no-such-id", core.TaskDone)
	if err != nil {
		t.Fatalf("stale id should be a no-op, got %v", err)
	}
	if doc.Tasks[0].Status != core.TaskPending {
		t.Fatalf("no-op update must not change other tasks")
	}
}

func TestUpdateTaskStatus(t *testing.T) {
	h := newTestHousehold(t, memory.New())
	doc, err := h.CreateTask(context.Background(), core.ContextHouse, TaskInput{Title: "mop", Assignees: []string{"Ale"}, Importance: 1})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	id := doc.Tasks[0].ID

	doc, err = h.UpdateTaskStatus(context.Background(), core.ContextHouse, id, core.TaskDone)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if doc.Tasks[0].Status != core.TaskDone {
		t.Fatalf("expected done, got %s", doc.Tasks[0].Status)
	}

	if _, err := h.UpdateTaskStatus(context.Background(), core.ContextHouse, id, "archived"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestCreateBillRejectsStranger(t *testing.T) {
	h := newTestHousehold(t, memory.New())
	_, err := h.CreateBill(context.Background(), core.ContextHouse, BillInput{
		Amount:      50,
		Category:    core.CategoryFood,
		Description: "pizza",
		Payer:       "Mallory",
		Debtors:     houseAll,
	})
	if !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}

	// Ferb shares the house but not the cat.
	_, err = h.CreateBill(context.Background(), core.ContextCat, BillInput{
		Amount:      20,
		Category:    core.CategoryFood,
		Description: "cat food",
		Payer:       "Ale",
		Debtors:     []string{"Ale", "Ferb"},
	})
	if !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant for cat scope, got %v", err)
	}
}

func TestBalances(t *testing.T) {
	h := newTestHousehold(t, memory.New())
	if _, err := h.CreateBill(context.Background(), core.ContextHouse, BillInput{
		Amount:      300,
		Category:    core.CategoryFood,
		Description: "groceries",
		Payer:       "Ale",
		Debtors:     houseAll,
	}); err != nil {
		t.Fatalf("create bill: %v", err)
	}

	got, err := h.Balances(context.Background(), core.ContextHouse)
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if got["Ale"] != 200 || got["Ferb"] != -100 || got["Fandi"] != -100 {
		t.Fatalf("unexpected balances: %v", got)
	}

	// The cat ledger is untouched by house bills.
	cat, err := h.Balances(context.Background(), core.ContextCat)
	if err != nil {
		t.Fatalf("cat balances: %v", err)
	}
	if cat["Ale"] != 0 || cat["Fandi"] != 0 {
		t.Fatalf("cat balances should be zero, got %v", cat)
	}
}

func TestAddShoppingItemDuplicate(t *testing.T) {
	h := newTestHousehold(t, memory.New())
	if _, err := h.AddShoppingItem(context.Background(), core.ContextHouse, "milk"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := h.AddShoppingItem(context.Background(), core.ContextHouse, "milk"); !errors.Is(err, core.ErrDuplicateItem) {
		t.Fatalf("expected ErrDuplicateItem, got %v", err)
	}
	// The same name in the other context is allowed.
	doc, err := h.AddShoppingItem(context.Background(), core.ContextCat, "milk")
	if err != nil {
		t.Fatalf("cross-context add: %v", err)
	}
	if len(doc.Shopping) != 2 {
		t.Fatalf("expected 2 items, got %d", len(doc.Shopping))
	}
}

func TestToggleShoppingItemStatus(t *testing.T) {
	h := newTestHousehold(t, memory.New())
	doc, err := h.AddShoppingItem(context.Background(), core.ContextHouse, "milk")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	id := doc.Shopping[0].ID

	doc, err = h.ToggleShoppingItemStatus(context.Background(), core.ContextHouse, id)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if doc.Shopping[0].Status != core.ShoppingHave {
		t.Fatalf("expected have, got %s", doc.Shopping[0].Status)
	}

	doc, err = h.ToggleShoppingItemStatus(context.Background(), core.ContextHouse, id)
	if err != nil {
		t.Fatalf("toggle back: %v", err)
	}
	if doc.Shopping[0].Status != core.ShoppingToBuy {
		t.Fatalf("expected buy, got %s", doc.Shopping[0].Status)
	}

	// Toggling from the wrong context is a no-op.
	doc, err = h.ToggleShoppingItemStatus(context.Background(), core.ContextCat, id)
	if err != nil {
		t.Fatalf("cross-context toggle: %v", err)
	}
	if doc.Shopping[0].Status != core.ShoppingToBuy {
		t.Fatalf("cross-context toggle must not flip the item")
	}
}

func TestRemoveShoppingItemScoped(t *testing.T) {
	h := newTestHousehold(t, memory.New())
	doc, err := h.AddShoppingItem(context.Background(), core.ContextHouse, "milk")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	id := doc.Shopping[0].ID

	// Removal from the wrong context leaves the item in place.
	doc, err = h.RemoveShoppingItem(context.Background(), core.ContextCat, id)
	if err != nil {
		t.Fatalf("cross-context remove: %v", err)
	}
	if len(doc.Shopping) != 1 {
		t.Fatalf("cross-context remove must be a no-op")
	}

	doc, err = h.RemoveShoppingItem(context.Background(), core.ContextHouse, id)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(doc.Shopping) != 0 {
		t.Fatalf("expected empty shopping list, got %d", len(doc.Shopping))
	}
}

func TestCheckout(t *testing.T) {
	h := newTestHousehold(t, memory.New())
	ctx := context.Background()

	if _, err := h.AddShoppingItem(ctx, core.ContextHouse, "milk"); err != nil {
		t.Fatalf("add milk: %v", err)
	}
	if _, err := h.AddShoppingItem(ctx, core.ContextHouse, "bread"); err != nil {
		t.Fatalf("add bread: %v", err)
	}
	// Same name in the other context must survive the checkout untouched.
	if _, err := h.AddShoppingItem(ctx, core.ContextCat, "milk"); err != nil {
		t.Fatalf("add cat milk: %v", err)
	}

	sess := session.New()
	sess.AddToCart("milk")
	sess.AddToCart("bread")
	if err := sess.SetCartPrice("milk", 100); err != nil {
		t.Fatalf("price milk: %v", err)
	}
	if err := sess.SetCartPrice("bread", 50); err != nil {
		t.Fatalf("price bread: %v", err)
	}

	doc, err := h.Checkout(ctx, sess, "Ale", houseAll)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	if len(doc.Bills) != 1 {
		t.Fatalf("expected exactly one bill, got %d", len(doc.Bills))
	}
	bill := doc.Bills[0]
	if bill.Amount != 150 {
		t.Fatalf("expected amount 150, got %v", bill.Amount)
	}
	if bill.Category != core.CategorySupermarket {
		t.Fatalf("expected supermarket category, got %s", bill.Category)
	}
	if bill.Description != "milk (100), bread (50)" {
		t.Fatalf("unexpected description %q", bill.Description)
	}
	if bill.Context != core.ContextHouse {
		t.Fatalf("bill should land in the active context, got %s", bill.Context)
	}

	for _, it := range doc.ShoppingIn(core.ContextHouse) {
		if it.Status != core.ShoppingHave {
			t.Fatalf("house item %q should be have, got %s", it.Name, it.Status)
		}
	}
	for _, it := range doc.ShoppingIn(core.ContextCat) {
		if it.Status != core.ShoppingToBuy {
			t.Fatalf("cat item %q must stay to-buy, got %s", it.Name, it.Status)
		}
	}

	if len(sess.CartSnapshot()) != 0 {
		t.Fatalf("cart should be cleared after checkout")
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	h := newTestHousehold(t, memory.New())
	sess := session.New()
	if _, err := h.Checkout(context.Background(), sess, "Ale", houseAll); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}

	// Items staged at price zero still total zero.
	sess.AddToCart("milk")
	if _, err := h.Checkout(context.Background(), sess, "Ale", houseAll); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart for zero total, got %v", err)
	}
	if len(sess.CartSnapshot()) != 1 {
		t.Fatalf("rejected checkout must not clear the cart")
	}
}

func TestCheckoutValidationKeepsCart(t *testing.T) {
	h := newTestHousehold(t, memory.New())
	sess := session.New()
	sess.AddToCart("milk")
	if err := sess.SetCartPrice("milk", 100); err != nil {
		t.Fatalf("price: %v", err)
	}

	if _, err := h.Checkout(context.Background(), sess, "Mallory", houseAll); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
	if len(sess.CartSnapshot()) != 1 {
		t.Fatalf("rejected checkout must not clear the cart")
	}
	doc, err := h.Document(context.Background())
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	if len(doc.Bills) != 0 {
		t.Fatalf("rejected checkout must not record a bill")
	}
}

func TestCheckoutSaveFailureKeepsMutationForRetry(t *testing.T) {
	st := memory.New()
	h := newTestHousehold(t, st)
	ctx := context.Background()

	if _, err := h.AddShoppingItem(ctx, core.ContextHouse, "milk"); err != nil {
		t.Fatalf("add: %v", err)
	}

	sess := session.New()
	sess.AddToCart("milk")
	if err := sess.SetCartPrice("milk", 100); err != nil {
		t.Fatalf("price: %v", err)
	}

	st.FailSave = errors.New("sheet unreachable")
	doc, err := h.Checkout(ctx, sess, "Ale", houseAll)
	if !errors.Is(err, ErrPersistenceUnavailable) {
		t.Fatalf("expected ErrPersistenceUnavailable, got %v", err)
	}

	// The mutated document is returned and cached for retry.
	if len(doc.Bills) != 1 {
		t.Fatalf("expected the bill in the returned document, got %d bills", len(doc.Bills))
	}
	if len(sess.CartSnapshot()) != 0 {
		t.Fatalf("cart is spent once the mutation is applied")
	}
	if !h.Dirty() {
		t.Fatalf("household should be dirty after a failed save")
	}

	// The store never saw the bill.
	stored, loadErr := st.Load(ctx)
	if loadErr != nil {
		t.Fatalf("load: %v", loadErr)
	}
	if len(stored.Bills) != 0 {
		t.Fatalf("failed save must not reach the store")
	}

	st.FailSave = nil
	if err := h.Save(ctx); err != nil {
		t.Fatalf("retry save: %v", err)
	}
	if h.Dirty() {
		t.Fatalf("household should be clean after a successful retry")
	}
	stored, loadErr = st.Load(ctx)
	if loadErr != nil {
		t.Fatalf("load after retry: %v", loadErr)
	}
	if len(stored.Bills) != 1 {
		t.Fatalf("retry should persist the bill, got %d", len(stored.Bills))
	}
}

func TestFurniturePurchaseFlow(t *testing.T) {
	h := newTestHousehold(t, memory.New())
	ctx := context.Background()

	// Two entries with the same name: the purchase must flip by id.
	doc, err := h.AddFurnitureItem(ctx, core.ContextHouse, "sofa", 5000, "2026-06-01")
	if err != nil {
		t.Fatalf("add sofa: %v", err)
	}
	target := doc.Furniture[0]
	if _, err := h.AddFurnitureItem(ctx, core.ContextHouse, "sofa", 3000, ""); err != nil {
		t.Fatalf("add second sofa: %v", err)
	}

	sess := session.New()
	staged, err := h.BeginFurniturePurchase(ctx, sess, target.ID)
	if err != nil {
		t.Fatalf("begin purchase: %v", err)
	}
	if staged.EstimatedValue != 5000 {
		t.Fatalf("staged wrong item: %+v", staged)
	}

	doc, err = h.ConfirmFurniturePurchase(ctx, sess, 4500, "Ale", houseAll)
	if err != nil {
		t.Fatalf("confirm purchase: %v", err)
	}

	if len(doc.Bills) != 1 {
		t.Fatalf("expected one bill, got %d", len(doc.Bills))
	}
	bill := doc.Bills[0]
	if bill.Amount != 4500 {
		t.Fatalf("real price 4500 should win over the estimate, got %v", bill.Amount)
	}
	if bill.Category != core.CategoryFurniture {
		t.Fatalf("expected furniture category, got %s", bill.Category)
	}
	if bill.Description != "Furniture purchase: sofa" {
		t.Fatalf("unexpected description %q", bill.Description)
	}

	var bought, wished int
	for _, f := range doc.Furniture {
		switch f.Status {
		case core.FurnitureBought:
			bought++
			if f.ID != target.ID {
				t.Fatalf("wrong item flipped: %+v", f)
			}
		case core.FurnitureWish:
			wished++
		}
	}
	if bought != 1 || wished != 1 {
		t.Fatalf("expected exactly one bought and one wish, got %d/%d", bought, wished)
	}

	if sess.PendingFurniture() != "" {
		t.Fatalf("pending purchase should be cleared after confirmation")
	}
}

func TestConfirmFurniturePurchaseEstimateFallback(t *testing.T) {
	h := newTestHousehold(t, memory.New())
	ctx := context.Background()

	doc, err := h.AddFurnitureItem(ctx, core.ContextHouse, "lamp", 800, "")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if doc.Furniture[0].TargetDate != core.NoDate {
		t.Fatalf("missing target date should default to %q", core.NoDate)
	}

	sess := session.New()
	if _, err := h.BeginFurniturePurchase(ctx, sess, doc.Furniture[0].ID); err != nil {
		t.Fatalf("begin: %v", err)
	}
	doc, err = h.ConfirmFurniturePurchase(ctx, sess, -1, "Ale", houseAll)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if doc.Bills[0].Amount != 800 {
		t.Fatalf("negative real price should fall back to the estimate, got %v", doc.Bills[0].Amount)
	}
}

func TestConfirmFurniturePurchaseNothingPending(t *testing.T) {
	h := newTestHousehold(t, memory.New())
	sess := session.New()
	if _, err := h.ConfirmFurniturePurchase(context.Background(), sess, 100, "Ale", houseAll); !errors.Is(err, ErrNothingPending) {
		t.Fatalf("expected ErrNothingPending, got %v", err)
	}
}

func TestBeginFurniturePurchaseUnknownItem(t *testing.T) {
	h := newTestHousehold(t, memory.New())
	sess := session.New()
	if _, err := h.BeginFurniturePurchase(context.Background(), sess, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBeginFurniturePurchaseAlreadyBought(t *testing.T) {
	h := newTestHousehold(t, memory.New())
	ctx := context.Background()

	doc, err := h.AddFurnitureItem(ctx, core.ContextHouse, "desk", 1200, "")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	id := doc.Furniture[0].ID

	sess := session.New()
	if _, err := h.BeginFurniturePurchase(ctx, sess, id); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := h.ConfirmFurniturePurchase(ctx, sess, -1, "Ale", houseAll); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if _, err := h.BeginFurniturePurchase(ctx, sess, id); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("bought item should not be purchasable again, got %v", err)
	}
}

func TestLoadFailure(t *testing.T) {
	st := memory.New()
	st.FailLoad = errors.New("connection refused")
	h := newTestHousehold(t, st)

	if _, err := h.Document(context.Background()); !errors.Is(err, ErrPersistenceUnavailable) {
		t.Fatalf("expected ErrPersistenceUnavailable, got %v", err)
	}

	// Once the backend recovers everything works.
	st.FailLoad = nil
	if _, err := h.Document(context.Background()); err != nil {
		t.Fatalf("document after recovery: %v", err)
	}
}

func TestConcurrentMutationsAreSerialized(t *testing.T) {
	st := memory.New()
	h := NewHousehold(st, core.DefaultRoster(), WithClock(fixedClock()))
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.AddShoppingItem(ctx, core.ContextHouse, fmt.Sprintf("item-%d", i))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("writer %d: %v", i, err)
		}
	}

	doc, err := h.Document(ctx)
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	if len(doc.Shopping) != writers {
		t.Fatalf("expected %d items, got %d", writers, len(doc.Shopping))
	}
	if h.Dirty() {
		t.Fatalf("all writes persisted, nothing should be dirty")
	}
	if st.Saves() != writers {
		t.Fatalf("expected %d saves, got %d", writers, st.Saves())
	}
}

type recordingNotifier struct {
	revisions []int64
	err       error
}

func (n *recordingNotifier) PublishDocumentSaved(_ context.Context, revision int64) error {
	if n.err != nil {
		return n.err
	}
	n.revisions = append(n.revisions, revision)
	return nil
}

func TestNotifierPublishedOnSave(t *testing.T) {
	notifier := &recordingNotifier{}
	h := NewHousehold(memory.New(), core.DefaultRoster(),
		WithClock(fixedClock()),
		WithIDGenerator(sequentialIDs()),
		WithNotifier(notifier))

	ctx := context.Background()
	if _, err := h.AddShoppingItem(ctx, core.ContextHouse, "milk"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := h.AddShoppingItem(ctx, core.ContextHouse, "bread"); err != nil {
		t.Fatalf("add: %v", err)
	}

	if len(notifier.revisions) != 2 || notifier.revisions[0] != 1 || notifier.revisions[1] != 2 {
		t.Fatalf("expected revisions [1 2], got %v", notifier.revisions)
	}
}

func TestNotifierFailureDoesNotFailMutation(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("broker down")}
	h := NewHousehold(memory.New(), core.DefaultRoster(),
		WithClock(fixedClock()),
		WithIDGenerator(sequentialIDs()),
		WithNotifier(notifier))

	if _, err := h.AddShoppingItem(context.Background(), core.ContextHouse, "milk"); err != nil {
		t.Fatalf("mutation must succeed despite notifier failure, got %v", err)
	}
}
