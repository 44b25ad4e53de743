package http

import (
	"net/http"

	"roomie/internal/core"
	"roomie/internal/ledger"
	"roomie/internal/service"
	"roomie/internal/session"
)

type sessionResponse struct {
	CatMode      bool         `json:"catMode"`
	Context      core.Context `json:"context"`
	Mode         session.Mode `json:"mode"`
	Participants []string     `json:"participants"`
	CartTotal    float64      `json:"cartTotal"`
	PendingItem  string       `json:"pendingFurniture,omitempty"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(r)
	writeJSON(w, http.StatusOK, sessionResponse{
		CatMode:      sess.CatMode(),
		Context:      sess.Context(),
		Mode:         sess.Mode(),
		Participants: s.svc.Roster().Participants(sess.Context()),
		CartTotal:    sess.CartTotal(),
		PendingItem:  sess.PendingFurniture(),
	})
}

func (s *Server) handleSetCatMode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeBody(r, &body); err != nil {
		badRequest(w, err)
		return
	}
	sess := s.sessionFor(r)
	sess.SetCatMode(body.Enabled)
	s.handleGetSession(w, r)
}

func (s *Server) handleSetShoppingMode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Shopping bool `json:"shopping"`
	}
	if err := decodeBody(r, &body); err != nil {
		badRequest(w, err)
		return
	}
	sess := s.sessionFor(r)
	// Toggling back to planning keeps the cart: it survives mode switches and
	// only a successful checkout clears it.
	if body.Shopping {
		sess.SetMode(session.ModeShopping)
	} else {
		sess.SetMode(session.ModePlanning)
	}
	s.handleGetSession(w, r)
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	scope, err := s.scopeFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := s.svc.Document(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, core.Document{
		Tasks:     doc.TasksIn(scope),
		Bills:     doc.BillsIn(scope),
		Shopping:  doc.ShoppingIn(scope),
		Furniture: doc.FurnitureIn(scope),
	})
}

type balanceEntry struct {
	Name     string          `json:"name"`
	Balance  float64         `json:"balance"`
	Standing ledger.Standing `json:"standing"`
}

func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	scope, err := s.scopeFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	balances, err := s.svc.Balances(r.Context(), scope)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Roster order keeps the response deterministic.
	participants := s.svc.Roster().Participants(scope)
	out := make([]balanceEntry, 0, len(participants))
	for _, p := range participants {
		b := balances[p]
		out = append(out, balanceEntry{Name: p, Balance: b, Standing: ledger.StandingOf(b)})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"context":  scope,
		"balances": out,
	})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	scope, err := s.scopeFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := s.svc.Document(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if person := r.URL.Query().Get("assignee"); person != "" {
		writeJSON(w, http.StatusOK, doc.PendingTasksFor(scope, person))
		return
	}
	writeJSON(w, http.StatusOK, doc.TasksIn(scope))
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title      string   `json:"title"`
		Assignees  []string `json:"assignees"`
		Importance int      `json:"importance"`
		Due        string   `json:"due"`
	}
	if err := decodeBody(r, &body); err != nil {
		badRequest(w, err)
		return
	}
	scope, err := s.scopeFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := s.svc.CreateTask(r.Context(), scope, service.TaskInput{
		Title:      body.Title,
		Assignees:  body.Assignees,
		Importance: body.Importance,
		Due:        body.Due,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc.TasksIn(scope))
}

func (s *Server) handleUpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status core.TaskStatus `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		badRequest(w, err)
		return
	}
	scope, err := s.scopeFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := s.svc.UpdateTaskStatus(r.Context(), scope, r.PathValue("id"), body.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc.TasksIn(scope))
}

func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	scope, err := s.scopeFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := s.svc.Document(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc.BillsIn(scope))
}

func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Date        string            `json:"date"`
		Amount      float64           `json:"amount"`
		Category    core.BillCategory `json:"category"`
		Description string            `json:"description"`
		Payer       string            `json:"payer"`
		Debtors     []string          `json:"debtors"`
	}
	if err := decodeBody(r, &body); err != nil {
		badRequest(w, err)
		return
	}
	scope, err := s.scopeFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := s.svc.CreateBill(r.Context(), scope, service.BillInput{
		Date:        body.Date,
		Amount:      body.Amount,
		Category:    body.Category,
		Description: body.Description,
		Payer:       body.Payer,
		Debtors:     body.Debtors,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc.BillsIn(scope))
}

func (s *Server) handleListShopping(w http.ResponseWriter, r *http.Request) {
	scope, err := s.scopeFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := s.svc.Document(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc.ShoppingIn(scope))
}

func (s *Server) handleAddShoppingItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		badRequest(w, err)
		return
	}
	scope, err := s.scopeFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := s.svc.AddShoppingItem(r.Context(), scope, body.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc.ShoppingIn(scope))
}

func (s *Server) handleToggleShoppingItem(w http.ResponseWriter, r *http.Request) {
	scope, err := s.scopeFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := s.svc.ToggleShoppingItemStatus(r.Context(), scope, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc.ShoppingIn(scope))
}

func (s *Server) handleRemoveShoppingItem(w http.ResponseWriter, r *http.Request) {
	scope, err := s.scopeFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := s.svc.RemoveShoppingItem(r.Context(), scope, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc.ShoppingIn(scope))
}

type cartResponse struct {
	Items []session.CartEntry `json:"items"`
	Total float64             `json:"total"`
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(r)
	writeJSON(w, http.StatusOK, cartResponse{
		Items: sess.CartSnapshot(),
		Total: sess.CartTotal(),
	})
}

func (s *Server) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		badRequest(w, err)
		return
	}
	sess := s.sessionFor(r)
	sess.AddToCart(body.Name)
	writeJSON(w, http.StatusOK, cartResponse{Items: sess.CartSnapshot(), Total: sess.CartTotal()})
}

func (s *Server) handleSetCartPrice(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Price float64 `json:"price"`
	}
	if err := decodeBody(r, &body); err != nil {
		badRequest(w, err)
		return
	}
	sess := s.sessionFor(r)
	if err := sess.SetCartPrice(r.PathValue("name"), body.Price); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse{Items: sess.CartSnapshot(), Total: sess.CartTotal()})
}

func (s *Server) handleRemoveFromCart(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(r)
	sess.RemoveFromCart(r.PathValue("name"))
	writeJSON(w, http.StatusOK, cartResponse{Items: sess.CartSnapshot(), Total: sess.CartTotal()})
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Payer   string   `json:"payer"`
		Debtors []string `json:"debtors"`
	}
	if err := decodeBody(r, &body); err != nil {
		badRequest(w, err)
		return
	}
	sess := s.sessionFor(r)
	doc, err := s.svc.Checkout(r.Context(), sess, body.Payer, body.Debtors)
	if err != nil {
		writeError(w, r, err)
		return
	}
	scope := sess.Context()
	writeJSON(w, http.StatusCreated, map[string]any{
		"bills":    doc.BillsIn(scope),
		"shopping": doc.ShoppingIn(scope),
	})
}

func (s *Server) handleListFurniture(w http.ResponseWriter, r *http.Request) {
	scope, err := s.scopeFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := s.svc.Document(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc.FurnitureIn(scope))
}

func (s *Server) handleAddFurniture(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name           string  `json:"name"`
		EstimatedValue float64 `json:"estimatedValue"`
		TargetDate     string  `json:"targetDate"`
	}
	if err := decodeBody(r, &body); err != nil {
		badRequest(w, err)
		return
	}
	scope, err := s.scopeFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := s.svc.AddFurnitureItem(r.Context(), scope, body.Name, body.EstimatedValue, body.TargetDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc.FurnitureIn(scope))
}

func (s *Server) handleBeginFurniturePurchase(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(r)
	item, err := s.svc.BeginFurniturePurchase(r.Context(), sess, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleConfirmFurniturePurchase(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Price   *float64 `json:"price"`
		Payer   string   `json:"payer"`
		Debtors []string `json:"debtors"`
	}
	if err := decodeBody(r, &body); err != nil {
		badRequest(w, err)
		return
	}
	// Absent price falls back to the item's estimate.
	price := -1.0
	if body.Price != nil {
		price = *body.Price
	}
	sess := s.sessionFor(r)
	doc, err := s.svc.ConfirmFurniturePurchase(r.Context(), sess, price, body.Payer, body.Debtors)
	if err != nil {
		writeError(w, r, err)
		return
	}
	scope := sess.Context()
	writeJSON(w, http.StatusCreated, map[string]any{
		"bills":     doc.BillsIn(scope),
		"furniture": doc.FurnitureIn(scope),
	})
}

func (s *Server) handleCancelFurniturePurchase(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(r)
	s.svc.CancelFurniturePurchase(sess)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}
