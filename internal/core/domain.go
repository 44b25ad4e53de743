package core

import (
	"errors"
	"strings"
)

const (
	ContextHouse Context = "house"
	ContextCat   Context = "cat"
)

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

const (
	ShoppingToBuy ShoppingStatus = "buy"
	ShoppingHave  ShoppingStatus = "have"
)

const (
	FurnitureWish   FurnitureStatus = "wish"
	FurnitureBought FurnitureStatus = "bought"
)

const (
	CategoryFood           BillCategory = "food"
	CategoryUtilities      BillCategory = "utilities"
	CategoryHousehold      BillCategory = "household"
	CategoryOuting         BillCategory = "outing"
	CategoryDebtSettlement BillCategory = "debt_settlement"
	CategoryFurniture      BillCategory = "furniture"
	CategorySupermarket    BillCategory = "supermarket"
)

// NoDate marks an absent due or target date.
const NoDate = "none"

type (
	Context         string
	TaskStatus      string
	ShoppingStatus  string
	FurnitureStatus string
	BillCategory    string

	// Bill is one shared expense. Amount is split evenly across Debtors;
	// the payer's own share nets out to zero.
	Bill struct {
		Date        string       `json:"date"`
		Amount      float64      `json:"amount"`
		Category    BillCategory `json:"category"`
		Description string       `json:"description"`
		Payer       string       `json:"payer"`
		Debtors     []string     `json:"debtors"`
		Context     Context      `json:"context"`
	}

	Task struct {
		ID         string     `json:"id"`
		Title      string     `json:"title"`
		Assignees  []string   `json:"assignees"`
		Status     TaskStatus `json:"status"`
		Importance int        `json:"importance"`
		Created    string     `json:"created"`
		Due        string     `json:"due"`
		Context    Context    `json:"context"`
	}

	ShoppingItem struct {
		ID      string         `json:"id"`
		Name    string         `json:"name"`
		Status  ShoppingStatus `json:"status"`
		Context Context        `json:"context"`
	}

	FurnitureItem struct {
		ID             string          `json:"id"`
		Name           string          `json:"name"`
		EstimatedValue float64         `json:"estimatedValue"`
		TargetDate     string          `json:"targetDate"`
		Status         FurnitureStatus `json:"status"`
		Context        Context         `json:"context"`
	}

	// Roster is the static participant configuration: three house members,
	// two of which are the cat parents.
	Roster struct {
		House []string
		Cat   []string
	}
)

var (
	ErrInvalidContext  = errors.New("invalid context")
	ErrNegativeAmount  = errors.New("amount cannot be negative")
	ErrNoDebtors       = errors.New("debtor set cannot be empty")
	ErrEmptyPayer      = errors.New("payer cannot be empty")
	ErrEmptyTitle      = errors.New("title cannot be empty")
	ErrEmptyName       = errors.New("name cannot be empty")
	ErrInvalidCategory = errors.New("invalid bill category")
	ErrBadImportance   = errors.New("importance must be between 1 and 3")
	ErrNotFound        = errors.New("not found")
	ErrDuplicateItem   = errors.New("item already on the shopping list")
)

// DefaultRoster returns the household this tool was built for.
func DefaultRoster() Roster {
	return Roster{
		House: []string{"Ale", "Ferb", "Fandi"},
		Cat:   []string{"Ale", "Fandi"},
	}
}

// Participants returns the active participant set for a context.
func (r Roster) Participants(c Context) []string {
	if c == ContextCat {
		return r.Cat
	}
	return r.House
}

// Contains reports whether name is a member of the given context.
func (r Roster) Contains(c Context, name string) bool {
	for _, p := range r.Participants(c) {
		if p == name {
			return true
		}
	}
	return false
}

func (c Context) Validate() error {
	switch c {
	case ContextHouse, ContextCat:
		return nil
	}
	return ErrInvalidContext
}

func (cat BillCategory) Validate() error {
	switch cat {
	case CategoryFood, CategoryUtilities, CategoryHousehold, CategoryOuting,
		CategoryDebtSettlement, CategoryFurniture, CategorySupermarket:
		return nil
	}
	return ErrInvalidCategory
}

func (s TaskStatus) Validate() error {
	switch s {
	case TaskPending, TaskInProgress, TaskDone:
		return nil
	}
	return errors.New("invalid task status")
}

func (b Bill) Validate() error {
	if err := b.Context.Validate(); err != nil {
		return err
	}
	if err := b.Category.Validate(); err != nil {
		return err
	}
	if b.Amount < 0 {
		return ErrNegativeAmount
	}
	if strings.TrimSpace(b.Payer) == "" {
		return ErrEmptyPayer
	}
	if len(b.Debtors) == 0 {
		return ErrNoDebtors
	}
	return nil
}

// Share is the per-debtor portion of the bill. Zero when the bill has no
// debtors, so callers never divide by zero.
func (b Bill) Share() float64 {
	if len(b.Debtors) == 0 {
		return 0
	}
	return b.Amount / float64(len(b.Debtors))
}

func (t Task) Validate() error {
	if err := t.Context.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTitle
	}
	if t.Importance < 1 || t.Importance > 3 {
		return ErrBadImportance
	}
	return t.Status.Validate()
}

func (i ShoppingItem) Validate() error {
	if err := i.Context.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(i.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (f FurnitureItem) Validate() error {
	if err := f.Context.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(f.Name) == "" {
		return ErrEmptyName
	}
	if f.EstimatedValue < 0 {
		return ErrNegativeAmount
	}
	return nil
}
