package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Document is the whole unit of persistence: every collection in one record,
// read in full before any read and written in full after any mutation.
type Document struct {
	Tasks     []Task          `json:"tasks"`
	Bills     []Bill          `json:"bills"`
	Shopping  []ShoppingItem  `json:"shopping"`
	Furniture []FurnitureItem `json:"furniture"`
}

// NewDocument returns an empty document with all four collections allocated,
// the shape an empty store hands back on first load.
func NewDocument() Document {
	return Document{
		Tasks:     []Task{},
		Bills:     []Bill{},
		Shopping:  []ShoppingItem{},
		Furniture: []FurnitureItem{},
	}
}

// Clone returns a deep copy. Mutations are applied to a clone first so a
// validation failure never leaves the cached document half-changed.
func (d Document) Clone() Document {
	out := Document{
		Tasks:     make([]Task, len(d.Tasks)),
		Bills:     make([]Bill, len(d.Bills)),
		Shopping:  make([]ShoppingItem, len(d.Shopping)),
		Furniture: make([]FurnitureItem, len(d.Furniture)),
	}
	copy(out.Tasks, d.Tasks)
	copy(out.Shopping, d.Shopping)
	copy(out.Furniture, d.Furniture)
	for i, t := range d.Tasks {
		out.Tasks[i].Assignees = append([]string(nil), t.Assignees...)
	}
	for i, b := range d.Bills {
		out.Bills[i] = b
		out.Bills[i].Debtors = append([]string(nil), b.Debtors...)
	}
	return out
}

// Encode serializes the document as the JSON blob stored by the backends.
func (d Document) Encode() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// DecodeDocument parses stored content. Empty content means no prior state and
// yields a fresh document; malformed content is a load failure, not a crash.
func DecodeDocument(data []byte) (Document, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return NewDocument(), nil
	}
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	if d.Tasks == nil {
		d.Tasks = []Task{}
	}
	if d.Bills == nil {
		d.Bills = []Bill{}
	}
	if d.Shopping == nil {
		d.Shopping = []ShoppingItem{}
	}
	if d.Furniture == nil {
		d.Furniture = []FurnitureItem{}
	}
	return d, nil
}

// Scoped is any entity tagged with a context.
type Scoped interface {
	Scope() Context
}

func (t Task) Scope() Context          { return t.Context }
func (b Bill) Scope() Context          { return b.Context }
func (i ShoppingItem) Scope() Context  { return i.Context }
func (f FurnitureItem) Scope() Context { return f.Context }

// FilterByContext returns the entities belonging to the given context,
// preserving their relative order.
func FilterByContext[T Scoped](items []T, c Context) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if it.Scope() == c {
			out = append(out, it)
		}
	}
	return out
}

// TasksIn, BillsIn, ShoppingIn and FurnitureIn are the context slices the UI
// reads before rendering anything.
func (d Document) TasksIn(c Context) []Task                  { return FilterByContext(d.Tasks, c) }
func (d Document) BillsIn(c Context) []Bill                  { return FilterByContext(d.Bills, c) }
func (d Document) ShoppingIn(c Context) []ShoppingItem       { return FilterByContext(d.Shopping, c) }
func (d Document) FurnitureIn(c Context) []FurnitureItem     { return FilterByContext(d.Furniture, c) }

// PendingTasksFor returns the not-yet-done tasks assigned to one person in a
// context, in stored order.
func (d Document) PendingTasksFor(c Context, person string) []Task {
	out := make([]Task, 0)
	for _, t := range d.TasksIn(c) {
		if t.Status == TaskDone {
			continue
		}
		for _, a := range t.Assignees {
			if a == person {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// FindShopping locates a shopping item by id within a context. Items in the
// other context are invisible even when they share a name.
func (d *Document) FindShopping(c Context, id string) *ShoppingItem {
	for i := range d.Shopping {
		if d.Shopping[i].ID == id && d.Shopping[i].Context == c {
			return &d.Shopping[i]
		}
	}
	return nil
}

// FindFurniture locates a furniture item by id within a context.
func (d *Document) FindFurniture(c Context, id string) *FurnitureItem {
	for i := range d.Furniture {
		if d.Furniture[i].ID == id && d.Furniture[i].Context == c {
			return &d.Furniture[i]
		}
	}
	return nil
}

// FindTask locates a task by id within a context.
func (d *Document) FindTask(c Context, id string) *Task {
	for i := range d.Tasks {
		if d.Tasks[i].ID == id && d.Tasks[i].Context == c {
			return &d.Tasks[i]
		}
	}
	return nil
}

// HasShoppingName reports whether a name is already taken within a context.
// Uniqueness is enforced per context only.
func (d Document) HasShoppingName(c Context, name string) bool {
	for _, it := range d.Shopping {
		if it.Context == c && it.Name == name {
			return true
		}
	}
	return false
}
