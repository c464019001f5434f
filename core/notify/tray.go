package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/usajili/core"
)

const DefaultMaxToasts = 5

var (
	ErrNotFound = errors.New("notification not found")
	ErrClosed   = errors.New("notification tray is shut down")

	NowFunc = time.Now // mockable
)

// Item is the client representation of an active toast.
type Item struct {
	ID            string    `json:"id"`
	Message       string    `json:"message"`
	Kind          Kind      `json:"kind"`
	AutoDismissMs int64     `json:"auto_dismiss_ms"`
	Style         Style     `json:"style"`
	CreatedAt     time.Time `json:"created_at"` // UTC
}

func newItem(n Notification) Item {
	return Item{
		ID:            uuid.New().String(),
		Message:       n.Message,
		Kind:          n.Kind,
		AutoDismissMs: n.AutoDismiss.Milliseconds(),
		Style:         n.Kind.Style(),
		CreatedAt:     NowFunc().UTC(),
	}
}

type entry struct {
	item  Item
	toast *Toast
}

// Tray holds the active toasts of every recipient (a student ID or an anonymous session key).
type Tray struct {
	store     Store
	log       core.Logger
	maxToasts int

	mu      sync.Mutex
	entries map[string][]*entry // oldest first
	closed  bool
}

// NewTray returns a Tray keeping at most maxToasts active toasts per recipient.
// Dismissed toasts are recorded in store when it is not nil.
func NewTray(store Store, logger core.Logger, maxToasts int) *Tray {
	if maxToasts <= 0 {
		maxToasts = DefaultMaxToasts
	}
	return &Tray{
		store:     store,
		log:       logger,
		maxToasts: maxToasts,
		entries:   make(map[string][]*entry),
	}
}

// Push shows n to recipient. The oldest toasts are closed when recipient has more than maxToasts.
func (tr *Tray) Push(recipient string, n Notification) (Item, error) {
	if err := n.Validate(); err != nil {
		return Item{}, err
	}
	n.Kind = n.Kind.OrDefault()

	item := newItem(n)
	onDismiss := n.OnDismiss
	n.OnDismiss = func() {
		tr.dismissed(recipient, item)
		if onDismiss != nil {
			onDismiss()
		}
	}

	tr.mu.Lock()
	if tr.closed {
		tr.mu.Unlock()
		return Item{}, ErrClosed
	}
	// shown under the lock so that an early expiry finds its entry
	ent := &entry{item: item, toast: Show(n)}
	ents := append(tr.entries[recipient], ent)
	if over := len(ents) - tr.maxToasts; over > 0 {
		// evicted toasts are closed under the lock
		for _, e := range ents[:over] {
			e.toast.Close()
		}
		ents = append([]*entry(nil), ents[over:]...)
	}
	tr.entries[recipient] = ents
	tr.mu.Unlock()
	return item, nil
}

// Active returns the active toasts of recipient, oldest first.
func (tr *Tray) Active(recipient string) []Item {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	items := make([]Item, 0, len(tr.entries[recipient]))
	for _, e := range tr.entries[recipient] {
		items = append(items, e.item)
	}
	return items
}

// Dismiss dismisses the toast id of recipient by hand.
func (tr *Tray) Dismiss(recipient, id string) error {
	e := tr.find(recipient, id)
	if e == nil || !e.toast.Dismiss() {
		return ErrNotFound
	}
	return nil
}

// Reschedule restarts the auto-dismiss timer of the toast id with delay d.
func (tr *Tray) Reschedule(recipient, id string, d time.Duration) (Item, error) {
	if d < 0 {
		return Item{}, core.NewValidationError(nil, core.FieldError{Field: "auto_dismiss_ms", Error: "must be greater than or equal to 0"})
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()
	for _, e := range tr.entries[recipient] {
		if e.item.ID != id {
			continue
		}
		if !e.toast.Reschedule(d) {
			return Item{}, ErrNotFound
		}
		e.item.AutoDismissMs = d.Milliseconds()
		return e.item, nil
	}
	return Item{}, ErrNotFound
}

// DismissAll dismisses every active toast of recipient and returns how many were dismissed.
func (tr *Tray) DismissAll(recipient string) int {
	tr.mu.Lock()
	ents := append([]*entry(nil), tr.entries[recipient]...)
	tr.mu.Unlock()

	var count int
	for _, e := range ents {
		if e.toast.Dismiss() {
			count++
		}
	}
	return count
}

// History returns the latest dismissed notifications of recipient, newest first.
func (tr *Tray) History(ctx context.Context, recipient string, limit int) ([]Record, error) {
	if tr.store == nil {
		return []Record{}, nil
	}
	return tr.store.List(ctx, recipient, limit)
}

// Shutdown closes every active toast and releases their timers. Pushing afterwards fails with ErrClosed.
func (tr *Tray) Shutdown() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.closed = true
	for _, ents := range tr.entries {
		for _, e := range ents {
			e.toast.Close()
		}
	}
	tr.entries = make(map[string][]*entry)
}

func (tr *Tray) find(recipient, id string) *entry {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for _, e := range tr.entries[recipient] {
		if e.item.ID == id {
			return e
		}
	}
	return nil
}

func (tr *Tray) dismissed(recipient string, item Item) {
	tr.mu.Lock()
	ents := tr.entries[recipient]
	for i, e := range ents {
		if e.item.ID == item.ID {
			ents = append(ents[:i:i], ents[i+1:]...)
			break
		}
	}
	if len(ents) == 0 {
		delete(tr.entries, recipient)
	} else {
		tr.entries[recipient] = ents
	}
	tr.mu.Unlock()

	if tr.store == nil {
		return
	}
	rec := Record{
		ID:          item.ID,
		Recipient:   recipient,
		Message:     item.Message,
		Kind:        item.Kind,
		CreatedAt:   item.CreatedAt,
		DismissedAt: NowFunc().UTC(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tr.store.Save(ctx, rec); err != nil && tr.log != nil {
		tr.log.Error(errors.Wrap(err, "saving notification history").Error(), err)
	}
}
