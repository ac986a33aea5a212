package syncer

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/tripdeck/tripdeck/internal/session"
	"github.com/tripdeck/tripdeck/internal/store"
	"github.com/tripdeck/tripdeck/internal/trip"
)

// Budget mirrors the expense collection and derives spending totals.
//
// Amounts arrive from edit widgets as text; the synchronizer coerces
// them to numbers before anything is persisted, so stored amounts are
// always numeric.
type Budget struct {
	sess     *session.Session
	logger   *log.Logger
	toast    Toaster
	onChange func()

	mu       sync.Mutex
	expenses []trip.Expense

	sub  *store.Subscription
	done chan struct{}
	wg   sync.WaitGroup
}

// NewBudget creates the budget synchronizer.
func NewBudget(sess *session.Session, cfg *Config) *Budget {
	if cfg == nil {
		cfg = &Config{}
	}
	logger, toaster, onChange := cfg.normalize("[budget] ")
	return &Budget{
		sess:     sess,
		logger:   logger,
		toast:    toaster,
		onChange: onChange,
		done:     make(chan struct{}),
	}
}

// Start opens the collection subscription and begins mirroring.
func (b *Budget) Start(ctx context.Context) error {
	if !ready(b.sess) {
		return ErrNotReady
	}

	sub, err := b.sess.Store.Subscribe(ctx, trip.BudgetCollection(b.sess.TripID))
	if err != nil {
		return fmt.Errorf("failed to subscribe to budget: %w", err)
	}
	b.sub = sub

	b.wg.Add(1)
	go b.consume()
	return nil
}

// Stop tears down the subscription and waits for the consumer to exit.
func (b *Budget) Stop() {
	close(b.done)
	if b.sub != nil {
		b.sub.Cancel()
	}
	b.wg.Wait()
}

func (b *Budget) consume() {
	defer b.wg.Done()

	for {
		select {
		case <-b.done:
			return
		case docs, ok := <-b.sub.Snapshots():
			if !ok {
				return
			}
			expenses := decodeAll[trip.Expense](docs, b.logger,
				func(e *trip.Expense, id string) { e.ID = id })
			b.mu.Lock()
			b.expenses = expenses
			b.mu.Unlock()
			b.onChange()
		}
	}
}

// Expenses returns the current expense mirror.
func (b *Budget) Expenses() []trip.Expense {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]trip.Expense, len(b.expenses))
	copy(out, b.expenses)
	return out
}

// TotalSpent returns the sum of all expense amounts; 0 for an empty set.
func (b *Budget) TotalSpent() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	var total float64
	for _, e := range b.expenses {
		total += e.Amount
	}
	return total
}

// SpentPerPerson divides total spending by the participant count.
// A non-positive participant count is treated as 1.
func (b *Budget) SpentPerPerson(participants int) float64 {
	if participants <= 0 {
		participants = 1
	}
	return b.TotalSpent() / float64(participants)
}

// parseAmount coerces an amount field from edit-widget text.
func parseAmount(text string) (float64, error) {
	amount, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: amount must be a number", ErrValidation)
	}
	return amount, nil
}

// Add creates a new expense. Description and amount must both be
// non-empty; a validation failure is toasted and no write is attempted.
func (b *Budget) Add(ctx context.Context, description, amountText, category string) error {
	if !ready(b.sess) {
		return ErrNotReady
	}

	if strings.TrimSpace(description) == "" || strings.TrimSpace(amountText) == "" {
		b.toast.Toast("An expense needs a description and an amount.")
		return fmt.Errorf("%w: description and amount are required", ErrValidation)
	}
	amount, err := parseAmount(amountText)
	if err != nil {
		b.toast.Toast("An expense amount must be a number.")
		return err
	}
	if category == "" {
		category = trip.CategoryOther
	}

	expense := trip.Expense{Description: description, Amount: amount, Category: category}
	if _, err := b.sess.Store.Add(ctx, trip.BudgetCollection(b.sess.TripID), expense); err != nil {
		return fmt.Errorf("failed to add expense: %w", err)
	}

	b.toast.Toast("New expense added.")
	return nil
}

// StageEdit returns a full copy of one expense for editing.
func (b *Budget) StageEdit(id string) (trip.Expense, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range b.expenses {
		if e.ID == id {
			return e, nil
		}
	}
	return trip.Expense{}, fmt.Errorf("no expense with id %s", id)
}

// CommitEdit writes all fields of a staged expense atomically, coercing
// the amount from text.
func (b *Budget) CommitEdit(ctx context.Context, id, description, amountText, category string) error {
	if !ready(b.sess) {
		return ErrNotReady
	}

	amount, err := parseAmount(amountText)
	if err != nil {
		b.toast.Toast("An expense amount must be a number.")
		return err
	}

	path := store.JoinPath(trip.BudgetCollection(b.sess.TripID), id)
	fields := map[string]any{
		"description": description,
		"amount":      amount,
		"category":    category,
	}
	if err := b.sess.Store.Update(ctx, path, fields); err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}

	b.toast.Toast("Expense updated.")
	return nil
}

// Remove deletes the expense with the given ID.
func (b *Budget) Remove(ctx context.Context, id string) error {
	if !ready(b.sess) {
		return ErrNotReady
	}

	path := store.JoinPath(trip.BudgetCollection(b.sess.TripID), id)
	if err := b.sess.Store.Delete(ctx, path); err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}

	b.toast.Toast("Expense deleted.")
	return nil
}
