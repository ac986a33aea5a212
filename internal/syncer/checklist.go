package syncer

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/tripdeck/tripdeck/internal/session"
	"github.com/tripdeck/tripdeck/internal/store"
	"github.com/tripdeck/tripdeck/internal/trip"
)

// Checklist mirrors the checklist collection. Order is irrelevant;
// snapshots are adopted as delivered.
type Checklist struct {
	sess     *session.Session
	logger   *log.Logger
	toast    Toaster
	onChange func()

	mu    sync.Mutex
	items []trip.ChecklistItem

	sub  *store.Subscription
	done chan struct{}
	wg   sync.WaitGroup
}

// NewChecklist creates the checklist synchronizer.
func NewChecklist(sess *session.Session, cfg *Config) *Checklist {
	if cfg == nil {
		cfg = &Config{}
	}
	logger, toaster, onChange := cfg.normalize("[checklist] ")
	return &Checklist{
		sess:     sess,
		logger:   logger,
		toast:    toaster,
		onChange: onChange,
		done:     make(chan struct{}),
	}
}

// Start opens the collection subscription and begins mirroring.
func (c *Checklist) Start(ctx context.Context) error {
	if !ready(c.sess) {
		return ErrNotReady
	}

	sub, err := c.sess.Store.Subscribe(ctx, trip.ChecklistCollection(c.sess.TripID))
	if err != nil {
		return fmt.Errorf("failed to subscribe to checklist: %w", err)
	}
	c.sub = sub

	c.wg.Add(1)
	go c.consume()
	return nil
}

// Stop tears down the subscription and waits for the consumer to exit.
func (c *Checklist) Stop() {
	close(c.done)
	if c.sub != nil {
		c.sub.Cancel()
	}
	c.wg.Wait()
}

func (c *Checklist) consume() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		case docs, ok := <-c.sub.Snapshots():
			if !ok {
				return
			}
			items := decodeAll[trip.ChecklistItem](docs, c.logger,
				func(it *trip.ChecklistItem, id string) { it.ID = id })
			c.mu.Lock()
			c.items = items
			c.mu.Unlock()
			c.onChange()
		}
	}
}

// Items returns the current checklist mirror.
func (c *Checklist) Items() []trip.ChecklistItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]trip.ChecklistItem, len(c.items))
	copy(out, c.items)
	return out
}

// Progress returns the completion percentage: 0 for an empty list,
// otherwise 100 * completed / total. Rounding is the display's job.
func (c *Checklist) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.items) == 0 {
		return 0
	}
	completed := 0
	for _, it := range c.items {
		if it.Completed {
			completed++
		}
	}
	return 100 * float64(completed) / float64(len(c.items))
}

// Add creates a new unchecked item.
func (c *Checklist) Add(ctx context.Context, text string) error {
	if !ready(c.sess) {
		return ErrNotReady
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: task text is required", ErrValidation)
	}

	item := trip.ChecklistItem{Text: text, Completed: false}
	if _, err := c.sess.Store.Add(ctx, trip.ChecklistCollection(c.sess.TripID), item); err != nil {
		return fmt.Errorf("failed to add checklist item: %w", err)
	}

	c.toast.Toast("New task added!")
	return nil
}

// Toggle flips the completed flag of the item with the given ID.
func (c *Checklist) Toggle(ctx context.Context, id string) error {
	if !ready(c.sess) {
		return ErrNotReady
	}

	c.mu.Lock()
	var current *trip.ChecklistItem
	for i := range c.items {
		if c.items[i].ID == id {
			current = &c.items[i]
			break
		}
	}
	if current == nil {
		c.mu.Unlock()
		return fmt.Errorf("no checklist item with id %s", id)
	}
	completed := current.Completed
	c.mu.Unlock()

	path := store.JoinPath(trip.ChecklistCollection(c.sess.TripID), id)
	if err := c.sess.Store.Update(ctx, path, map[string]any{"completed": !completed}); err != nil {
		return fmt.Errorf("failed to toggle checklist item: %w", err)
	}
	return nil
}

// Remove deletes the item with the given ID.
func (c *Checklist) Remove(ctx context.Context, id string) error {
	if !ready(c.sess) {
		return ErrNotReady
	}

	path := store.JoinPath(trip.ChecklistCollection(c.sess.TripID), id)
	if err := c.sess.Store.Delete(ctx, path); err != nil {
		return fmt.Errorf("failed to delete checklist item: %w", err)
	}

	c.toast.Toast("Task deleted.")
	return nil
}
