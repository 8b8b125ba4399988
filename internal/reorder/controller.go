// Package reorder keeps a client-side ordering of problems in sync with the
// store while the user drags items around.
package reorder

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/abhisek/codecoach/internal/problem"
)

// Store is the subset of the problem API the controller needs.
type Store interface {
	ListProblems(ctx context.Context) ([]problem.Problem, error)
	ReorderProblems(ctx context.Context, batch []problem.RankUpdate) error
}

// Controller mirrors the displayed problem list. Moves are applied locally
// first and then persisted as one batch.
type Controller struct {
	store Store

	// persistMu serializes Persist so batches reach the store in order.
	persistMu sync.Mutex

	mu       sync.Mutex
	items    []problem.Problem
	lastGood []problem.Problem
}

// New returns an empty controller. Call Refresh to load the list.
func New(store Store) *Controller {
	return &Controller{store: store}
}

// Refresh replaces local state with the store's listing.
func (c *Controller) Refresh(ctx context.Context) error {
	list, err := c.store.ListProblems(ctx)
	if err != nil {
		return fmt.Errorf("list problems: %w", err)
	}
	problem.SortByOrder(list)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = list
	c.lastGood = slices.Clone(list)
	return nil
}

// Items returns a copy of the current order.
func (c *Controller) Items() []problem.Problem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items)
}

// ApplyMove moves sourceID to targetID's current position, shifting the
// elements in between by one. It reports whether anything changed; equal
// or unknown ids are a no-op.
func (c *Controller) ApplyMove(sourceID, targetID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applyMoveLocked(sourceID, targetID)
}

func (c *Controller) applyMoveLocked(sourceID, targetID string) bool {
	if sourceID == targetID {
		return false
	}
	from := c.indexLocked(sourceID)
	to := c.indexLocked(targetID)
	if from < 0 || to < 0 {
		return false
	}

	moved := c.items[from]
	c.items = slices.Delete(c.items, from, from+1)
	c.items = slices.Insert(c.items, to, moved)
	return true
}

// Batch pairs every problem with its zero-based position in the current
// order.
func (c *Controller) Batch() []problem.RankUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return batchOf(c.items)
}

// Move applies the move locally and then persists it. A no-op move sends
// nothing.
func (c *Controller) Move(ctx context.Context, sourceID, targetID string) error {
	if !c.ApplyMove(sourceID, targetID) {
		return nil
	}
	return c.Persist(ctx)
}

// Persist saves the current local order as one batch and then reloads the
// authoritative listing. When saving fails the list reverts to the last
// order the store confirmed and the error is returned.
func (c *Controller) Persist(ctx context.Context) error {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	batch := c.Batch()
	if err := c.store.ReorderProblems(ctx, batch); err != nil {
		c.mu.Lock()
		c.items = slices.Clone(c.lastGood)
		c.mu.Unlock()
		return fmt.Errorf("save order: %w", err)
	}

	if err := c.Refresh(ctx); err != nil {
		// The batch was stored, so it becomes the order to fall back to.
		c.mu.Lock()
		c.lastGood = reorderLike(c.lastGood, batch)
		c.mu.Unlock()
		return err
	}
	return nil
}

func (c *Controller) indexLocked(id string) int {
	return slices.IndexFunc(c.items, func(p problem.Problem) bool { return p.ID == id })
}

func batchOf(items []problem.Problem) []problem.RankUpdate {
	out := make([]problem.RankUpdate, len(items))
	for i, p := range items {
		out[i] = problem.RankUpdate{ID: p.ID, Order: i}
	}
	return out
}

// reorderLike arranges items in the order of batch. Items the batch does not
// name keep their relative order at the end.
func reorderLike(items []problem.Problem, batch []problem.RankUpdate) []problem.Problem {
	pos := make(map[string]int, len(batch))
	for _, u := range batch {
		pos[u.ID] = u.Order
	}
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b problem.Problem) int {
		pa, okA := pos[a.ID]
		pb, okB := pos[b.ID]
		switch {
		case okA && okB:
			return pa - pb
		case okA:
			return -1
		case okB:
			return 1
		}
		return 0
	})
	return out
}
