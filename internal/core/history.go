package core

import (
	"context"
	"sync"

	"worldbuilder/pkg/domain"
)

// HistoryEntry is one undoable step recorded by a per-session history.
type HistoryEntry interface {
	Execute(ctx context.Context) error
	Undo(ctx context.Context) error
}

// CommandHistory is a bounded linear undo log for one editing session. The
// current index points at the last applied entry; -1 means the original,
// pre-edit state. New executions discard any redoable tail, and once the
// depth bound forces the oldest entries out, IsTruncated stays set until
// Clear.
type CommandHistory struct {
	mu        sync.Mutex
	entries   []HistoryEntry
	current   int
	maxDepth  int
	truncated bool
}

// DefaultMaxHistoryDepth bounds histories constructed with a non-positive
// depth.
const DefaultMaxHistoryDepth = 64

// NewCommandHistory constructs an empty history bounded to maxDepth entries.
func NewCommandHistory(maxDepth int) *CommandHistory {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxHistoryDepth
	}
	return &CommandHistory{current: -1, maxDepth: maxDepth}
}

// Execute applies the entry and records it after the current index. Entries
// beyond the current index are discarded first, so redo is invalidated by a
// new edit. A failed entry is not recorded.
func (h *CommandHistory) Execute(ctx context.Context, entry HistoryEntry) error {
	if entry == nil {
		return domain.ArgumentError{Msg: "cannot execute a nil history entry"}
	}
	if err := entry.Execute(ctx); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries[:h.current+1], entry)
	h.current = len(h.entries) - 1
	if len(h.entries) > h.maxDepth {
		drop := len(h.entries) - h.maxDepth
		h.entries = append([]HistoryEntry(nil), h.entries[drop:]...)
		h.current -= drop
		h.truncated = true
	}
	return nil
}

// Undo reverts the current entry and steps the index back. It is a no-op at
// the original state.
func (h *CommandHistory) Undo(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.undoLocked(ctx)
}

func (h *CommandHistory) undoLocked(ctx context.Context) error {
	if h.current < 0 {
		return nil
	}
	if err := h.entries[h.current].Undo(ctx); err != nil {
		return err
	}
	h.current--
	return nil
}

// Redo re-applies the entry after the current index, if any.
func (h *CommandHistory) Redo(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.redoLocked(ctx)
}

func (h *CommandHistory) redoLocked(ctx context.Context) error {
	if h.current >= len(h.entries)-1 {
		return nil
	}
	if err := h.entries[h.current+1].Execute(ctx); err != nil {
		return err
	}
	h.current++
	return nil
}

// JumpTo undoes or redoes one step at a time until the current index equals
// target. A target of -1 returns to the original state; targets outside the
// reachable range are clamped, so truncated entries never cause an error.
func (h *CommandHistory) JumpTo(ctx context.Context, target int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if target < -1 {
		target = -1
	}
	if target > len(h.entries)-1 {
		target = len(h.entries) - 1
	}
	for h.current > target {
		if err := h.undoLocked(ctx); err != nil {
			return err
		}
	}
	for h.current < target {
		if err := h.redoLocked(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Clear empties the log and resets both the index and the truncation flag.
func (h *CommandHistory) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
	h.current = -1
	h.truncated = false
}

// CurrentIndex returns the index of the last applied entry, or -1.
func (h *CommandHistory) CurrentIndex() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Len returns the number of recorded entries.
func (h *CommandHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// IsTruncated reports whether the depth bound has ever evicted entries since
// the last Clear.
func (h *CommandHistory) IsTruncated() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.truncated
}
