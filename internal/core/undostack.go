package core

import (
	"context"
	"sync"

	"worldbuilder/pkg/domain"
)

// CommandApplier applies a group of commands as one all-or-nothing
// transaction. EditorService is the production implementation.
type CommandApplier interface {
	ApplyGroup(ctx context.Context, cmds []Command) error
}

// UndoRedoStack is the cross-document grouped undo/redo stack: each pushed
// group is one logical user action that may span several documents and must
// undo atomically. It is distinct from the per-session CommandHistory and
// guarded by its own mutex.
type UndoRedoStack struct {
	mu      sync.Mutex
	applier CommandApplier
	limit   int
	undo    [][]Command
	redo    [][]Command
}

// DefaultHistoryLimit bounds stacks constructed with a non-positive limit.
const DefaultHistoryLimit = 32

// NewUndoRedoStack constructs an empty stack whose undo depth is bounded to
// limit groups.
func NewUndoRedoStack(applier CommandApplier, limit int) *UndoRedoStack {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &UndoRedoStack{applier: applier, limit: limit}
}

// Push records an already-applied command group and invalidates any redoable
// groups. Once the limit is exceeded the oldest group is dropped; the stack
// is rebuilt from the bottom since the structure is LIFO-only.
func (s *UndoRedoStack) Push(cmds []Command) error {
	if len(cmds) == 0 {
		return domain.ArgumentError{Msg: "cannot push an empty command group"}
	}
	for _, cmd := range cmds {
		if cmd == nil {
			return domain.ArgumentError{Msg: "cannot push a nil command"}
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.undo = append(s.undo, cmds)
	s.redo = nil
	if len(s.undo) > s.limit {
		rebuilt := make([][]Command, len(s.undo)-1)
		copy(rebuilt, s.undo[1:])
		s.undo = rebuilt
	}
	return nil
}

// Undo pops the most recent group and applies the inverse of each command in
// reverse order inside one transaction, then moves the group to the redo
// stack. Each inverse carries a fresh command id. A failure anywhere rolls
// the whole transaction back, leaves the group on the undo stack, and
// returns the error.
func (s *UndoRedoStack) Undo(ctx context.Context) error {
	s.mu.Lock()
	if len(s.undo) == 0 {
		s.mu.Unlock()
		return nil
	}
	group := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	s.mu.Unlock()

	inverses := make([]Command, 0, len(group))
	for i := len(group) - 1; i >= 0; i-- {
		inv, err := group[i].Inverse()
		if err != nil {
			s.restoreUndo(group)
			return err
		}
		inv.Meta().RegenerateID()
		inverses = append(inverses, inv)
	}
	if err := s.applier.ApplyGroup(ctx, inverses); err != nil {
		s.restoreUndo(group)
		return err
	}

	s.mu.Lock()
	s.redo = append(s.redo, group)
	s.mu.Unlock()
	return nil
}

// Redo pops the most recent redo group and re-applies the original commands
// in their original order, with fresh ids, inside one transaction, then
// returns the group to the undo stack.
func (s *UndoRedoStack) Redo(ctx context.Context) error {
	s.mu.Lock()
	if len(s.redo) == 0 {
		s.mu.Unlock()
		return nil
	}
	group := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]
	s.mu.Unlock()

	for _, cmd := range group {
		cmd.Meta().RegenerateID()
	}
	if err := s.applier.ApplyGroup(ctx, group); err != nil {
		s.mu.Lock()
		s.redo = append(s.redo, group)
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.undo = append(s.undo, group)
	if len(s.undo) > s.limit {
		rebuilt := make([][]Command, len(s.undo)-1)
		copy(rebuilt, s.undo[1:])
		s.undo = rebuilt
	}
	s.mu.Unlock()
	return nil
}

func (s *UndoRedoStack) restoreUndo(group []Command) {
	s.mu.Lock()
	s.undo = append(s.undo, group)
	s.mu.Unlock()
}

// UndoDepth returns the number of undoable groups.
func (s *UndoRedoStack) UndoDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.undo)
}

// RedoDepth returns the number of redoable groups.
func (s *UndoRedoStack) RedoDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.redo)
}
