package core

import (
	"context"
	"time"

	"worldbuilder/pkg/domain"
)

// EditorService ties the engine together for the surrounding editor: it
// applies command groups transactionally against the rental cache, feeds the
// grouped undo/redo stack, and hands executed commands to the sync queue.
type EditorService struct {
	cache    *DocumentCache
	store    domain.DocumentStore
	notifier domain.LandblockNotifier
	metrics  domain.MetricsRecorder
	undo     *UndoRedoStack
	sync     *SyncService
	userID   string
}

// ServiceOption customizes an EditorService.
type ServiceOption func(*EditorService)

// WithNotifier installs the landblock notifier commands report changes to.
func WithNotifier(n domain.LandblockNotifier) ServiceOption {
	return func(s *EditorService) { s.notifier = n }
}

// WithMetrics installs the metrics recorder.
func WithMetrics(m domain.MetricsRecorder) ServiceOption {
	return func(s *EditorService) { s.metrics = m }
}

// WithSync installs the sync service executed commands are queued to.
func WithSync(ss *SyncService) ServiceOption {
	return func(s *EditorService) { s.sync = ss }
}

// WithUndoLimit bounds the grouped undo stack.
func WithUndoLimit(limit int) ServiceOption {
	return func(s *EditorService) { s.undo = NewUndoRedoStack(s, limit) }
}

// NewEditorService constructs a service for the local user over the given
// cache and store.
func NewEditorService(userID string, cache *DocumentCache, store domain.DocumentStore, opts ...ServiceOption) *EditorService {
	s := &EditorService{
		cache:   cache,
		store:   store,
		metrics: domain.NoopMetrics{},
		userID:  userID,
	}
	s.undo = NewUndoRedoStack(s, DefaultHistoryLimit)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cache returns the underlying document cache.
func (s *EditorService) Cache() *DocumentCache { return s.cache }

// UserID returns the local user's id.
func (s *EditorService) UserID() string { return s.userID }

// UndoStack returns the grouped undo/redo stack.
func (s *EditorService) UndoStack() *UndoRedoStack { return s.undo }

// NewMeta stamps command metadata for the local user and target document.
func (s *EditorService) NewMeta(documentID string) CommandMeta {
	return NewMeta(s.userID, documentID)
}

// ApplyGroup applies the commands inside one store transaction. Any failure,
// including cancellation, rolls the transaction back and drops the group's
// documents from the cache, so the partial in-memory mutations of earlier
// members never outlive the failed group; nothing is pushed to undo history
// here.
func (s *EditorService) ApplyGroup(ctx context.Context, cmds []Command) error {
	if len(cmds) == 0 {
		return domain.ArgumentError{Msg: "cannot apply an empty command group"}
	}
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	env := &Env{Cache: s.cache, Notifier: s.notifier}
	for _, cmd := range cmds {
		if cmd == nil {
			s.abort(ctx, tx, cmds)
			return domain.ArgumentError{Msg: "cannot apply a nil command"}
		}
		if err := ctx.Err(); err != nil {
			s.abort(ctx, tx, cmds)
			return domain.FailureError{Op: "apply command group", Err: err}
		}
		if err := cmd.Apply(ctx, env, tx); err != nil {
			s.abort(ctx, tx, cmds)
			s.metrics.RecordResult(string(cmd.Kind()), "error")
			return err
		}
		s.metrics.RecordResult(string(cmd.Kind()), "ok")
	}
	if err := tx.Commit(ctx); err != nil {
		s.cache.Invalidate(groupDocuments(cmds)...)
		return err
	}
	return nil
}

// abort rolls the transaction back and invalidates the group's documents:
// the next Rent reloads the last committed blob instead of serving a cached
// copy carrying the failed group's edits.
func (s *EditorService) abort(ctx context.Context, tx domain.Tx, cmds []Command) {
	_ = tx.Rollback(ctx)
	s.cache.Invalidate(groupDocuments(cmds)...)
}

// groupDocuments lists the distinct document ids a command group targets.
func groupDocuments(cmds []Command) []string {
	seen := make(map[string]struct{}, len(cmds))
	var ids []string
	for _, cmd := range cmds {
		if cmd == nil {
			continue
		}
		id := cmd.Meta().DocumentID
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// Execute applies one logical user action, records it on the undo stack, and
// queues it for sync. Failed actions are not recorded.
func (s *EditorService) Execute(ctx context.Context, cmds ...Command) error {
	start := time.Now()
	err := s.ApplyGroup(ctx, cmds)
	s.metrics.RecordDuration("execute", time.Since(start))
	if err != nil {
		return err
	}
	if undoable(cmds) {
		if err := s.undo.Push(cmds); err != nil {
			return err
		}
	}
	if s.sync != nil {
		s.sync.Enqueue(cmds...)
	}
	s.commitBatches(ctx, cmds)
	return nil
}

// undoable reports whether every command in the group can derive an inverse;
// document creation cannot, and a group containing it bypasses undo history.
func undoable(cmds []Command) bool {
	for _, cmd := range cmds {
		if _, ok := cmd.(*CreateLandscapeDocumentCommand); ok {
			return false
		}
	}
	return true
}

// commitBatches closes each touched document's edit batch so the next action
// snapshots fresh pre-edit state.
func (s *EditorService) commitBatches(ctx context.Context, cmds []Command) {
	seen := make(map[string]struct{}, len(cmds))
	for _, cmd := range cmds {
		id := cmd.Meta().DocumentID
		if _, done := seen[id]; done {
			continue
		}
		seen[id] = struct{}{}
		rental, err := s.cache.Rent(ctx, id)
		if err != nil {
			continue
		}
		rental.Document().CommitEditBatch()
		rental.Release()
	}
}

// Undo reverts the most recent action group.
func (s *EditorService) Undo(ctx context.Context) error {
	start := time.Now()
	err := s.undo.Undo(ctx)
	s.metrics.RecordDuration("undo", time.Since(start))
	return err
}

// Redo re-applies the most recently undone action group.
func (s *EditorService) Redo(ctx context.Context) error {
	start := time.Now()
	err := s.undo.Redo(ctx)
	s.metrics.RecordDuration("redo", time.Since(start))
	return err
}

var _ CommandApplier = (*EditorService)(nil)

// serviceEntry adapts one command to the per-session CommandHistory: Execute
// replays the command with a fresh id, Undo applies its inverse.
type serviceEntry struct {
	svc      *EditorService
	cmd      Command
	executed bool
}

// HistoryEntryFor wraps cmd so a per-session CommandHistory can replay and
// revert it through this service. The first Execute applies the command as
// given; replays regenerate its id.
func (s *EditorService) HistoryEntryFor(cmd Command) HistoryEntry {
	return &serviceEntry{svc: s, cmd: cmd}
}

func (e *serviceEntry) Execute(ctx context.Context) error {
	if e.executed {
		e.cmd.Meta().RegenerateID()
	}
	if err := e.svc.ApplyGroup(ctx, []Command{e.cmd}); err != nil {
		return err
	}
	e.executed = true
	e.svc.commitBatches(ctx, []Command{e.cmd})
	return nil
}

func (e *serviceEntry) Undo(ctx context.Context) error {
	inv, err := e.cmd.Inverse()
	if err != nil {
		return err
	}
	inv.Meta().RegenerateID()
	if err := e.svc.ApplyGroup(ctx, []Command{inv}); err != nil {
		return err
	}
	e.svc.commitBatches(ctx, []Command{inv})
	return nil
}
