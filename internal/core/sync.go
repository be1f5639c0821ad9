package core

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"worldbuilder/pkg/domain"
)

// SyncConfig tunes the background sync loop.
type SyncConfig struct {
	// Interval is how often queued commands are flushed and missed commands
	// fetched. Transport failures wait for the next interval.
	Interval time.Duration
	// SeenLimit bounds the LRU set of already-applied command ids used to
	// drop duplicate deliveries.
	SeenLimit int
}

// DefaultSyncConfig returns the loop settings used when none are supplied.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{Interval: 5 * time.Second, SeenLimit: 1024}
}

func (c SyncConfig) withDefaults() SyncConfig {
	def := DefaultSyncConfig()
	if c.Interval <= 0 {
		c.Interval = def.Interval
	}
	if c.SeenLimit <= 0 {
		c.SeenLimit = def.SeenLimit
	}
	return c
}

// SyncService queues locally executed commands while offline and replays
// traffic against the remote peer: queued commands are flushed in order, and
// remote commands are applied locally unless they are the local user's own
// echo or a duplicate delivery. A monotone last-seen server timestamp serves
// as the resume cursor after reconnect. Transport failures are logged and
// retried on the next interval, never surfaced to the editing user.
type SyncService struct {
	client  domain.SyncClient
	applier CommandApplier
	logger  domain.Logger
	userID  string
	cfg     SyncConfig

	mu      sync.Mutex
	pending [][]byte
	cursor  time.Time
	seen    *lru.Cache[string, struct{}]

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewSyncService constructs a sync service for the local user. Run starts the
// background loop.
func NewSyncService(userID string, client domain.SyncClient, applier CommandApplier, cfg SyncConfig, logger domain.Logger) (*SyncService, error) {
	if logger == nil {
		logger = domain.NoopLogger{}
	}
	cfg = cfg.withDefaults()
	seen, err := lru.New[string, struct{}](cfg.SeenLimit)
	if err != nil {
		return nil, err
	}
	return &SyncService{
		client:  client,
		applier: applier,
		logger:  logger,
		userID:  userID,
		cfg:     cfg,
		seen:    seen,
		stop:    make(chan struct{}),
	}, nil
}

// Enqueue serializes the commands onto the offline queue and marks them as
// already applied locally so their echoes are skipped.
func (s *SyncService) Enqueue(cmds ...Command) {
	for _, cmd := range cmds {
		payload, err := EncodeCommand(cmd)
		if err != nil {
			s.logger.Logf("sync: drop unencodable %s command: %v", cmd.Kind(), err)
			continue
		}
		s.seen.Add(cmd.Meta().ID, struct{}{})
		s.mu.Lock()
		s.pending = append(s.pending, payload)
		s.mu.Unlock()
	}
}

// PendingCount returns the number of queued, unsent commands.
func (s *SyncService) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Cursor returns the last-seen server timestamp.
func (s *SyncService) Cursor() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Run drives the sync loop until ctx is done or Stop is called.
func (s *SyncService) Run(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.client.Connect(ctx); err != nil {
			s.logger.Logf("sync: connect: %v", err)
		}
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case payload, ok := <-s.client.Incoming():
				if !ok {
					return
				}
				s.applyRemote(ctx, payload)
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop terminates the loop; safe to call more than once.
func (s *SyncService) Stop() {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
}

// tick performs one best-effort flush-and-catch-up pass.
func (s *SyncService) tick(ctx context.Context) {
	s.flush(ctx)
	s.catchUp(ctx)
}

func (s *SyncService) flush(ctx context.Context) {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			return
		}
		payload := s.pending[0]
		s.mu.Unlock()

		if err := s.client.SendCommand(ctx, payload); err != nil {
			s.logger.Logf("sync: send failed, will retry: %v", err)
			return
		}
		s.mu.Lock()
		s.pending = s.pending[1:]
		s.mu.Unlock()
	}
}

func (s *SyncService) catchUp(ctx context.Context) {
	s.mu.Lock()
	cursor := s.cursor
	s.mu.Unlock()
	payloads, err := s.client.GetCommandsSince(ctx, cursor)
	if err != nil {
		s.logger.Logf("sync: catch-up failed, will retry: %v", err)
		return
	}
	for _, payload := range payloads {
		s.applyRemote(ctx, payload)
	}
}

// applyRemote applies one remote command unless it is the local user's echo
// or a duplicate delivery. The server timestamp, when present, advances the
// resume cursor even for skipped commands.
func (s *SyncService) applyRemote(ctx context.Context, payload []byte) {
	cmd, err := DecodeCommand(payload)
	if err != nil {
		s.logger.Logf("sync: drop undecodable command: %v", err)
		return
	}
	meta := cmd.Meta()
	if ts := meta.ServerTimestamp; ts != nil {
		s.mu.Lock()
		if ts.After(s.cursor) {
			s.cursor = *ts
		}
		s.mu.Unlock()
	}
	if meta.UserID == s.userID {
		return
	}
	if _, dup := s.seen.Get(meta.ID); dup {
		return
	}
	s.seen.Add(meta.ID, struct{}{})
	if err := s.applier.ApplyGroup(ctx, []Command{cmd}); err != nil {
		s.logger.Logf("sync: remote %s command %s failed: %v", cmd.Kind(), meta.ID, err)
	}
}
