// Package feedsync keeps a bounded, deduplicated, locally cached view of
// the event feed. It polls the feed on a fixed interval, merges new events
// ahead of the cached ones, marks them as new for a dwell window and
// persists the merged list so a restart can show the last known events
// before the network answers.
package feedsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ardanlabs/blockfeed/business/core/feed"
	"github.com/ardanlabs/blockfeed/foundation/clock"
	"github.com/ardanlabs/blockfeed/foundation/kvstore"
	"github.com/ardanlabs/blockfeed/foundation/scheduler"
	"go.uber.org/zap"
)

// Default values used when the configuration leaves a field unset.
const (
	DefaultCacheKey        = "blockfeed.events"
	DefaultCapacity        = 100
	MaxCapacity            = 500
	DefaultPollInterval    = 5 * time.Second
	DefaultNewItemDwell    = 30 * time.Second
	DefaultCacheBadgeDwell = 3 * time.Second
)

// Config represents the dependencies and settings for a syncer. OnChange
// is called outside of any lock, possibly from different goroutines.
type Config struct {
	Log             *zap.SugaredLogger
	Fetcher         Fetcher
	Store           kvstore.Store
	Clock           clock.Clock
	CacheKey        string
	Capacity        int
	PollInterval    time.Duration
	NewItemDwell    time.Duration
	CacheBadgeDwell time.Duration
	Optimistic      bool
	OnChange        func(Snapshot)
}

// marker tracks the expiry of a single new item highlight.
type marker struct {
	timer clock.Timer
}

// Syncer manages the polling, merging and caching of the event feed.
type Syncer struct {
	log             *zap.SugaredLogger
	fetcher         Fetcher
	store           kvstore.Store
	clock           clock.Clock
	cacheKey        string
	capacity        int
	newItemDwell    time.Duration
	cacheBadgeDwell time.Duration
	optimistic      bool
	onChange        func(Snapshot)
	task            *scheduler.Task

	mu        sync.Mutex
	state     State
	items     []feed.Event
	held      []feed.Event
	resolved  bool
	markers   map[string]*marker
	fromCache bool
	badge     clock.Timer
	err       error
	gen       uint64
	cancel    context.CancelFunc
	fetching  bool
	paused    bool
	started   bool
	stopped   bool
	version   uint64

	persistMu sync.Mutex
	persisted uint64
}

// New constructs a syncer. Nothing happens until Start is called.
func New(cfg Config) (*Syncer, error) {
	if cfg.Log == nil {
		return nil, errors.New("log is required")
	}
	if cfg.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}

	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.CacheKey == "" {
		cfg.CacheKey = DefaultCacheKey
	}
	if err := kvstore.ValidateKey(cfg.CacheKey); err != nil {
		return nil, err
	}

	switch {
	case cfg.Capacity == 0:
		cfg.Capacity = DefaultCapacity
	case cfg.Capacity < 0 || cfg.Capacity > MaxCapacity:
		return nil, fmt.Errorf("capacity must be between 1 and %d", MaxCapacity)
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.NewItemDwell <= 0 {
		cfg.NewItemDwell = DefaultNewItemDwell
	}
	if cfg.CacheBadgeDwell <= 0 {
		cfg.CacheBadgeDwell = DefaultCacheBadgeDwell
	}

	s := Syncer{
		log:             cfg.Log,
		fetcher:         cfg.Fetcher,
		store:           cfg.Store,
		clock:           cfg.Clock,
		cacheKey:        cfg.CacheKey,
		capacity:        cfg.Capacity,
		newItemDwell:    cfg.NewItemDwell,
		cacheBadgeDwell: cfg.CacheBadgeDwell,
		optimistic:      cfg.Optimistic,
		onChange:        cfg.OnChange,
		state:           StateIdle,
		markers:         make(map[string]*marker),
	}

	s.task = scheduler.New(cfg.Clock, cfg.PollInterval, s.poll)

	return &s, nil
}

// Start hydrates from the cache, fetches immediately and then polls on the
// configured interval. Start blocks until the first fetch resolves. A syncer
// paused before Start only hydrates and waits for Resume.
func (s *Syncer) Start() {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.HydrateFromCache()

	s.mu.Lock()
	if s.paused {
		s.state = StatePaused
		snap := s.snapshotLocked()
		s.mu.Unlock()

		s.log.Infow("feedsync", "status", "started paused")
		s.notify(snap)
		return
	}
	s.mu.Unlock()

	s.task.Start()
	s.FetchAndMerge(context.Background())
}

// Pause stops the poll timer. A fetch that is already outstanding is
// allowed to complete.
func (s *Syncer) Pause() {
	s.task.Pause()

	s.mu.Lock()
	if s.stopped || s.paused {
		s.mu.Unlock()
		return
	}

	s.paused = true
	if !s.fetching {
		s.state = StatePaused
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Infow("feedsync", "status", "paused")
	s.notify(snap)
}

// Resume fetches immediately, superseding any outstanding fetch, and then
// resumes periodic polling. Resume on a syncer that was never started
// leaves it to Start.
func (s *Syncer) Resume() {
	s.mu.Lock()
	if s.stopped || !s.paused {
		s.mu.Unlock()
		return
	}
	s.paused = false
	started := s.started
	s.mu.Unlock()

	s.log.Infow("feedsync", "status", "resumed")
	if !started {
		return
	}

	s.task.Start()
	s.FetchAndMerge(context.Background())
}

// Refresh fetches immediately regardless of the current state, superseding
// any fetch that is outstanding.
func (s *Syncer) Refresh(ctx context.Context) error {
	return s.FetchAndMerge(ctx)
}

// Stop cancels any outstanding fetch and every timer. A stopped syncer
// can't be restarted.
func (s *Syncer) Stop() {
	s.task.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++

	for id, m := range s.markers {
		m.timer.Stop()
		delete(s.markers, id)
	}
	if s.badge != nil {
		s.badge.Stop()
		s.badge = nil
	}

	s.fetching = false
	s.state = StateIdle
}

// Snapshot returns a copy of the current view.
func (s *Syncer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshotLocked()
}

// =============================================================================

// HydrateFromCache loads the persisted snapshot. If any cached event fails
// validation the entire snapshot is discarded. It reports whether a
// snapshot was accepted.
func (s *Syncer) HydrateFromCache() bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	s.state = StateHydrating

	evts, err := s.readCacheLocked()
	if err != nil || len(evts) == 0 {
		s.state = StateIdle
		s.mu.Unlock()

		if err != nil && !errors.Is(err, kvstore.ErrNotFound) {
			s.log.Infow("feedsync: hydrate", "status", "cache discarded", "ERROR", err)
		}
		return false
	}

	if len(evts) > s.capacity {
		evts = evts[:s.capacity]
	}

	if s.optimistic {
		s.items = evts
	} else {
		s.held = evts
	}

	s.fromCache = true
	if s.badge != nil {
		s.badge.Stop()
	}
	s.badge = s.clock.AfterFunc(s.cacheBadgeDwell, s.clearCacheBadge)

	s.state = StateIdle
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Infow("feedsync: hydrate", "status", "cache loaded", "events", len(evts), "optimistic", s.optimistic)
	s.notify(snap)

	return true
}

// readCacheLocked reads and validates the persisted snapshot.
func (s *Syncer) readCacheLocked() ([]feed.Event, error) {
	data, err := s.store.Get(s.cacheKey)
	if err != nil {
		return nil, err
	}

	var evts []feed.Event
	if err := json.Unmarshal(data, &evts); err != nil {
		s.discardCacheLocked()
		return nil, fmt.Errorf("decoding cache: %w", err)
	}

	for _, evt := range evts {
		if err := evt.Validate(); err != nil {
			s.discardCacheLocked()
			return nil, fmt.Errorf("validating cached event %q: %w", evt.ID, err)
		}
	}

	return evts, nil
}

func (s *Syncer) discardCacheLocked() {
	if err := s.store.Delete(s.cacheKey); err != nil {
		s.log.Errorw("feedsync: hydrate", "status", "deleting cache", "ERROR", err)
	}
}

func (s *Syncer) clearCacheBadge() {
	s.mu.Lock()
	if s.stopped || !s.fromCache {
		s.mu.Unlock()
		return
	}
	s.fromCache = false
	s.badge = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// =============================================================================

// FetchAndMerge retrieves the feed and merges it into the current view.
// Only the most recently started fetch may apply its result. A fetch that
// was superseded, or that finishes after Stop, returns ErrSuperseded and
// changes nothing.
func (s *Syncer) FetchAndMerge(ctx context.Context) error {
	return s.fetch(ctx, true)
}

// poll is the scheduled task. A tick that finds a fetch outstanding is
// skipped so a slow server still gets to answer.
func (s *Syncer) poll() {
	s.fetch(context.Background(), false)
}

// fetch performs a single fetch and merge. When supersede is false and a
// fetch is already outstanding, nothing happens.
func (s *Syncer) fetch(ctx context.Context, supersede bool) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}

	if s.fetching && !supersede {
		s.mu.Unlock()
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.fetching = true
	s.state = StateFetching
	s.mu.Unlock()

	evts, err := s.fetcher.Fetch(ctx)

	s.mu.Lock()
	cancel()

	if gen != s.gen || s.stopped {
		s.mu.Unlock()
		return ErrSuperseded
	}

	s.cancel = nil
	s.fetching = false

	if err != nil {
		s.err = err
		s.resolveLocked()
		s.state = s.restingLocked()
		snap := s.snapshotLocked()
		s.mu.Unlock()

		s.log.Errorw("feedsync: fetch", "status", "keeping last known good", "ERROR", err)
		s.notify(snap)
		return err
	}

	changed := s.err != nil
	s.err = nil
	if s.resolveLocked() {
		changed = true
	}

	s.state = StateMerging
	merged, added := Merge(s.items, evts, s.capacity)
	if len(added) == 0 {
		s.state = s.restingLocked()
		snap := s.snapshotLocked()
		s.mu.Unlock()

		if changed {
			s.notify(snap)
		}
		return nil
	}

	s.items = merged
	for _, evt := range added {
		s.markNewLocked(evt.ID)
	}
	data, version, err := s.encodeLocked()

	s.state = s.restingLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Infow("feedsync: fetch", "status", "merged", "added", len(added), "total", len(merged))
	s.notify(snap)

	if err != nil {
		s.log.Errorw("feedsync: persist", "status", "encoding cache", "ERROR", err)
		return nil
	}
	s.persist(data, version)

	return nil
}

// resolveLocked marks the first fetch as resolved. Events hydrated but
// held back become visible. It reports whether held events were revealed.
func (s *Syncer) resolveLocked() bool {
	if s.resolved {
		return false
	}
	s.resolved = true

	if s.held == nil {
		return false
	}

	s.items = s.held
	s.held = nil
	return true
}

// restingLocked returns the state the syncer settles in between fetches.
func (s *Syncer) restingLocked() State {
	if s.paused {
		return StatePaused
	}
	return StatePolling
}

// markNewLocked flags the id as new and schedules the flag to expire after
// the dwell time, independent of later merges.
func (s *Syncer) markNewLocked(id string) {
	if old, exists := s.markers[id]; exists {
		old.timer.Stop()
	}

	var m marker
	m.timer = s.clock.AfterFunc(s.newItemDwell, func() {
		s.mu.Lock()
		if s.stopped || s.markers[id] != &m {
			s.mu.Unlock()
			return
		}
		delete(s.markers, id)
		snap := s.snapshotLocked()
		s.mu.Unlock()

		s.notify(snap)
	})
	s.markers[id] = &m
}

// encodeLocked serializes the current list for the store along with a
// version that orders it against other writes.
func (s *Syncer) encodeLocked() ([]byte, uint64, error) {
	data, err := json.Marshal(s.items)
	if err != nil {
		return nil, 0, err
	}

	s.version++
	return data, s.version, nil
}

// persist writes an encoded list to the store outside the state lock. A
// version older than one already written is dropped. A failed write is
// logged and the in-memory list is kept.
func (s *Syncer) persist(data []byte, version uint64) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if version <= s.persisted {
		return
	}
	s.persisted = version

	if err := s.store.Set(s.cacheKey, data); err != nil {
		s.log.Errorw("feedsync: persist", "status", "writing cache", "ERROR", err)
	}
}

func (s *Syncer) snapshotLocked() Snapshot {
	ids := make(map[string]struct{}, len(s.markers))
	for id := range s.markers {
		ids[id] = struct{}{}
	}

	return Snapshot{
		State:     s.state,
		Items:     append([]feed.Event(nil), s.items...),
		NewIDs:    ids,
		FromCache: s.fromCache,
		Loading:   !s.resolved,
		Err:       s.err,
	}
}

func (s *Syncer) notify(snap Snapshot) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}
