// Package feed is the event source for the service. It synthesizes a
// believable multi-chain event stream on demand, based on how much wall
// clock time has elapsed since the previous request, and keeps the newest
// events in a bounded buffer.
package feed

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// Default values used when the configuration leaves a field unset.
const (
	DefaultInterval = 5 * time.Second
	DefaultCapacity = 300
)

// EventHandler defines a function that is called with progress messages
// as the generator does its work.
type EventHandler func(v string, args ...any)

// BatchHandler defines a function that receives the events synthesized by
// a single call to AdvanceAndGet, newest first.
type BatchHandler func(evts []Event)

// Config represents the configuration required to construct a generator.
type Config struct {
	Interval  time.Duration
	Capacity  int
	Chains    []string
	Rand      *rand.Rand
	Now       time.Time
	EvHandler EventHandler
	OnBatch   BatchHandler
}

// Status represents the current state of the generator.
type Status struct {
	Buffered       int       `json:"buffered"`
	Capacity       int       `json:"capacity"`
	Interval       string    `json:"interval"`
	Chains         []string  `json:"chains"`
	LastGeneration time.Time `json:"last_generation"`
	Generated      uint64    `json:"generated"`
}

// Generator owns the buffer of synthesized events and the time of the last
// generation. All access is serialized so concurrent requests can never
// generate the same elapsed interval twice.
type Generator struct {
	interval  time.Duration
	capacity  int
	chains    []Chain
	evHandler EventHandler
	onBatch   BatchHandler

	mu        sync.Mutex
	rnd       *rand.Rand
	buffer    []Event
	last      time.Time
	counter   uint64
	generated uint64
}

// New constructs a generator. The last generation time starts at cfg.Now,
// or the current time when unset, so the first events appear one interval
// later.
func New(cfg Config) (*Generator, error) {
	if cfg.Interval < 0 {
		return nil, errors.New("interval can't be negative")
	}
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}

	if cfg.Capacity < 0 {
		return nil, errors.New("capacity can't be negative")
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultCapacity
	}

	if len(cfg.Chains) == 0 {
		cfg.Chains = Chains()
	}

	gChains := make([]Chain, len(cfg.Chains))
	for i, name := range cfg.Chains {
		chain, err := lookupChain(name)
		if err != nil {
			return nil, err
		}
		gChains[i] = chain
	}

	if cfg.Rand == nil {
		seed := uint64(time.Now().UnixNano())
		cfg.Rand = rand.New(rand.NewPCG(seed, seed>>1))
	}

	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	g := Generator{
		interval:  cfg.Interval,
		capacity:  cfg.Capacity,
		chains:    gChains,
		evHandler: ev,
		onBatch:   cfg.OnBatch,
		rnd:       cfg.Rand,
		last:      cfg.Now,
	}

	return &g, nil
}

// AdvanceAndGet synthesizes one batch of events, one per chain, for every
// full interval elapsed since the last generation and returns the buffer
// newest first. When less than an interval has elapsed nothing is
// generated and the last generation time is left alone.
func (g *Generator) AdvanceAndGet(now time.Time) []Event {
	g.mu.Lock()

	elapsed := now.Sub(g.last)
	if elapsed < g.interval {
		out := g.copyLocked()
		g.mu.Unlock()
		return out
	}

	batches := int(elapsed / g.interval)
	fresh := g.advanceLocked(batches, now)
	out := g.copyLocked()
	buffered := len(g.buffer)

	g.mu.Unlock()

	g.evHandler("feed: advance: elapsed[%s] batches[%d] events[%d] buffered[%d]", elapsed, batches, len(fresh), buffered)

	if g.onBatch != nil && len(fresh) > 0 {
		g.onBatch(fresh)
	}

	return out
}

// Seed fills the buffer as if the generator had been running for the
// specified number of intervals before now.
func (g *Generator) Seed(batches int, now time.Time) []Event {
	if batches <= 0 {
		return nil
	}

	g.mu.Lock()
	g.last = now.Add(-time.Duration(batches) * g.interval)
	g.mu.Unlock()

	return g.AdvanceAndGet(now)
}

// Reset empties the buffer and restarts the interval clock at now.
func (g *Generator) Reset(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.buffer = nil
	g.last = now
}

// Status returns the current state of the generator.
func (g *Generator) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	names := make([]string, len(g.chains))
	for i, c := range g.chains {
		names[i] = c.Name
	}

	return Status{
		Buffered:       len(g.buffer),
		Capacity:       g.capacity,
		Interval:       g.interval.String(),
		Chains:         names,
		LastGeneration: g.last,
		Generated:      g.generated,
	}
}

// =============================================================================

// advanceLocked generates the events for the batches, prepends them to the
// buffer, trims the buffer to capacity and moves the last generation time.
// It returns the events that were generated, newest first.
func (g *Generator) advanceLocked(batches int, now time.Time) []Event {
	total := batches * len(g.chains)

	// Events older than the newest capacity events would be trimmed as soon
	// as they were prepended, so only the survivors are synthesized. The
	// counter still moves past the skipped events.
	skip := 0
	if total > g.capacity {
		skip = total - g.capacity
		g.counter += uint64(skip)
	}

	// Each event is prepended as it is synthesized, so the newest event is
	// the last one synthesized.
	fresh := make([]Event, total-skip)
	for seq := skip; seq < total; seq++ {
		chain := g.chains[seq%len(g.chains)]
		fresh[total-1-seq] = g.synthesize(chain, now)
	}

	buffer := make([]Event, 0, min(len(fresh)+len(g.buffer), g.capacity))
	buffer = append(buffer, fresh...)
	buffer = append(buffer, g.buffer...)
	if len(buffer) > g.capacity {
		buffer = buffer[:g.capacity]
	}

	g.buffer = buffer
	g.last = now
	g.generated += uint64(total)

	return fresh
}

func (g *Generator) copyLocked() []Event {
	out := make([]Event, len(g.buffer))
	copy(out, g.buffer)
	return out
}

// String implements the fmt.Stringer interface for logging.
func (s Status) String() string {
	return fmt.Sprintf("buffered[%d] capacity[%d] interval[%s] generated[%d]", s.Buffered, s.Capacity, s.Interval, s.Generated)
}
