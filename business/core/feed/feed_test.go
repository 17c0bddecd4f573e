package feed_test

import (
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ardanlabs/blockfeed/business/core/feed"
	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newGenerator(t *testing.T, cfg feed.Config) *feed.Generator {
	t.Helper()

	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(1, 2))
	}
	if cfg.Now.IsZero() {
		cfg.Now = t0
	}

	g, err := feed.New(cfg)
	require.NoError(t, err, "\t%s\tShould be able to construct a generator.", failed)

	return g
}

func TestAdvance(t *testing.T) {
	t.Log("Given the need to generate events for elapsed intervals.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen two full intervals have elapsed.", testID)
		{
			g := newGenerator(t, feed.Config{})
			evts := g.AdvanceAndGet(t0.Add(12 * time.Second))

			require.Len(t, evts, 2*len(feed.Chains()), "\t%s\tTest %d:\tShould produce two batches.", failed, testID)
			require.Equal(t, t0.Add(12*time.Second), g.Status().LastGeneration, "\t%s\tTest %d:\tShould move the last generation to now.", failed, testID)
			require.Equal(t, uint64(10), g.Status().Generated, "\t%s\tTest %d:\tShould count the events.", failed, testID)
			t.Logf("\t%s\tTest %d:\tShould produce two batches.", success, testID)

			// Newest first: the last chain of the last batch is at the front.
			chains := feed.Chains()
			for i, evt := range evts {
				exp := chains[len(chains)-1-(i%len(chains))]
				require.Equal(t, exp, evt.Chain, "\t%s\tTest %d:\tShould order event %d newest first.", failed, testID, i)
			}
			t.Logf("\t%s\tTest %d:\tShould order the events newest first.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen asking inside the interval.", testID)
		{
			g := newGenerator(t, feed.Config{})

			evts := g.AdvanceAndGet(t0.Add(4999 * time.Millisecond))
			require.Empty(t, evts, "\t%s\tTest %d:\tShould generate nothing early.", failed, testID)
			require.Equal(t, t0, g.Status().LastGeneration, "\t%s\tTest %d:\tShould not move the last generation time.", failed, testID)
			t.Logf("\t%s\tTest %d:\tShould generate nothing early.", success, testID)

			evts = g.AdvanceAndGet(t0.Add(5 * time.Second))
			require.Len(t, evts, 5, "\t%s\tTest %d:\tShould generate on the boundary.", failed, testID)

			again := g.AdvanceAndGet(t0.Add(7 * time.Second))
			require.Equal(t, evts, again, "\t%s\tTest %d:\tShould return the buffer unchanged.", failed, testID)
			t.Logf("\t%s\tTest %d:\tShould return the buffer unchanged inside the interval.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen any number of intervals and a remainder elapse.", testID)
		{
			const interval = 5 * time.Second

			for k := 0; k <= 6; k++ {
				for _, r := range []time.Duration{0, time.Millisecond, 2500 * time.Millisecond, interval - time.Millisecond} {
					g := newGenerator(t, feed.Config{Interval: interval, Capacity: 1000})

					now := t0.Add(time.Duration(k)*interval + r)
					evts := g.AdvanceAndGet(now)

					require.Len(t, evts, k*5, "\t%s\tTest %d:\tShould generate one batch per interval k=%d r=%s.", failed, testID, k, r)

					exp := t0
					if k > 0 {
						exp = now
					}
					require.Equal(t, exp, g.Status().LastGeneration, "\t%s\tTest %d:\tShould move the last generation k=%d r=%s.", failed, testID, k, r)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould generate one batch per whole interval.", success, testID)
		}
	}
}

func TestCapacityTrim(t *testing.T) {
	g := newGenerator(t, feed.Config{Capacity: 12})

	t.Log("Given the need to bound the generator buffer.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the buffer overflows.", testID)
		{
			first := g.AdvanceAndGet(t0.Add(10 * time.Second))
			require.Len(t, first, 10, "\t%s\tTest %d:\tShould hold two batches.", failed, testID)

			second := g.AdvanceAndGet(t0.Add(15 * time.Second))
			require.Len(t, second, 12, "\t%s\tTest %d:\tShould hold the capacity.", failed, testID)
			require.Equal(t, first[:7], second[5:], "\t%s\tTest %d:\tShould evict the oldest events first.", failed, testID)
			t.Logf("\t%s\tTest %d:\tShould evict the oldest events first.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen a long idle gap elapses.", testID)
		{
			third := g.AdvanceAndGet(t0.Add(24 * time.Hour))
			require.Len(t, third, 12, "\t%s\tTest %d:\tShould hold the capacity.", failed, testID)
			require.Equal(t, uint64(15+(24*time.Hour-15*time.Second)/(5*time.Second)*5), g.Status().Generated, "\t%s\tTest %d:\tShould count every event.", failed, testID)
			for _, evt := range third {
				require.Equal(t, t0.Add(24*time.Hour), evt.Date, "\t%s\tTest %d:\tShould only keep the newest events.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould only keep the newest events.", success, testID)
		}
	}
}

func TestIDUniqueness(t *testing.T) {
	g := newGenerator(t, feed.Config{Capacity: 300})

	t.Log("Given the need to identify every event uniquely.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen generating for two hundred requests.", testID)
		{
			seen := make(map[string]struct{})
			now := t0
			for i := 0; i < 200; i++ {
				now = now.Add(time.Duration(1+i%4) * 5 * time.Second)
				for _, evt := range g.AdvanceAndGet(now) {
					seen[evt.ID] = struct{}{}
				}
			}

			// Events with the same date share the timestamp part of the id.
			all := g.AdvanceAndGet(now)
			ids := make(map[string]struct{}, len(all))
			for _, evt := range all {
				_, dup := ids[evt.ID]
				require.False(t, dup, "\t%s\tTest %d:\tShould not duplicate id %s.", failed, testID, evt.ID)
				ids[evt.ID] = struct{}{}
			}
			require.Greater(t, len(seen), 300, "\t%s\tTest %d:\tShould keep ids unique past the capacity.", failed, testID)
			t.Logf("\t%s\tTest %d:\tShould keep ids unique.", success, testID)
		}
	}
}

func TestSynthesizedEvents(t *testing.T) {
	g := newGenerator(t, feed.Config{})

	t.Log("Given the need to synthesize realistic events.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a minute of events is generated.", testID)
		{
			for _, evt := range g.AdvanceAndGet(t0.Add(time.Minute)) {
				require.NoError(t, evt.Validate(), "\t%s\tTest %d:\tShould validate.", failed, testID)
				require.NotEmpty(t, evt.Author, "\t%s\tTest %d:\tShould have an author.", failed, testID)
				require.NotEmpty(t, evt.EventType, "\t%s\tTest %d:\tShould have an event type.", failed, testID)
				require.NotEmpty(t, evt.Content, "\t%s\tTest %d:\tShould have content.", failed, testID)
				require.NotZero(t, evt.BlockHeight, "\t%s\tTest %d:\tShould have a block height.", failed, testID)

				if evt.Chain == feed.ChainSolana {
					sig, err := base58.Decode(evt.TransactionHash)
					require.NoError(t, err, "\t%s\tTest %d:\tShould base58 encode the signature.", failed, testID)
					require.Len(t, sig, 64, "\t%s\tTest %d:\tShould use a 64 byte signature.", failed, testID)
					require.Zero(t, evt.GasUsed, "\t%s\tTest %d:\tShould not report gas.", failed, testID)
					continue
				}

				require.True(t, strings.HasPrefix(evt.TransactionHash, "0x"), "\t%s\tTest %d:\tShould hex encode the hash.", failed, testID)
				require.Len(t, evt.TransactionHash, 66, "\t%s\tTest %d:\tShould use a 32 byte hash.", failed, testID)
				require.True(t, common.IsHexAddress(evt.FromAddress), "\t%s\tTest %d:\tShould use a hex address.", failed, testID)
				require.Equal(t, common.HexToAddress(evt.ToAddress).Hex(), evt.ToAddress, "\t%s\tTest %d:\tShould checksum the address.", failed, testID)
				require.GreaterOrEqual(t, evt.GasUsed, uint64(21_000), "\t%s\tTest %d:\tShould report gas.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould produce chain specific fields.", success, testID)
		}
	}
}

func TestOnBatch(t *testing.T) {
	var batches [][]feed.Event
	var messages []string

	g := newGenerator(t, feed.Config{
		OnBatch:   func(evts []feed.Event) { batches = append(batches, evts) },
		EvHandler: func(v string, args ...any) { messages = append(messages, v) },
	})

	t.Log("Given the need to publish every generated batch.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen nothing was generated.", testID)
		{
			g.AdvanceAndGet(t0.Add(time.Second))
			require.Empty(t, batches, "\t%s\tTest %d:\tShould publish nothing.", failed, testID)
			t.Logf("\t%s\tTest %d:\tShould publish nothing.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen a batch was generated.", testID)
		{
			evts := g.AdvanceAndGet(t0.Add(5 * time.Second))
			require.Len(t, batches, 1, "\t%s\tTest %d:\tShould publish once.", failed, testID)
			require.Equal(t, evts, batches[0], "\t%s\tTest %d:\tShould publish the batch.", failed, testID)
			require.NotEmpty(t, messages, "\t%s\tTest %d:\tShould report the generation.", failed, testID)
			t.Logf("\t%s\tTest %d:\tShould publish the batch.", success, testID)
		}
	}
}

func TestSeedAndReset(t *testing.T) {
	g := newGenerator(t, feed.Config{})

	t.Log("Given the need to seed and reset the generator.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen seeding three batches.", testID)
		{
			evts := g.Seed(3, t0)
			require.Len(t, evts, 15, "\t%s\tTest %d:\tShould generate three batches.", failed, testID)
			require.Equal(t, t0, g.Status().LastGeneration, "\t%s\tTest %d:\tShould move the last generation.", failed, testID)
			t.Logf("\t%s\tTest %d:\tShould generate three batches.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen resetting.", testID)
		{
			g.Reset(t0.Add(time.Minute))
			require.Empty(t, g.AdvanceAndGet(t0.Add(time.Minute+time.Second)), "\t%s\tTest %d:\tShould restart the interval.", failed, testID)
			require.Equal(t, 0, g.Status().Buffered, "\t%s\tTest %d:\tShould empty the buffer.", failed, testID)
			t.Logf("\t%s\tTest %d:\tShould empty the buffer.", success, testID)
		}
	}
}

func TestConfig(t *testing.T) {
	t.Log("Given the need to validate the generator configuration.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the configuration is invalid.", testID)
		{
			_, err := feed.New(feed.Config{Chains: []string{"dogechain"}})
			require.Error(t, err, "\t%s\tTest %d:\tShould reject an unknown chain.", failed, testID)

			_, err = feed.New(feed.Config{Capacity: -1})
			require.Error(t, err, "\t%s\tTest %d:\tShould reject a negative capacity.", failed, testID)
			t.Logf("\t%s\tTest %d:\tShould reject the configuration.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen restricting the chains.", testID)
		{
			g := newGenerator(t, feed.Config{Chains: []string{feed.ChainSolana}})
			require.Len(t, g.AdvanceAndGet(t0.Add(10*time.Second)), 2, "\t%s\tTest %d:\tShould generate one event per chain.", failed, testID)
			t.Logf("\t%s\tTest %d:\tShould generate one event per chain.", success, testID)
		}
	}
}

func TestConcurrentAdvance(t *testing.T) {
	g := newGenerator(t, feed.Config{Capacity: 1000})

	t.Log("Given the need to serve many requests at once.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen requests arrive at the same instant.", testID)
		{
			now := t0.Add(20 * time.Second)

			var wg sync.WaitGroup
			for i := 0; i < 32; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					g.AdvanceAndGet(now)
				}()
			}
			wg.Wait()

			require.Equal(t, 20, g.Status().Buffered, "\t%s\tTest %d:\tShould generate the elapsed intervals once.", failed, testID)
			t.Logf("\t%s\tTest %d:\tShould generate the elapsed intervals once.", success, testID)
		}
	}
}

func TestFilter(t *testing.T) {
	g := newGenerator(t, feed.Config{})
	evts := g.AdvanceAndGet(t0.Add(time.Minute))

	t.Log("Given the need to filter the feed.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen filtering by chain and limit.", testID)
		{
			f := feed.Filter{Chain: feed.ChainSolana}
			require.NoError(t, f.Validate(), "\t%s\tTest %d:\tShould accept a known chain.", failed, testID)

			out := f.Apply(evts)
			require.Len(t, out, 12, "\t%s\tTest %d:\tShould keep one event per batch.", failed, testID)
			for _, evt := range out {
				require.Equal(t, feed.ChainSolana, evt.Chain, "\t%s\tTest %d:\tShould only keep the chain.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould only keep the chain.", success, testID)

			f = feed.Filter{Limit: 3}
			require.Equal(t, evts[:3], f.Apply(evts), "\t%s\tTest %d:\tShould keep the newest events.", failed, testID)
			t.Logf("\t%s\tTest %d:\tShould limit the events.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the filter is invalid.", testID)
		{
			require.Error(t, feed.Filter{Chain: "dogechain"}.Validate(), "\t%s\tTest %d:\tShould reject an unknown chain.", failed, testID)
			require.Error(t, feed.Filter{Category: "memes"}.Validate(), "\t%s\tTest %d:\tShould reject an unknown category.", failed, testID)
			require.Error(t, feed.Filter{Limit: 501}.Validate(), "\t%s\tTest %d:\tShould reject a limit over the maximum.", failed, testID)
			t.Logf("\t%s\tTest %d:\tShould reject the filter.", success, testID)
		}
	}
}

func TestEventValidate(t *testing.T) {
	evt := feed.Event{
		ID:       "1-1",
		Title:    "t",
		Category: feed.CategoryDeFi,
		Chain:    feed.ChainBase,
		Date:     t0,
	}

	t.Log("Given the need to validate an event.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the event is complete.", testID)
		{
			require.NoError(t, evt.Validate(), "\t%s\tTest %d:\tShould accept the event.", failed, testID)
			t.Logf("\t%s\tTest %d:\tShould accept the event.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen a field is wrong.", testID)
		{
			evt.Category = "price"
			require.Error(t, evt.Validate(), "\t%s\tTest %d:\tShould reject an unknown category.", failed, testID)

			evt.Category = feed.CategoryDeFi
			evt.Date = time.Time{}
			require.Error(t, evt.Validate(), "\t%s\tTest %d:\tShould reject a missing date.", failed, testID)
			t.Logf("\t%s\tTest %d:\tShould reject the event.", success, testID)
		}
	}
}
