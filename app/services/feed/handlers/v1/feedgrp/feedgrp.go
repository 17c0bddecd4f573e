// Package feedgrp maintains the group of handlers for the event feed.
package feedgrp

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ardanlabs/blockfeed/business/core/feed"
	"github.com/ardanlabs/blockfeed/business/web/errs"
	"github.com/ardanlabs/blockfeed/foundation/clock"
	"github.com/ardanlabs/blockfeed/foundation/events"
	"github.com/ardanlabs/blockfeed/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pingPeriod = time.Second
	writeWait  = 10 * time.Second
)

// Handlers manages the set of feed endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	Feed  *feed.Generator
	Clock clock.Clock
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events advances the generator to the current time and returns the newest
// first list of events, optionally narrowed by the chain, category and
// limit query parameters.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	filter, err := parseFilter(r)
	if err != nil {
		return err
	}

	evts := filter.Apply(h.Feed.AdvanceAndGet(h.Clock.Now()))
	metricServed.Add(float64(len(evts)))

	return web.Respond(ctx, w, evts, http.StatusOK)
}

// Status returns the current state of the generator.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	status := struct {
		feed.Status
		Subscribers int `json:"subscribers"`
	}{
		Status:      h.Feed.Status(),
		Subscribers: h.Evts.Count(),
	}

	return web.Respond(ctx, w, status, http.StatusOK)
}

// Stream handles a web socket that receives every batch of events as it is
// synthesized, one JSON array per message.
func (h Handlers) Stream(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	metricSubscribers.Inc()
	defer metricSubscribers.Dec()

	h.Log.Infow("stream", "traceid", v.TraceID, "status", "subscribed")
	defer h.Log.Infow("stream", "traceid", v.TraceID, "status", "unsubscribed")

	// The client never sends data messages, but reading is required to
	// process control frames and to notice a closed connection.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"), time.Now().Add(writeWait))
				return nil
			}

			c.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				return nil
			}

		case <-ticker.C:
			c.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}

		case <-closed:
			return nil
		}
	}
}

// =============================================================================

// NewPublisher returns a batch handler that serializes every batch and
// hands it to the connected stream subscribers.
func NewPublisher(log *zap.SugaredLogger, evts *events.Events) feed.BatchHandler {
	return func(batch []feed.Event) {
		metricGenerated.Add(float64(len(batch)))

		data, err := json.Marshal(batch)
		if err != nil {
			log.Errorw("publish", "status", "encoding batch", "ERROR", err)
			return
		}

		evts.Send(data)
	}
}

// parseFilter reads the optional filter from the query string.
func parseFilter(r *http.Request) (feed.Filter, error) {
	filter := feed.Filter{
		Chain:    web.Query(r, "chain"),
		Category: web.Query(r, "category"),
	}

	if limit := web.Query(r, "limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			return feed.Filter{}, errs.BadRequestf("invalid limit %q", limit)
		}
		filter.Limit = n
	}

	if err := filter.Validate(); err != nil {
		return feed.Filter{}, err
	}

	return filter, nil
}
