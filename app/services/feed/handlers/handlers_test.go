package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ardanlabs/blockfeed/app/services/feed/handlers"
	"github.com/ardanlabs/blockfeed/app/services/feed/handlers/v1/feedgrp"
	"github.com/ardanlabs/blockfeed/business/core/feed"
	"github.com/ardanlabs/blockfeed/business/web/errs"
	"github.com/ardanlabs/blockfeed/foundation/clock"
	"github.com/ardanlabs/blockfeed/foundation/events"
	"github.com/ardanlabs/blockfeed/foundation/logger"
	"github.com/gorilla/websocket"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type service struct {
	mux   http.Handler
	clock *clock.Fake
	evts  *events.Events
	gen   *feed.Generator
}

func newService(t *testing.T) service {
	t.Helper()

	log := logger.NewNop()
	clk := clock.NewFake(t0)
	evts := events.New()

	gen, err := feed.New(feed.Config{
		Interval: 5 * time.Second,
		Capacity: 300,
		Now:      t0,
		OnBatch:  feedgrp.NewPublisher(log, evts),
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a generator: %s", failed, err)
	}

	mux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: make(chan os.Signal, 1),
		Log:      log,
		Feed:     gen,
		Clock:    clk,
		Evts:     evts,
	})

	return service{mux: mux, clock: clk, evts: evts, gen: gen}
}

func (s service) get(path string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, r)
	return w
}

func Test_Events(t *testing.T) {
	svc := newService(t)

	t.Log("Given the need to serve the generated feed.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen no interval has elapsed.", testID)
		{
			w := svc.get("/v1/events")
			if w.Code != http.StatusOK {
				t.Fatalf("\t%s\tTest %d:\tShould get a 200: got %d", failed, testID, w.Code)
			}
			if body := strings.TrimSpace(w.Body.String()); body != "[]" {
				t.Fatalf("\t%s\tTest %d:\tShould get an empty array: got %s", failed, testID, body)
			}
			t.Logf("\t%s\tTest %d:\tShould get an empty array.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen twelve seconds have elapsed.", testID)
		{
			svc.clock.Advance(12 * time.Second)

			w := svc.get("/v1/events")
			var evts []feed.Event
			if err := json.Unmarshal(w.Body.Bytes(), &evts); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to decode the response: %s", failed, testID, err)
			}

			if len(evts) != 10 {
				t.Fatalf("\t%s\tTest %d:\tShould get two batches of five chains: got %d", failed, testID, len(evts))
			}
			t.Logf("\t%s\tTest %d:\tShould get two batches of five chains.", success, testID)

			if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
				t.Fatalf("\t%s\tTest %d:\tShould set the CORS origin: got %q", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould set the CORS origin.", success, testID)

			again := svc.get("/v1/events")
			if again.Body.String() != w.Body.String() {
				t.Fatalf("\t%s\tTest %d:\tShould not generate inside the interval.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not generate inside the interval.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen filtering the feed.", testID)
		{
			var evts []feed.Event
			w := svc.get("/v1/events?chain=solana&limit=1")
			if err := json.Unmarshal(w.Body.Bytes(), &evts); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to decode the response: %s", failed, testID, err)
			}

			if len(evts) != 1 || evts[0].Chain != feed.ChainSolana {
				t.Fatalf("\t%s\tTest %d:\tShould get one solana event: got %+v", failed, testID, evts)
			}
			t.Logf("\t%s\tTest %d:\tShould get one solana event.", success, testID)
		}
	}
}

func Test_BadFilter(t *testing.T) {
	svc := newService(t)

	tests := []struct {
		name  string
		path  string
		field string
	}{
		{"chain", "/v1/events?chain=dogecoin", "chain"},
		{"category", "/v1/events?category=memes", "category"},
		{"range", "/v1/events?limit=501", "limit"},
		{"limit", "/v1/events?limit=ten", ""},
	}

	t.Log("Given the need to reject unrecognized filters.")
	{
		for testID, tt := range tests {
			f := func(t *testing.T) {
				w := svc.get(tt.path)
				if w.Code != http.StatusBadRequest {
					t.Fatalf("\t%s\tTest %d:\tShould get a 400: got %d", failed, testID, w.Code)
				}
				t.Logf("\t%s\tTest %d:\tShould get a 400.", success, testID)

				var resp errs.Response
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to decode the response: %s", failed, testID, err)
				}

				if tt.field != "" {
					if _, exists := resp.Fields[tt.field]; !exists {
						t.Fatalf("\t%s\tTest %d:\tShould report the %s field: got %v", failed, testID, tt.field, resp.Fields)
					}
					t.Logf("\t%s\tTest %d:\tShould report the %s field.", success, testID, tt.field)
				}
			}

			t.Run(tt.name, f)
		}
	}
}

func Test_StatusAndPreflight(t *testing.T) {
	svc := newService(t)
	svc.clock.Advance(5 * time.Second)
	svc.get("/v1/events")

	t.Log("Given the need to report on the generator.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen asking for the status.", testID)
		{
			var status struct {
				Buffered    int `json:"buffered"`
				Capacity    int `json:"capacity"`
				Subscribers int `json:"subscribers"`
			}
			w := svc.get("/v1/feed/status")
			if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to decode the response: %s", failed, testID, err)
			}

			if status.Buffered != 5 || status.Capacity != 300 {
				t.Fatalf("\t%s\tTest %d:\tShould report the buffer: got %+v", failed, testID, status)
			}
			t.Logf("\t%s\tTest %d:\tShould report the buffer.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen sending a preflight request.", testID)
		{
			r := httptest.NewRequest(http.MethodOptions, "/v1/events", nil)
			w := httptest.NewRecorder()
			svc.mux.ServeHTTP(w, r)

			if w.Code != http.StatusNoContent {
				t.Fatalf("\t%s\tTest %d:\tShould get a 204: got %d", failed, testID, w.Code)
			}
			if got := w.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "GET") {
				t.Fatalf("\t%s\tTest %d:\tShould allow GET: got %q", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould accept the preflight.", success, testID)
		}
	}
}

func Test_Stream(t *testing.T) {
	svc := newService(t)

	srv := httptest.NewServer(svc.mux)
	defer srv.Close()

	t.Log("Given the need to stream batches to subscribers.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a batch is generated.", testID)
		{
			url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/events/stream"
			c, _, err := websocket.DefaultDialer.Dial(url, nil)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to connect: %s", failed, testID, err)
			}
			defer c.Close()

			deadline := time.Now().Add(5 * time.Second)
			for svc.evts.Count() == 0 {
				if time.Now().After(deadline) {
					t.Fatalf("\t%s\tTest %d:\tShould register the subscriber.", failed, testID)
				}
				time.Sleep(10 * time.Millisecond)
			}
			t.Logf("\t%s\tTest %d:\tShould register the subscriber.", success, testID)

			svc.clock.Advance(5 * time.Second)
			resp, err := http.Get(srv.URL + "/v1/events")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to request events: %s", failed, testID, err)
			}
			resp.Body.Close()

			c.SetReadDeadline(time.Now().Add(5 * time.Second))
			_, msg, err := c.ReadMessage()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould receive the batch: %s", failed, testID, err)
			}

			var batch []feed.Event
			if err := json.Unmarshal(msg, &batch); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to decode the batch: %s", failed, testID, err)
			}
			if len(batch) != 5 {
				t.Fatalf("\t%s\tTest %d:\tShould receive one event per chain: got %d", failed, testID, len(batch))
			}
			t.Logf("\t%s\tTest %d:\tShould receive one event per chain.", success, testID)

			svc.evts.Shutdown()
			if _, _, err := c.ReadMessage(); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould close the stream on shutdown.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould close the stream on shutdown.", success, testID)
		}
	}
}
