// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/ardanlabs/blockfeed/app/services/feed/handlers/v1/feedgrp"
	"github.com/ardanlabs/blockfeed/business/core/feed"
	"github.com/ardanlabs/blockfeed/business/web/mid"
	"github.com/ardanlabs/blockfeed/foundation/clock"
	"github.com/ardanlabs/blockfeed/foundation/events"
	"github.com/ardanlabs/blockfeed/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log        *zap.SugaredLogger
	Feed       *feed.Generator
	Clock      clock.Clock
	Evts       *events.Events
	CORSOrigin string
}

// Routes binds all the version 1 routes.
func Routes(app *web.App, cfg Config) {
	fgh := feedgrp.Handlers{
		Log:   cfg.Log,
		Feed:  cfg.Feed,
		Clock: cfg.Clock,
		WS:    websocket.Upgrader{},
		Evts:  cfg.Evts,
	}

	cors := mid.Cors(cfg.CORSOrigin)

	app.Handle(http.MethodGet, version, "/events", fgh.Events, cors)
	app.Handle(http.MethodGet, version, "/events/stream", fgh.Stream)
	app.Handle(http.MethodGet, version, "/feed/status", fgh.Status, cors)
}
