package feedgrp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "blockfeed",
		Name:      "events_generated_total",
		Help:      "Number of events synthesized by the generator.",
	})

	metricServed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "blockfeed",
		Name:      "events_served_total",
		Help:      "Number of events returned by the events endpoint.",
	})

	metricSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "blockfeed",
		Name:      "stream_subscribers",
		Help:      "Number of connected stream subscribers.",
	})
)
