package promclient

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var OpenBookGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "open_order_books",
		Help: "number of running order book reconcilers",
	},
)

var BookResyncTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "orderbook_resyncs_total",
		Help: "snapshot reloads triggered by detected data loss",
	},
)

var BookGapTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "orderbook_gaps_total",
		Help: "update events rejected because of a sequence hole",
	},
)

var BufferDroppedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "orderbook_buffered_updates_dropped_total",
		Help: "pre-snapshot updates evicted from a full buffer",
	},
)

var FeedMalformedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "feed_malformed_messages_total",
		Help: "inbound frames dropped as unparseable",
	},
)

var SnapshotRowsFlushedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "snapshot_rows_flushed_total",
		Help: "analytics snapshot rows written to durable storage",
	},
)

func StartPromClientServer(addr string) {
	reg := prometheus.NewRegistry()
	promHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	reg.MustRegister(OpenBookGauge)
	reg.MustRegister(BookResyncTotal)
	reg.MustRegister(BookGapTotal)
	reg.MustRegister(BufferDroppedTotal)
	reg.MustRegister(FeedMalformedTotal)
	reg.MustRegister(SnapshotRowsFlushedTotal)
	reg.MustRegister(collectors.NewGoCollector())

	http.Handle("/metrics", promHandler)
	log.Printf("prometheus server listening at %s", addr)

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
