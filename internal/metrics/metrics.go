// Package metrics exposes prometheus instrumentation for the economy
// core and the webhook surface.
package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	VotesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "goldbot_votes_processed_total",
		Help: "Vote events that resulted in a reward grant.",
	})
	VotesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goldbot_votes_rejected_total",
		Help: "Vote events rejected, by reason.",
	}, []string{"reason"})
	BoostersExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "goldbot_boosters_expired_total",
		Help: "Boosters removed by the lazy expiry sweep.",
	})
	NetWorthRefreshed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "goldbot_networth_refreshed_total",
		Help: "Users refreshed by the net-worth job.",
	})
	WebhookDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "goldbot_webhook_seconds",
		Help:    "Vote webhook handling time.",
		Buckets: prometheus.DefBuckets,
	})
	CommandsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goldbot_commands_total",
		Help: "Bot commands handled, by command.",
	}, []string{"command"})
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "goldbot_cache_hits_total",
		Help: "Fast cache reads that found a key.",
	})
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "goldbot_cache_misses_total",
		Help: "Fast cache reads that fell through to the store.",
	})
)

// Serve blocks serving /metrics on addr.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	log.Printf("metrics: listening on %s", addr)
	return srv.ListenAndServe()
}
