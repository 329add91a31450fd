package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/woozymasta/matchlist/internal/models"
	"github.com/woozymasta/matchlist/internal/ratelimit"
	"github.com/woozymasta/matchlist/internal/registry"
	"github.com/woozymasta/matchlist/internal/storage"
	"golang.org/x/time/rate"
)

// IdentityFunc derives the rate limiting identity of a caller from its request.
type IdentityFunc func(r *http.Request) string

// Server holds the dependencies, configuration, and runtime state required
// to handle HTTP requests and background journal processing.
type Server struct {
	// registry owns all match state.
	registry *registry.Registry

	// limiter gates every inbound request by (identity, path).
	limiter *ratelimit.Limiter

	// storage is the optional event journal. Nil disables journaling.
	storage *storage.Repository

	// mux routes requests to handlers; rate limit metrics use its patterns as labels.
	mux *http.ServeMux

	// metrics holds the Prometheus collectors exposed on /metrics.
	metrics *metrics

	// identity resolves the caller identity used as rate limit key.
	identity IdentityFunc

	// queue is a buffered channel passing lifecycle events from the registry
	// to the journal writers.
	queue chan models.Event

	// shutdown is a signal channel used to stop the janitor during a graceful shutdown.
	shutdown chan struct{}

	// authToken is the bearer token required by /api/events. Empty disables the endpoint.
	authToken string

	// corsOrigin is sent as Access-Control-Allow-Origin. Empty disables CORS headers.
	corsOrigin string

	// deniedLog throttles warnings about rate limited callers.
	deniedLog rate.Sometimes

	// wg waits for journal writers to drain the queue.
	wg sync.WaitGroup

	// janitorWG waits for the sweep loop, which may still emit events.
	janitorWG sync.WaitGroup

	// stopOnce guards StopWorkers against double close.
	stopOnce sync.Once

	// maxBody specifies the maximum allowed size (in bytes) for incoming HTTP request bodies.
	maxBody int64

	// evictAfter removes matches without heartbeat for longer than this; zero keeps them.
	evictAfter time.Duration

	// sweepInterval is the janitor period.
	sweepInterval time.Duration
}
