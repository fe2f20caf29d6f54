package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"gkgtrends/internal/cache"
	"gkgtrends/internal/eventbus"

	"github.com/gorilla/mux"
)

// BuildCommit is stamped by main with the commit hash of the running build.
var BuildCommit = "dev"

type Server struct {
	store    TrendStore
	scorer   TrendScorer
	ingester DailyIngester
	cache    cache.Cache
	bus      *eventbus.Bus
	backfill QueueReporter
	hub      *Hub
	limiter  *visitorLimiter

	topN        int
	realtimeTTL time.Duration

	httpServer *http.Server

	statusCache struct {
		mu        sync.Mutex
		payload   []byte
		expiresAt time.Time
	}
}

func NewServer(store TrendStore, sc TrendScorer, ing DailyIngester, c cache.Cache, port string, opts ...func(*Server)) *Server {
	r := mux.NewRouter()

	s := &Server{
		store:       store,
		scorer:      sc,
		ingester:    ing,
		cache:       c,
		hub:         newHub(),
		limiter:     visitorLimiterFromEnv(),
		topN:        50,
		realtimeTTL: 15 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}

	r.Use(commonMiddleware)
	r.Use(s.limiter.middleware)

	registerBaseRoutes(r, s)
	registerTrendRoutes(r, s)
	registerAdminRoutes(r, s)

	s.httpServer = &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	return s
}

// WithEventBus wires aggregation events into the live WebSocket stream.
func WithEventBus(bus *eventbus.Bus) func(*Server) {
	return func(s *Server) { s.bus = bus }
}

// WithBackfillPool surfaces the pool's queue depth on /status.
func WithBackfillPool(q QueueReporter) func(*Server) {
	return func(s *Server) { s.backfill = q }
}

// WithTopN sets the default result size of /trends/top.
func WithTopN(n int) func(*Server) {
	return func(s *Server) {
		if n > 0 {
			s.topN = n
		}
	}
}

// WithRealtimeTTL sets how long read-path realtime cache entries live.
// It should track the realtime poll interval.
func WithRealtimeTTL(d time.Duration) func(*Server) {
	return func(s *Server) {
		if d > 0 {
			s.realtimeTTL = d
		}
	}
}

func (s *Server) Start() error {
	go s.hub.run()
	if s.bus != nil {
		go s.pumpEvents()
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func commonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
