// Command master runs the ARGOS Master: the persistent node registry, the
// outbound event-socket session per node, frame fan-out to /gui and
// /analytics, and the HTTP control plane for node CRUD, proxying, and
// recording toggles (§4.5).
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/brunomcebola/argos/internal/audit"
	"github.com/brunomcebola/argos/internal/config"
	"github.com/brunomcebola/argos/internal/dataset"
	"github.com/brunomcebola/argos/internal/eventsocket"
	"github.com/brunomcebola/argos/internal/master"
	"github.com/brunomcebola/argos/internal/metrics"
	mw "github.com/brunomcebola/argos/internal/middleware"
	"github.com/brunomcebola/argos/internal/ratelimit"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()
	if err := config.EnsureDirs(cfg); err != nil {
		log.Printf("master: startup failed: %v", err)
		return 1
	}

	registry, err := master.NewRegistry(filepath.Join(cfg.NodesDir(), "nodes.yaml"))
	if err != nil {
		log.Printf("master: load node registry failed: %v", err)
		return 1
	}

	datasets, err := dataset.NewRegistry(cfg.DatasetsDir())
	if err != nil {
		log.Printf("master: load dataset registry failed: %v", err)
		return 1
	}

	collector := metrics.NewCollector()
	recorder := dataset.NewRecorder()
	recorder.SetMetricsHooks(collector.ObserveRecorderWrite, collector.ObserveRecorderDrop)

	hub := eventsocket.NewHub()

	var egress master.AnalyticsEgress
	if natsEgress, err := master.DialNATSEgress(cfg.NATSURL); err != nil {
		log.Printf("master: analytics NATS egress disabled: %v", err)
	} else {
		egress = natsEgress
		defer natsEgress.Close()
	}

	fleet := master.NewFleet(registry, hub, egress, recorder)
	fleet.SetReconnectHook(func(nodeID int) {
		collector.ObserveReconnect(strconv.Itoa(nodeID))
	})
	fleet.SetFanoutHook(collector.ObserveFanout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fleet.Start(ctx)

	mw.SetMetricsCollector(collector)

	var limiter *ratelimit.Limiter
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("master: redis unavailable at %s, rate limiting fails open: %v", cfg.RedisAddr, err)
		mw.RecordRateLimitBackend(false)
	} else {
		limiter = ratelimit.NewLimiter(redisClient, "argos-ratelimit")
		mw.RecordRateLimitBackend(true)
	}

	var auditService *audit.Service
	if cfg.AuditDBDSN != "" {
		db, err := sql.Open("postgres", cfg.AuditDBDSN)
		if err == nil {
			err = db.PingContext(ctx)
		}
		if err != nil {
			log.Printf("master: audit db unavailable, audit log disabled: %v", err)
		} else {
			auditService = audit.NewService(db)
			auditService.StartReplayer(ctx)
			defer db.Close()
		}
	} else {
		log.Print("master: AUDIT_DB_DSN unset, audit log disabled")
	}

	imagesDir := filepath.Join(cfg.NodesDir(), "images")
	server := master.NewServer(registry, fleet, datasets, imagesDir, limiter)

	r := chi.NewRouter()
	r.Use(mw.RequestLogger)
	r.Use(mw.CORS)
	if auditService != nil {
		auditMW := mw.NewAuditMiddleware(auditService)
		r.Use(auditMW.LogRequest)
		r.Get("/audit/events", handleAuditEvents(auditService))
	}
	r.Mount("/", server.Router())
	r.Get("/socket/gui", hub.ServeNamespace("/gui"))
	r.Get("/socket/analytics", hub.ServeNamespace("/analytics"))
	r.Get("/metrics", collector.Handler().ServeHTTP)

	srv := &http.Server{Addr: cfg.Addr(), Handler: r}

	go func() {
		log.Printf("master: listening on %s", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("master: http server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Print("master: shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	return 0
}

func handleAuditEvents(svc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		f := audit.Filter{Cursor: r.URL.Query().Get("cursor"), Limit: limit}

		events, cursor, err := svc.QueryEvents(r.Context(), f)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"events": events, "cursor": cursor})
	}
}
