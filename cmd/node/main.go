// Command node runs the ARGOS Node Service: the per-device HTTP + event-
// socket server that advertises local cameras, serves the control surface
// in §4.4, and relays frame events to whatever master session is
// connected.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/brunomcebola/argos/internal/config"
	"github.com/brunomcebola/argos/internal/eventsocket"
	"github.com/brunomcebola/argos/internal/metrics"
	"github.com/brunomcebola/argos/internal/middleware"
	"github.com/brunomcebola/argos/internal/node"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()
	if err := config.EnsureDirs(cfg); err != nil {
		log.Printf("node: startup failed: %v", err)
		return 1
	}

	nodeID, err := os.Hostname()
	if err != nil || nodeID == "" {
		nodeID = "node"
	}
	if v := os.Getenv("NODE_ID"); v != "" {
		nodeID = v
	}

	collector := metrics.NewCollector()
	hub := eventsocket.NewHub()
	mgr := node.NewManager(nodeID, cfg.BaseDir, cfg.CamerasDir(), hub)
	mgr.SetDropHook(collector.ObserveCaptureDrop)

	if err := mgr.Boot(); err != nil {
		log.Printf("node: boot failed: %v", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr.WatchConfig(ctx)

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger)
	r.Use(middleware.CORS)
	r.Mount("/", mgr.Router())
	r.Get("/socket/*", hub.ServeNamespace("/"))
	r.Get("/metrics", collector.Handler().ServeHTTP)

	srv := &http.Server{Addr: cfg.Addr(), Handler: r}

	go func() {
		log.Printf("node: %s listening on %s", nodeID, cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("node: http server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Print("node: shutting down")
	cancel()
	mgr.Shutdown()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	return 0
}
