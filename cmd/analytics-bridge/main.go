// Command analytics-bridge runs the Event Bridge (Analytics): a secondary
// process that ingests the master's /analytics namespace and exposes one
// sub-namespace per downstream analytics service, per §4.9.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/brunomcebola/argos/internal/bridge"
	"github.com/brunomcebola/argos/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()

	masterHTTP := "http://" + cfg.MasterAddress
	if cfg.MasterAddress == "" {
		masterHTTP = "http://127.0.0.1:8080"
	}

	// eventsocket.Client converts the http(s) scheme to ws(s) itself, so
	// the same base URL serves both the control-plane POST and the
	// event-socket dial.
	b := bridge.New(masterHTTP, masterHTTP)

	// A single default subscriber service is always available; real
	// deployments register one Service per downstream analytics worker
	// and call Subscribe/Unsubscribe as their own configuration demands.
	b.RegisterService("default")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	r := chi.NewRouter()
	r.Get("/socket/default", b.ServeNamespace("default"))

	srv := &http.Server{Addr: cfg.Addr(), Handler: r}
	go func() {
		log.Printf("analytics-bridge: listening on %s, master=%s", cfg.Addr(), masterHTTP)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("analytics-bridge: http server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Print("analytics-bridge: shutting down")
	cancel()
	return 0
}
