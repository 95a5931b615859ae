package actions

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/siphon-data/siphon/helper"
	"github.com/siphon-data/siphon/logger"
	"github.com/siphon-data/siphon/resilience"
)

type WebServerConfig struct {
	LogLevel         string `errorTxt:"log level" mandatory:"yes"`
	Addr             net.IP `errorTxt:"address" mandatory:"no"`
	Port             int    `errorTxt:"port" mandatory:"yes"`
	StackDumpOnPanic bool
}

func RunWebServer(web *WebServerConfig) error {
	if web == nil {
		return errors.New("nil pointer to web server config supplied")
	}
	log := logger.NewLogger("siphon", web.LogLevel, web.StackDumpOnPanic)
	// Check if we have valid input params.
	if err := helper.ValidateStructIsPopulated(web); err != nil {
		return err
	}
	// Wire the shared run machinery: one orchestrator, one resilience
	// registry and one metrics registry for the process lifetime.
	promRegistry := prometheus.NewRegistry()
	orch := NewOrchestrator(log)
	orch.Metrics = resilience.NewCollector(promRegistry)
	srv, chanStopServer := runServer(log, web, orch, promRegistry)
	// Block & wait for completion.
	return waitForServer(log, srv, chanStopServer)
}

// runServer starts the admin web server and returns:
// 1) the server; and
// 2) a channel that can be used to stop it.
func runServer(log logger.Logger, web *WebServerConfig, orch *Orchestrator, promRegistry *prometheus.Registry) (*http.Server, chan string) {
	chanStopServer := make(chan string, 1)
	runs := newRunLauncher(log, orch)
	// Create routes.
	r := mux.NewRouter()
	r.Path("/health").HandlerFunc(GetHandlerHealth(log))
	r.Path("/metrics").Handler(promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	r.Path("/admin/breakers").Methods(http.MethodGet).HandlerFunc(GetHandlerBreakerList(log, orch.Registry))
	r.Path("/admin/breakers/{key}/reset").Methods(http.MethodPost).HandlerFunc(GetHandlerBreakerReset(log, orch.Registry))
	r.Path("/extract").Methods(http.MethodPost).Headers("Content-Type", "application/json").HandlerFunc(GetHandlerExtractLaunch(log, runs))
	r.Path("/runs/{lineageId}").Methods(http.MethodGet).HandlerFunc(GetHandlerRunStatus(log, runs))
	r.HandleFunc("/stop", GetHandlerStopServer(log, chanStopServer))
	// Configure HTTP server.
	srv := &http.Server{ // Good practice to set timeouts to avoid Slowloris attacks.
		Addr:         fmt.Sprintf("%v:%v", web.Addr, web.Port),
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      r, // supply our instance of gorilla/mux.
	}
	// Run HTTP server non-blocking.
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			if err == http.ErrServerClosed {
				log.Info(err)
			} else {
				log.Panic(err)
			}
		}
	}()
	log.Info(fmt.Sprintf("Listening on http://%v:%v", web.Addr, web.Port))
	return srv, chanStopServer
}

func waitForServer(log logger.Logger, srv *http.Server, chanStopServer chan string) error {
	// Block & wait for shutdown signals.
	// Accept graceful shutdowns when quit via SIGINT (Ctrl+C)
	// SIGKILL, SIGQUIT or SIGTERM (Ctrl+\) will not be caught.
	chanOS := make(chan os.Signal, 1)
	signal.Notify(chanOS, os.Interrupt) // request signals be sent to chanOS.
	select {
	case <-chanStopServer:
	case <-chanOS:
	}
	fmt.Println() // print new line char for clean looking CLI.
	log.Info("Shutting down web server...")
	wait := time.Second * 15
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	// Doesn't block if no connections, but will otherwise wait until the timeout deadline.
	return srv.Shutdown(ctx)
}
