package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/CAFxX/httpcompression"
	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/goccy/go-json"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	"github.com/getsentry/callprof/internal/calltimer"
	"github.com/getsentry/callprof/internal/httputil"
	"github.com/getsentry/callprof/internal/report"
)

type (
	server struct {
		table *calltimer.Table
		topK  int
	}

	ReportEntry struct {
		Name    string  `json:"name"`
		TotalMS float64 `json:"total_ms"`
	}
)

func (s *server) newRouter() (http.Handler, error) {
	compress, err := httpcompression.DefaultAdapter()
	if err != nil {
		return nil, err
	}

	routes := []struct {
		method  string
		path    string
		handler http.HandlerFunc
	}{
		{http.MethodGet, "/functions", s.getFunctions},
		{http.MethodGet, "/health", s.getHealth},
		{http.MethodGet, "/report", s.getReport},
	}

	router := httprouter.New()

	for _, route := range routes {
		handler := httputil.NameTransaction(route.path, route.handler)
		router.Handler(route.method, route.path, compress(handler))
	}

	return sentryhttp.New(sentryhttp.Options{}).Handle(router), nil
}

// serve serves handler on l until ctx is done.
func serve(ctx context.Context, l net.Listener, handler http.Handler) error {
	srv := http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	waitForShutdown := make(chan struct{})
	go func() {
		defer close(waitForShutdown)
		<-ctx.Done()

		cctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(cctx); err != nil {
			sentry.CaptureException(err)
			log.Err(err).Msg("error shutting down server")
		}
	}()

	err := srv.Serve(l)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		sentry.CaptureException(err)
		return err
	}
	<-waitForShutdown
	return nil
}

func hubFromRequest(r *http.Request) *sentry.Hub {
	if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
		return hub
	}
	return sentry.CurrentHub()
}

func (s *server) getHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) getReport(w http.ResponseWriter, r *http.Request) {
	hub := hubFromRequest(r)
	topK, logger, ok := httputil.GetPositiveIntQueryParameter(w, r, "top_k", s.topK)
	if !ok {
		return
	}

	stats := report.Top(s.table, topK)
	logger.Debug().Int("callables", len(stats)).Msg("report")
	response := make([]ReportEntry, 0, len(stats))
	for _, st := range stats {
		response = append(response, ReportEntry{Name: st.Name, TotalMS: report.Milliseconds(st.Total)})
	}

	writeJSON(w, hub, response)
}

func (s *server) getFunctions(w http.ResponseWriter, r *http.Request) {
	topK, _, ok := httputil.GetPositiveIntQueryParameter(w, r, "top_k", s.topK)
	if !ok {
		return
	}

	writeJSON(w, hubFromRequest(r), report.Metrics(s.table, topK))
}

func writeJSON(w http.ResponseWriter, hub *sentry.Hub, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}
