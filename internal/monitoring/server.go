package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/paveg/parmat/internal/parallel"
)

// StatsProvider reports the state of a worker pool.
type StatsProvider interface {
	Stats() parallel.PoolStats
}

// Server provides HTTP endpoints for monitoring matrix operations and the
// worker pool executing them.
type Server struct {
	collector *MetricsCollector
	pool      StatsProvider
	server    *http.Server
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithStatsProvider exposes pool statistics on /pool and /health.
func WithStatsProvider(p StatsProvider) ServerOption {
	return func(s *Server) { s.pool = p }
}

// NewMonitoringServer creates a new monitoring server listening on port.
func NewMonitoringServer(collector *MetricsCollector, port int, opts ...ServerOption) *Server {
	mux := http.NewServeMux()

	server := &Server{
		collector: collector,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second, //nolint:mnd // Standard timeout value
		},
	}
	for _, opt := range opts {
		opt(server)
	}

	mux.HandleFunc("GET /metrics", server.handleMetrics)
	mux.HandleFunc("GET /metrics/summary", server.handleSummary)
	mux.HandleFunc("GET /health", server.handleHealth)
	mux.HandleFunc("GET /pool", server.handlePool)
	mux.HandleFunc("GET /dashboard", server.handleDashboard)

	return server
}

// Handler returns the HTTP handler serving every endpoint.
func (ms *Server) Handler() http.Handler {
	return ms.server.Handler
}

// Addr returns the listen address.
func (ms *Server) Addr() string {
	return ms.server.Addr
}

// Start serves until Stop or Shutdown. It returns http.ErrServerClosed after a
// clean shutdown.
func (ms *Server) Start() error {
	return ms.server.ListenAndServe()
}

// Stop closes the server immediately.
func (ms *Server) Stop() error {
	return ms.server.Close()
}

// Shutdown stops the server once in-flight requests finish or ctx is done.
func (ms *Server) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

func (ms *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, ms.collector.GetMetrics())
}

func (ms *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, ms.collector.GetSummary())
}

func (ms *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	response := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"enabled":   ms.collector.IsEnabled(),
	}
	if ms.pool != nil {
		state := ms.pool.Stats().State
		response["pool"] = state
		if state != "running" {
			response["status"] = "degraded"
		}
	}
	writeJSON(w, response)
}

func (ms *Server) handlePool(w http.ResponseWriter, _ *http.Request) {
	if ms.pool == nil {
		http.Error(w, "no worker pool attached", http.StatusNotFound)
		return
	}
	writeJSON(w, ms.pool.Stats())
}

func (ms *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(ms.dashboardHTML())); err != nil {
		http.Error(w, "Failed to write dashboard", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// dashboardHTML renders a small self-refreshing status page.
func (ms *Server) dashboardHTML() string {
	summary := ms.collector.GetSummary()
	var b strings.Builder

	b.WriteString(`<!DOCTYPE html>
<html>
<head>
    <title>parmat Monitoring</title>
    <meta charset="UTF-8">
    <meta http-equiv="refresh" content="30">
    <style>
        body { font-family: sans-serif; margin: 20px; }
        table { border-collapse: collapse; margin: 16px 0; }
        th, td { border: 1px solid #ddd; padding: 6px 10px; text-align: left; }
        th { background: #f2f2f2; }
    </style>
</head>
<body>
    <h1>parmat Monitoring</h1>
`)

	status := "enabled"
	if !ms.collector.IsEnabled() {
		status = "disabled"
	}
	fmt.Fprintf(&b, `    <h2>Operations</h2>
    <p>Collection: %s</p>
    <p>Total: %d (parallel %d, accelerated %d, failed %d)</p>
    <p>Average duration: %v</p>
`, status, summary.TotalOperations, summary.ParallelOperations,
		summary.AcceleratedOperations, summary.FailedOperations, summary.AverageDuration)

	if len(summary.OperationCounts) > 0 {
		ops := make([]string, 0, len(summary.OperationCounts))
		for op := range summary.OperationCounts {
			ops = append(ops, op)
		}
		sort.Strings(ops)
		b.WriteString("    <table><tr><th>Operation</th><th>Count</th></tr>\n")
		for _, op := range ops {
			fmt.Fprintf(&b, "    <tr><td>%s</td><td>%d</td></tr>\n", html.EscapeString(op), summary.OperationCounts[op])
		}
		b.WriteString("    </table>\n")
	}

	if ms.pool != nil {
		s := ms.pool.Stats()
		fmt.Fprintf(&b, `    <h2>Worker pool</h2>
    <table>
    <tr><th>State</th><td>%s</td></tr>
    <tr><th>Workers</th><td>%d</td></tr>
    <tr><th>Jobs submitted</th><td>%d</td></tr>
    <tr><th>Jobs completed</th><td>%d</td></tr>
    <tr><th>Jobs failed</th><td>%d</td></tr>
    <tr><th>Queue</th><td>%d / %d (max %d)</td></tr>
    <tr><th>Backpressure events</th><td>%d</td></tr>
    </table>
`, html.EscapeString(s.State), s.Workers, s.JobsSubmitted, s.JobsCompleted, s.JobsFailed,
			s.QueueLength, s.QueueCapacity, s.MaxQueueDepth, s.BackpressureEvents)
	}

	b.WriteString("</body>\n</html>\n")
	return b.String()
}
