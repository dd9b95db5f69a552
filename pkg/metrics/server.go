package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deagent-io/deagent/pkg/log"
)

// Server exposes the chat client's Prometheus metrics over HTTP.
type Server struct {
	addr    string
	httpSrv *http.Server
	metrics *Metrics
}

// ServerConfig configures the metrics endpoint. Zero values fall back to
// :9090 with 5s/10s read/write timeouts and a fresh registry.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Registry     *prometheus.Registry
}

// NewServer builds the metrics server and registers all collectors.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":9090"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	s := &Server{
		addr:    cfg.Addr,
		metrics: NewMetrics(cfg.Registry),
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"healthy","service":"deagent-metrics"}`)
	})
	mux.HandleFunc("/", serveIndex)

	s.httpSrv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// GetMetrics returns the collectors the session and client record into.
func (s *Server) GetMetrics() *Metrics {
	return s.metrics
}

// Start serves metrics until Stop is called. It blocks.
func (s *Server) Start() error {
	log.WithField("addr", s.addr).Info("starting metrics server")

	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics server shutdown failed: %w", err)
	}
	log.Info("metrics server stopped")
	return nil
}

func serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head>
    <title>deagent Metrics</title>
    <style>
        body { font-family: Arial, sans-serif; max-width: 800px; margin: 50px auto; padding: 20px; }
        h1 { color: #333; }
        a { color: #0066cc; text-decoration: none; }
        a:hover { text-decoration: underline; }
        .endpoint { margin: 20px 0; padding: 15px; background-color: #f5f5f5; border-left: 4px solid #0066cc; }
        code { background-color: #e8e8e8; padding: 2px 6px; border-radius: 3px; }
    </style>
</head>
<body>
    <h1>deagent Metrics Server</h1>
    <p>This server exposes Prometheus metrics for the deagent chat client.</p>

    <div class="endpoint">
        <h2><a href="/metrics">/metrics</a></h2>
        <p>Prometheus metrics endpoint in OpenMetrics format.</p>
    </div>

    <div class="endpoint">
        <h2><a href="/health">/health</a></h2>
        <p>Health check endpoint. Returns JSON with service status.</p>
    </div>

    <h2>Available Metrics</h2>
    <ul>
        <li><code>deagent_turns_total</code> - Total conversation turns by topic, intent, and outcome</li>
        <li><code>deagent_turn_duration_seconds</code> - End-to-end turn duration histogram</li>
        <li><code>deagent_agent_steps_total</code> - Total reported agent steps by agent and status</li>
        <li><code>deagent_backend_requests_total</code> - Total backend requests by operation and outcome</li>
        <li><code>deagent_documents_uploaded_total</code> - Total knowledge-base uploads</li>
        <li><code>deagent_history_turns</code> - Current conversation length</li>
        <li><code>deagent_turns_in_flight</code> - Whether a turn is awaiting a response</li>
        <li><code>deagent_rate_limit_pauses_total</code> - Total client-side rate limit pauses</li>
        <li><code>deagent_response_size_bytes</code> - Response content size distribution</li>
    </ul>

    <h2>Example Prometheus Configuration</h2>
    <pre><code>scrape_configs:
  - job_name: 'deagent'
    static_configs:
      - targets: ['localhost:9090']
    scrape_interval: 15s</code></pre>
</body>
</html>`)
}
