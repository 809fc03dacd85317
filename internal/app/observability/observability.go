package observability

import (
	"bufio"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type key struct {
	Method string
	Path   string
	Status int
}

type stat struct {
	Count     int64
	LatencyMS float64
}

type compileStat struct {
	Sessions int64
	Accepted int64
	Rejected int64
}

type Collector struct {
	db     *sql.DB
	logger *zap.Logger

	mu           sync.RWMutex
	requestStats map[key]stat
	compileStats map[string]compileStat
	startedAt    time.Time
}

func NewCollector(db *sql.DB, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		db:           db,
		logger:       logger,
		requestStats: make(map[key]stat),
		compileStats: make(map[string]compileStat),
		startedAt:    time.Now(),
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		latencyMS := float64(time.Since(start).Microseconds()) / 1000.0
		path := normalizedPath(r.URL.Path)

		c.mu.Lock()
		k := key{Method: r.Method, Path: path, Status: rec.status}
		s := c.requestStats[k]
		s.Count++
		s.LatencyMS += latencyMS
		c.requestStats[k] = s
		c.mu.Unlock()

		c.logger.Info("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("session_id", extractSessionID(r.URL.Path)),
			zap.String("method", r.Method),
			zap.String("path", path),
			zap.Int("status", rec.status),
			zap.Float64("latency_ms", latencyMS),
			zap.String("remote_ip", strings.TrimSpace(r.RemoteAddr)),
		)
	})
}

func (c *Collector) RecordCompile(bank string, accepted, rejected int) {
	c.mu.Lock()
	s := c.compileStats[bank]
	s.Sessions++
	s.Accepted += int64(accepted)
	s.Rejected += int64(rejected)
	c.compileStats[bank] = s
	c.mu.Unlock()
}

func (c *Collector) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	statsCopy := make(map[key]stat, len(c.requestStats))
	for k, v := range c.requestStats {
		statsCopy[k] = v
	}
	compileCopy := make(map[string]compileStat, len(c.compileStats))
	for k, v := range c.compileStats {
		compileCopy[k] = v
	}
	startedAt := c.startedAt
	c.mu.RUnlock()

	keys := make([]key, 0, len(statsCopy))
	for k := range statsCopy {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Method != keys[j].Method {
			return keys[i].Method < keys[j].Method
		}
		if keys[i].Path != keys[j].Path {
			return keys[i].Path < keys[j].Path
		}
		return keys[i].Status < keys[j].Status
	})

	var sb strings.Builder
	sb.WriteString("# quizforge metrics\n")
	sb.WriteString("# TYPE quizforge_uptime_seconds gauge\n")
	sb.WriteString(fmt.Sprintf("quizforge_uptime_seconds %.0f\n", time.Since(startedAt).Seconds()))

	sb.WriteString("# TYPE quizforge_http_requests_total counter\n")
	sb.WriteString("# TYPE quizforge_http_request_latency_ms_sum counter\n")
	sb.WriteString("# TYPE quizforge_http_request_latency_ms_avg gauge\n")
	for _, k := range keys {
		s := statsCopy[k]
		labels := fmt.Sprintf("method=\"%s\",path=\"%s\",status=\"%d\"", labelValue(k.Method), labelValue(k.Path), k.Status)
		sb.WriteString(fmt.Sprintf("quizforge_http_requests_total{%s} %d\n", labels, s.Count))
		sb.WriteString(fmt.Sprintf("quizforge_http_request_latency_ms_sum{%s} %.3f\n", labels, s.LatencyMS))
		avg := 0.0
		if s.Count > 0 {
			avg = s.LatencyMS / float64(s.Count)
		}
		sb.WriteString(fmt.Sprintf("quizforge_http_request_latency_ms_avg{%s} %.3f\n", labels, avg))
	}

	banks := make([]string, 0, len(compileCopy))
	for b := range compileCopy {
		banks = append(banks, b)
	}
	sort.Strings(banks)
	sb.WriteString("# TYPE quizforge_sessions_total counter\n")
	sb.WriteString("# TYPE quizforge_questions_compiled_total counter\n")
	sb.WriteString("# TYPE quizforge_questions_rejected_total counter\n")
	for _, b := range banks {
		s := compileCopy[b]
		b = labelValue(b)
		sb.WriteString(fmt.Sprintf("quizforge_sessions_total{bank=\"%s\"} %d\n", b, s.Sessions))
		sb.WriteString(fmt.Sprintf("quizforge_questions_compiled_total{bank=\"%s\"} %d\n", b, s.Accepted))
		sb.WriteString(fmt.Sprintf("quizforge_questions_rejected_total{bank=\"%s\"} %d\n", b, s.Rejected))
	}

	if c.db != nil {
		dbs := c.db.Stats()
		sb.WriteString("# TYPE quizforge_db_open_connections gauge\n")
		sb.WriteString(fmt.Sprintf("quizforge_db_open_connections %d\n", dbs.OpenConnections))
		sb.WriteString("# TYPE quizforge_db_in_use_connections gauge\n")
		sb.WriteString(fmt.Sprintf("quizforge_db_in_use_connections %d\n", dbs.InUse))
		sb.WriteString("# TYPE quizforge_db_idle_connections gauge\n")
		sb.WriteString(fmt.Sprintf("quizforge_db_idle_connections %d\n", dbs.Idle))
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(sb.String()))
}

func normalizedPath(path string) string {
	if path == "" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if _, err := strconv.ParseInt(p, 10, 64); err == nil {
			parts[i] = "{id}"
			continue
		}
		if _, err := uuid.Parse(p); err == nil {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

func extractSessionID(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "sessions" {
			if id, err := uuid.Parse(parts[i+1]); err == nil {
				return id.String()
			}
		}
	}
	return ""
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func labelValue(v string) string {
	return labelEscaper.Replace(v)
}
