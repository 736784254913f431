package transport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sitebuilder/app/usecase"
	"sitebuilder/internal/domain/apperr"
	"sitebuilder/internal/domain/entity"
	"sitebuilder/internal/infrastructure/metrics"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var (
	httpMetricsOnce sync.Once
	reqDuration     *prometheus.HistogramVec
	reqCount        *prometheus.CounterVec
	errCount        *prometheus.CounterVec
)

// registerHTTPMetrics registers the request collectors once per process,
// however many handlers are built.
func registerHTTPMetrics() {
	httpMetricsOnce.Do(func() {
		reqDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		)
		reqCount = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests processed.",
			},
			[]string{"method", "path"},
		)
		errCount = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_errors_total",
				Help: "Total number of HTTP request errors.",
			},
			[]string{"method", "path", "status"},
		)
		prometheus.MustRegister(reqDuration, reqCount, errCount)
	})
}

type TaskHandler struct {
	tasks    usecase.TaskUsecase
	hub      *Hub
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewTaskHandler(tasks usecase.TaskUsecase, hub *Hub, logger *slog.Logger) *TaskHandler {
	registerHTTPMetrics()
	return &TaskHandler{
		tasks:  tasks,
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// withMetrics labels requests by route template so path variables do not
// explode label cardinality.
func (h *TaskHandler) withMetrics(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}
		method := r.Method

		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rw, r)

		duration := time.Since(start).Seconds()
		statusStr := strconv.Itoa(rw.status)

		reqCount.WithLabelValues(method, path).Inc()
		reqDuration.WithLabelValues(method, path, statusStr).Observe(duration)

		if rw.status >= 400 {
			errCount.WithLabelValues(method, path, statusStr).Inc()
		}
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

func (h *TaskHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/", h.withMetrics(h.handleRoot)).Methods(http.MethodGet)
	r.HandleFunc("/task", h.withMetrics(h.handleTask)).Methods(http.MethodPost)
	r.HandleFunc("/health", h.withMetrics(h.handleHealth)).Methods(http.MethodGet)
	r.HandleFunc("/tasks/{task}/rounds", h.withMetrics(h.handleListRounds)).Methods(http.MethodGet)
	// Not wrapped: the recorder does not implement http.Hijacker.
	r.HandleFunc("/ws/tasks/{task}", h.handleWatch).Methods(http.MethodGet)

	// Prometheus
	r.Handle("/metrics", promhttp.Handler())
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// GET /
func (h *TaskHandler) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "POST /task to build and publish a site",
	})
}

// POST /task
func (h *TaskHandler) handleTask(w http.ResponseWriter, r *http.Request) {
	var req entity.TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("bad request body: %w", err))
		return
	}

	res, err := h.tasks.Run(r.Context(), req)
	if err != nil {
		h.writeRunError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// writeRunError gives secret and validation failures their own status;
// every downstream failure is an undifferentiated 500.
func (h *TaskHandler) writeRunError(w http.ResponseWriter, req entity.TaskRequest, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindAuthorization:
		h.logger.Warn("task rejected", "task", req.Task, "reason", "secret")
		writeError(w, http.StatusUnauthorized, err)
	case apperr.KindValidation:
		h.logger.Warn("task rejected", "task", req.Task, "err", err)
		writeError(w, http.StatusBadRequest, err)
	default:
		h.logger.Error("task failed", "task", req.Task, "round", req.Round, "kind", apperr.KindOf(err), "err", err)
		http.Error(w, "Internal Server Error: "+err.Error(), http.StatusInternalServerError)
	}
}

// GET /tasks/{task}/rounds
func (h *TaskHandler) handleListRounds(w http.ResponseWriter, r *http.Request) {
	task := mux.Vars(r)["task"]
	rounds, err := h.tasks.ListRounds(r.Context(), task)
	if err != nil {
		if apperr.Is(err, apperr.KindValidation) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		h.logger.Error("list rounds failed", "task", task, "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if rounds == nil {
		rounds = []*entity.RoundRecord{}
	}
	writeJSON(w, http.StatusOK, rounds)
}

// GET /health
func (h *TaskHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"ok": true,
		"ts": time.Now().UTC(),
	}
	writeJSON(w, http.StatusOK, status)
}

// GET /ws/tasks/{task} streams StageEvents of the task until the client
// goes away.
func (h *TaskHandler) handleWatch(w http.ResponseWriter, r *http.Request) {
	task := mux.Vars(r)["task"]
	name, err := entity.TaskRequest{Task: task}.RepoName()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "task", name, "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	metrics.IncWSConnections()
	defer metrics.DecWSConnections()

	events, cancel := h.hub.Subscribe(name)
	defer cancel()
	h.logger.Info("watcher connected", "task", name, "remote", r.RemoteAddr)

	// The read loop only notices close frames and keeps pong deadlines moving.
	closed := make(chan struct{})
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			h.logger.Info("watcher disconnected", "task", name)
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Warn("websocket write failed", "task", name, "err", err)
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
