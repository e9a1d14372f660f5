package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"
)

type alarmRecord struct {
	ID        string    `json:"id"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/v1/monitor/logs", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		writeJSON(w, map[string]any{
			"lines": []string{
				"2026-08-29T10:02:11Z ERROR payments: Connection refused connecting to db-primary:5432",
				"2026-08-29T10:02:14Z WARN payments: retry 1/3 for order 8841",
				"2026-08-29T10:02:19Z ERROR checkout: timeout waiting for payments response",
				"2026-08-29T10:02:25Z INFO checkout: circuit breaker open for payments",
			},
		})
	})

	mux.HandleFunc("/api/v1/monitor/alarms", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		now := time.Now()
		writeJSON(w, map[string]any{
			"alarms": []alarmRecord{
				{ID: "alm-101", Severity: "critical", Message: "database connection pool exhausted", Source: "db-primary", Timestamp: now.Add(-4 * time.Minute)},
				{ID: "alm-102", Severity: "warning", Message: "latency p99 above threshold", Source: "payments", Timestamp: now.Add(-3 * time.Minute)},
				{ID: "alm-103", Severity: "warning", Message: "latency p99 above threshold", Source: "checkout", Timestamp: now.Add(-2 * time.Minute)},
			},
		})
	})

	logger := log.New(log.Writer(), "monitor-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    ":9090",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :9090")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func enforcePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
