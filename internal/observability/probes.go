package observability

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
)

// readinessReport is the JSON body of the readiness probe.
type readinessReport struct {
	Ready        bool              `json:"ready"`
	Dependencies map[string]string `json:"dependencies"`
}

func (s *Server) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness runs every checker concurrently under the probe timeout.
// A cache tier being down makes the worker not-ready even though pricing itself degrades gracefully.
func (s *Server) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()

	report := readinessReport{Ready: true, Dependencies: make(map[string]string, len(s.checkers))}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, checker := range s.checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			err := c.Check(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("readiness check failed",
					slog.String("dependency", c.Name()),
					slog.String("error", err.Error()),
				)
				report.Dependencies[c.Name()] = "down: " + err.Error()
				report.Ready = false
				return
			}
			report.Dependencies[c.Name()] = "up"
		}(checker)
	}
	wg.Wait()

	w.Header().Set("Content-Type", "application/json")
	if report.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(report)
}
