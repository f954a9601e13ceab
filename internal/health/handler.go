package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Handler serves the aggregated check results as JSON. Any failing component
// degrades the response to 503 so orchestrators restart or drain the pod.
func (c *Checker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		results := c.Check(ctx)

		status := http.StatusOK
		for _, state := range results {
			if state != "OK" {
				status = http.StatusServiceUnavailable
				break
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(results)
	})
}
