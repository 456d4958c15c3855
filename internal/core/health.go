package core

import (
	"context"
	"net/http"
	"time"
)

// healthCheckTimeout bounds the database probe on the health endpoint.
const healthCheckTimeout = 2 * time.Second

// Pinger is the health probe contract for the database pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// HandleHealth reports service liveness and database reachability.
// Returns 200 when all components are healthy, 503 otherwise. This endpoint
// is public and mounted at GET /healthz.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if s.DB == nil {
		JSON(w, r, http.StatusOK, healthResponse{Status: "healthy"})
		return
	}

	components := map[string]componentStatus{}
	healthy := true

	if err := s.DB.Ping(ctx); err != nil {
		healthy = false
		components["database"] = componentStatus{Status: "unhealthy", Message: err.Error()}
	} else {
		components["database"] = componentStatus{Status: "healthy"}
	}

	resp := healthResponse{Components: components}
	if healthy {
		resp.Status = "healthy"
		JSON(w, r, http.StatusOK, resp)
	} else {
		resp.Status = "unhealthy"
		JSON(w, r, http.StatusServiceUnavailable, resp)
	}
}
