package gateway

import (
	"net/http"

	"github.com/flemzord/runstash/internal/trigger"
)

// StateResponse is the JSON response for GET /api/state.
type StateResponse struct {
	Identity string            `json:"identity"`
	Lease    *LeaseView        `json:"lease,omitempty"`
	Values   map[string]string `json:"values"`
}

// LeaseView describes the single-writer lease.
type LeaseView struct {
	Generation uint64 `json:"generation"`
	Phase      string `json:"phase"`
}

// TriggersResponse is the JSON response for GET /api/triggers.
type TriggersResponse struct {
	Timers []trigger.Timer `json:"timers"`
}

// ClearResponse is the JSON response for DELETE /api/triggers.
type ClearResponse struct {
	Deleted int    `json:"deleted"`
	Error   string `json:"error,omitempty"`
}

func (g *Gateway) handleState() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		values, err := g.deps.State.Snapshot(r.Context())
		if err != nil {
			g.logger.Error("gateway: read state failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to read state")
			return
		}

		resp := StateResponse{Identity: g.deps.State.Identity(), Values: values}
		lease, ok, err := g.deps.State.CurrentLease(r.Context())
		switch {
		case err != nil:
			g.logger.Warn("gateway: read lease failed", "error", err)
		case ok:
			resp.Lease = &LeaseView{Generation: lease.Generation, Phase: string(lease.Phase)}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (g *Gateway) handleListTriggers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		timers, err := g.deps.Timers.Pending(r.Context())
		if err != nil {
			g.logger.Error("gateway: list triggers failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list triggers")
			return
		}
		if timers == nil {
			timers = []trigger.Timer{}
		}
		writeJSON(w, http.StatusOK, TriggersResponse{Timers: timers})
	}
}

// handleClearTriggers cancels every pending resume. It is the HTTP form of
// `runstash triggers clear`.
func (g *Gateway) handleClearTriggers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := g.deps.Timers.ClearAll(r.Context())
		g.logger.Info("gateway: triggers cleared", "deleted", n, "error", err)
		if err != nil {
			writeJSON(w, http.StatusBadGateway, ClearResponse{Deleted: n, Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, ClearResponse{Deleted: n})
	}
}
