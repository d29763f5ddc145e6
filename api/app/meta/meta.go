package meta

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"
)

// MetaRessource contains the service health endpoint
type MetaRessource struct {
	log     *zap.Logger
	db      DatabasePinger
	pending PendingSource
}

func (m *MetaRessource) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Get("/", m.healthz)
	return r
}

// healthz reports the backing stores. A dead database makes the
// service unhealthy (503), a degraded pending store does not since the
// in-memory fallback keeps registration working
func (m *MetaRessource) healthz(w http.ResponseWriter, r *http.Request) {
	resp := &healthResponse{
		Status:       "ok",
		Database:     "up",
		PendingStore: "up",
	}
	status := http.StatusOK
	if err := m.db.Ping(r.Context()); err != nil {
		m.log.Warn("health check: database unreachable", zap.Error(err))
		resp.Database = "down"
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	if err := m.pending.Ping(r.Context()); err != nil {
		m.log.Warn("health check: pending store unreachable", zap.Error(err))
		resp.PendingStore = "down"
		if resp.Status == "ok" {
			resp.Status = "degraded"
		}
	} else if stats, err := m.pending.Stats(r.Context()); err == nil {
		resp.PendingRegistrations = stats.Pending
	}
	render.Status(r, status)
	render.Respond(w, r, resp)
}

func NewMetaRessource(
	log *zap.Logger,
	db DatabasePinger,
	pending PendingSource,
) *MetaRessource {
	return &MetaRessource{log: log, db: db, pending: pending}
}
