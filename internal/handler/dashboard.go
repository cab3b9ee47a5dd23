package handler

import (
	"net/http"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/questboard/questboard/internal/ctxkeys"
	"github.com/questboard/questboard/internal/render"
	"github.com/questboard/questboard/internal/service"
)

type dashboardHandler struct {
	dashboardService *service.DashboardService
}

func NewDashboardHandler(dashboardService *service.DashboardService) *dashboardHandler {
	return &dashboardHandler{dashboardService: dashboardService}
}

func (h *dashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	profile := ctxkeys.Profile(r.Context())

	dashboard, err := h.dashboardService.Dashboard(r.Context(), profile.ID)
	if err != nil {
		writeServiceError(w, r, "failed to load dashboard", err)
		return
	}

	render.JSON(w, http.StatusOK, dashboard)
}

func (h *dashboardHandler) Feed(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			render.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	profile := ctxkeys.Profile(r.Context())
	items, err := h.dashboardService.Feed(r.Context(), profile.ID, limit)
	if err != nil {
		writeServiceError(w, r, "failed to load feed", err)
		return
	}

	render.JSON(w, http.StatusOK, items)
}

type healthHandler struct {
	db *sqlx.DB
}

func NewHealthHandler(db *sqlx.DB) *healthHandler {
	return &healthHandler{db: db}
}

func (h *healthHandler) Health(w http.ResponseWriter, r *http.Request) {
	err := h.db.PingContext(r.Context())
	if err != nil {
		render.ServerError(w, r, "database unavailable", err)
		return
	}

	render.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
