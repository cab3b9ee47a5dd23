package handler

import (
	"net/http"

	"github.com/questboard/questboard/internal/ctxkeys"
	"github.com/questboard/questboard/internal/render"
	"github.com/questboard/questboard/internal/service"
)

type questHandler struct {
	questService *service.QuestService
}

func NewQuestHandler(questService *service.QuestService) *questHandler {
	return &questHandler{questService: questService}
}

func (h *questHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.QuestInput
	if !decodeJSON(w, r, &input) {
		return
	}

	profile := ctxkeys.Profile(r.Context())
	quest, err := h.questService.Create(r.Context(), profile.ID, input)
	if err != nil {
		writeServiceError(w, r, "failed to create quest", err)
		return
	}

	render.JSON(w, http.StatusCreated, quest)
}

func (h *questHandler) List(w http.ResponseWriter, r *http.Request) {
	profile := ctxkeys.Profile(r.Context())
	q := r.URL.Query()

	quests, err := h.questService.Quests(r.Context(), profile.ID, q.Get("sort"), q.Get("status"))
	if err != nil {
		writeServiceError(w, r, "failed to list quests", err)
		return
	}

	render.JSON(w, http.StatusOK, quests)
}

func (h *questHandler) Get(w http.ResponseWriter, r *http.Request) {
	profile := ctxkeys.Profile(r.Context())

	quest, err := h.questService.Get(r.Context(), profile.ID, r.PathValue("questId"))
	if err != nil {
		writeServiceError(w, r, "failed to load quest", err)
		return
	}

	render.JSON(w, http.StatusOK, quest)
}

func (h *questHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input service.QuestUpdate
	if !decodeJSON(w, r, &input) {
		return
	}

	profile := ctxkeys.Profile(r.Context())
	quest, err := h.questService.Update(r.Context(), profile.ID, r.PathValue("questId"), input)
	if err != nil {
		writeServiceError(w, r, "failed to update quest", err)
		return
	}

	render.JSON(w, http.StatusOK, quest)
}

func (h *questHandler) Delete(w http.ResponseWriter, r *http.Request) {
	profile := ctxkeys.Profile(r.Context())

	err := h.questService.Delete(r.Context(), profile.ID, r.PathValue("questId"))
	if err != nil {
		writeServiceError(w, r, "failed to delete quest", err)
		return
	}

	render.OK(w)
}

func (h *questHandler) AddKPIs(w http.ResponseWriter, r *http.Request) {
	var body struct {
		KPIs []service.KPIInput `json:"kpis"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	profile := ctxkeys.Profile(r.Context())
	result, err := h.questService.AddKPIs(r.Context(), profile.ID, r.PathValue("questId"), body.KPIs)
	if err != nil {
		writeServiceError(w, r, "failed to add kpis", err)
		return
	}

	render.JSON(w, http.StatusCreated, result)
}

func (h *questHandler) UpdateKPI(w http.ResponseWriter, r *http.Request) {
	var input service.KPIUpdate
	if !decodeJSON(w, r, &input) {
		return
	}

	profile := ctxkeys.Profile(r.Context())
	result, err := h.questService.UpdateKPI(r.Context(), profile.ID, r.PathValue("questId"), r.PathValue("kpiId"), input)
	if err != nil {
		writeServiceError(w, r, "failed to update kpi", err)
		return
	}

	render.JSON(w, http.StatusOK, result)
}

func (h *questHandler) DeleteKPI(w http.ResponseWriter, r *http.Request) {
	profile := ctxkeys.Profile(r.Context())

	result, err := h.questService.DeleteKPI(r.Context(), profile.ID, r.PathValue("questId"), r.PathValue("kpiId"))
	if err != nil {
		writeServiceError(w, r, "failed to delete kpi", err)
		return
	}

	render.JSON(w, http.StatusOK, result)
}
