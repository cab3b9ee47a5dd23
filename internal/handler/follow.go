package handler

import (
	"net/http"

	"github.com/questboard/questboard/internal/ctxkeys"
	"github.com/questboard/questboard/internal/render"
	"github.com/questboard/questboard/internal/service"
)

type followHandler struct {
	followService *service.FollowService
}

func NewFollowHandler(followService *service.FollowService) *followHandler {
	return &followHandler{followService: followService}
}

func (h *followHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProfileID string `json:"profileId"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	state, err := h.followService.Toggle(r.Context(), ctxkeys.Profile(r.Context()), body.ProfileID)
	if err != nil {
		writeServiceError(w, r, "failed to toggle follow", err)
		return
	}

	render.JSON(w, http.StatusOK, state)
}
