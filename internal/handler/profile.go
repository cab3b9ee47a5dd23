package handler

import (
	"log/slog"
	"net/http"

	"github.com/questboard/questboard/internal/ctxkeys"
	"github.com/questboard/questboard/internal/model"
	"github.com/questboard/questboard/internal/render"
	"github.com/questboard/questboard/internal/service"
	"github.com/questboard/questboard/internal/validation"
)

type profileUpdateResponse struct {
	Profile *model.Profile `json:"profile"`
	Warning string         `json:"warning,omitempty"`
}

type profileHandler struct {
	userService    *service.UserService
	profileService *service.ProfileService
	questService   *service.QuestService
}

func NewProfileHandler(userService *service.UserService, profileService *service.ProfileService, questService *service.QuestService) *profileHandler {
	return &profileHandler{
		userService:    userService,
		profileService: profileService,
		questService:   questService,
	}
}

func (h *profileHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	me, err := h.userService.Me(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, "failed to load account", err)
		return
	}

	render.JSON(w, http.StatusOK, me)
}

func (h *profileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input service.ProfileUpdate
	if !decodeJSON(w, r, &input) {
		return
	}

	user := ctxkeys.User(r.Context())
	profile, warning, err := h.profileService.Update(r.Context(), user.ID, input)
	if err != nil {
		writeServiceError(w, r, "failed to update profile", err)
		return
	}

	render.JSON(w, http.StatusOK, profileUpdateResponse{Profile: profile, Warning: warning})
}

func (h *profileHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, validation.AvatarConstraints.MaxSize+(1<<20))

	err := r.ParseMultipartForm(validation.AvatarConstraints.MaxSize)
	if err != nil {
		render.Error(w, http.StatusBadRequest, "file too large or invalid form")
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		render.Error(w, http.StatusBadRequest, "avatar file is required")
		return
	}
	defer func() {
		closeErr := file.Close()
		if closeErr != nil {
			slog.Error("failed to close uploaded file", "error", closeErr)
		}
	}()

	mimeType, err := validation.ValidateFile(header, validation.AvatarConstraints)
	if err != nil {
		render.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	user := ctxkeys.User(r.Context())
	profile, err := h.profileService.UploadAvatar(r.Context(), user.ID, mimeType, file, header)
	if err != nil {
		writeServiceError(w, r, "failed to upload avatar", err)
		return
	}

	render.JSON(w, http.StatusOK, profile)
}

func (h *profileHandler) Show(w http.ResponseWriter, r *http.Request) {
	viewer := ctxkeys.Profile(r.Context())

	view, err := h.profileService.View(r.Context(), viewer.ID, r.PathValue("profileId"))
	if err != nil {
		writeServiceError(w, r, "failed to load profile", err)
		return
	}

	render.JSON(w, http.StatusOK, view)
}

func (h *profileHandler) Quests(w http.ResponseWriter, r *http.Request) {
	viewer := ctxkeys.Profile(r.Context())

	quests, err := h.questService.ProfileQuests(r.Context(), viewer.ID, r.PathValue("profileId"), r.URL.Query().Get("sort"))
	if err != nil {
		writeServiceError(w, r, "failed to list quests", err)
		return
	}

	render.JSON(w, http.StatusOK, quests)
}

func (h *profileHandler) Followers(w http.ResponseWriter, r *http.Request) {
	viewer := ctxkeys.Profile(r.Context())

	profiles, err := h.profileService.Followers(r.Context(), viewer.ID, r.PathValue("profileId"))
	if err != nil {
		writeServiceError(w, r, "failed to list followers", err)
		return
	}

	render.JSON(w, http.StatusOK, profiles)
}

func (h *profileHandler) Following(w http.ResponseWriter, r *http.Request) {
	viewer := ctxkeys.Profile(r.Context())

	profiles, err := h.profileService.Following(r.Context(), viewer.ID, r.PathValue("profileId"))
	if err != nil {
		writeServiceError(w, r, "failed to list following", err)
		return
	}

	render.JSON(w, http.StatusOK, profiles)
}
