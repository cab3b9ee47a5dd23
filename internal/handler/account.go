package handler

import (
	"net/http"

	"github.com/questboard/questboard/internal/ctxkeys"
	"github.com/questboard/questboard/internal/render"
	"github.com/questboard/questboard/internal/service"
)

type accountHandler struct {
	authService *service.AuthService
	userService *service.UserService
}

func NewAccountHandler(authService *service.AuthService, userService *service.UserService) *accountHandler {
	return &accountHandler{
		authService: authService,
		userService: userService,
	}
}

// DeleteAccount deletes the signed-in user. The id always comes from the
// session, never from the request.
func (h *accountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	err := h.userService.DeleteAccount(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, "failed to delete account", err)
		return
	}

	h.authService.ClearJWTCookie(w)
	render.OK(w)
}
