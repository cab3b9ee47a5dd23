package handler

import (
	"errors"
	"net/http"

	"github.com/questboard/questboard/internal/render"
	"github.com/questboard/questboard/internal/service"
)

// writeServiceError maps service and repository errors to a status code.
// Anything unrecognised is a 500 with the error passed through as details.
func writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	var verr *service.ValidationError

	switch {
	case errors.As(err, &verr):
		render.Error(w, http.StatusBadRequest, verr.Msg)
	case service.IsNotFound(err):
		render.Error(w, http.StatusNotFound, rootMessage(err))
	case errors.Is(err, service.ErrProfilePrivate):
		render.Error(w, http.StatusForbidden, service.ErrProfilePrivate.Error())
	case errors.Is(err, service.ErrSignupDisabled):
		render.Error(w, http.StatusForbidden, service.ErrSignupDisabled.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		render.Error(w, http.StatusUnauthorized, service.ErrInvalidCredentials.Error())
	case errors.Is(err, service.ErrEmailAlreadyExists):
		render.Error(w, http.StatusConflict, service.ErrEmailAlreadyExists.Error())
	default:
		render.ServerError(w, r, msg, err)
	}
}

// rootMessage returns the innermost error text, so "quest not found" is
// reported without the wrapping context.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := render.Decode(r, v)
	if err != nil {
		render.Error(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
