// Package controllers adapts HTTP requests to the order and account services.
package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shashiranjanraj/orderly/app/services"
	"github.com/shashiranjanraj/orderly/pkg/bind"
	"github.com/shashiranjanraj/orderly/pkg/logger"
	"github.com/shashiranjanraj/orderly/pkg/middleware"
	"github.com/shashiranjanraj/orderly/pkg/response"
)

// fail writes the response for a service error. Unclassified errors are
// logged and reported as a bare 500.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		response.Error(w, http.StatusUnauthorized, "Invalid Credentials")
	case errors.Is(err, services.ErrNotFound):
		response.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrForbidden):
		response.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrUnauthorized):
		response.Error(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrConflict):
		response.Conflict(w, err.Error())
	case errors.Is(err, services.ErrBadRequest):
		response.BadRequest(w, err.Error())
	default:
		logger.WithCtx(r.Context()).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		response.Error(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

// decode binds the JSON body into dest. It writes the error response itself
// and reports whether the handler may continue.
func decode(b *bind.Binder, w http.ResponseWriter, r *http.Request, dest any) bool {
	errs, err := b.JSON(w, r, dest)
	if err != nil {
		response.BadRequest(w, err.Error())
		return false
	}
	if len(errs) > 0 {
		response.ValidationError(w, errs)
		return false
	}
	return true
}

// caller returns the authenticated user id. Routes without Authenticate in
// front of them never reach it.
func caller(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		response.Unauthorized(w)
	}
	return id, ok
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(w, fmt.Sprintf("%s must be a positive integer", name))
		return 0, false
	}
	return uint(id), true
}
