package controllers

import (
	"net/http"

	"github.com/shashiranjanraj/orderly/app/services"
	"github.com/shashiranjanraj/orderly/pkg/bind"
	"github.com/shashiranjanraj/orderly/pkg/response"
)

type AuthController struct {
	service *services.AuthService
	binder  *bind.Binder
}

func NewAuthController(service *services.AuthService, binder *bind.Binder) *AuthController {
	return &AuthController{service: service, binder: binder}
}

type signinRequest struct {
	Email    string `json:"email" validate:"required,email,max=200"`
	Password string `json:"password" validate:"required,max=72"`
}

type signupRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email,max=200"`
	Password string `json:"password" validate:"required,max=72"`
}

// Signup handles POST /auth/signup.
func (c *AuthController) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decode(c.binder, w, r, &req) {
		return
	}

	tokens, err := c.service.Signup(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Created(w, tokens)
}

// Signin handles POST /auth/signin.
func (c *AuthController) Signin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if !decode(c.binder, w, r, &req) {
		return
	}

	tokens, err := c.service.Signin(r.Context(), req.Email, req.Password)
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Success(w, tokens)
}

// Refresh handles POST /auth/refresh. The bearer token on the request is
// the refresh token.
func (c *AuthController) Refresh(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}

	tokens, err := c.service.Refresh(r.Context(), userID)
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Success(w, tokens)
}
