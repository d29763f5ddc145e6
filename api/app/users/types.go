package users

import (
	"net/http"
	"time"

	"github.com/go-chi/render"
)

type registerRequest struct {
	Email     string  `json:"email"      validate:"required,email"`
	Password  string  `json:"password"   validate:"required"`
	FirstName string  `json:"first_name" validate:"required"`
	LastName  string  `json:"last_name"  validate:"required"`
	Phone     *string `json:"phone"`
	Address   *string `json:"address"`
	IsAdmin   bool    `json:"is_admin"`
}

type registerResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

func (*registerResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}

type verifyEmailRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Code    string `json:"code"  validate:"required,len=6"`
	IsAdmin bool   `json:"is_admin"`
}

type verifyEmailResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

func (*verifyEmailResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
	IsAdmin  bool   `json:"is_admin"`
}

type userResponse struct {
	ID         int64      `json:"id"`
	Email      string     `json:"email"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	Phone      *string    `json:"phone,omitempty"`
	Address    *string    `json:"address,omitempty"`
	IsAdmin    bool       `json:"is_admin"`
	IsVerified bool       `json:"is_verified"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
}

func (*userResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}

type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type loginResponse struct {
	User    *userResponse      `json:"user"`
	Tokens  *tokenPairResponse `json:"tokens"`
	Message string             `json:"message"`
}

func (*loginResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (*refreshResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type passwordResetRequestRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type passwordResetRequest struct {
	Token    string `json:"token"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (*messageResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}

type apiError string

// malformed or semantically invalid input, the message is precise so
// the caller can correct it
const errValidation apiError = "validation_error"

// credential failures, deliberately coarser than the internal logs
const errAuthentication apiError = "authentication_error"

// identifier is temporarily locked out after repeated failures
const errLocked apiError = "locked"

const errNotFound apiError = "not_found"

const errConflict apiError = "conflict"

// an upstream dependency (mail relay, fast store) failed
const errDependency apiError = "dependency_error"

type errorResponse struct {
	Error      apiError `json:"error"`
	Message    string   `json:"message"`
	StatusCode int      `json:"-"`
}

func (e *errorResponse) Render(_ http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

func createError(err apiError, status int, message string) *errorResponse {
	return &errorResponse{
		Error:      err,
		Message:    message,
		StatusCode: status,
	}
}
