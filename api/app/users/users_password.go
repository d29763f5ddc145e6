package users

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/sepetli/kimlik/user"
	"go.uber.org/zap"
)

func (u *UsersRessource) passwordResetRequest(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequestRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		u.renderError(w, r, createStdValidationError("Geçersiz istek gövdesi."))
		return
	}
	if err := u.validate.Struct(&req); err != nil {
		u.renderError(w, r, createStdValidationError("email alanı zorunludur."))
		return
	}
	err := u.service.TriggerPasswordReset(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, user.ErrEmailDeliveryFailed) {
			u.renderError(w, r, createError(
				errDependency,
				http.StatusInternalServerError,
				"E-posta gönderilemedi. Lütfen daha sonra tekrar deneyin.",
			))
			return
		}
		u.logger.Error("password reset request failed due to unexpected error", zap.Error(err))
		u.renderInternalError(w, r)
		return
	}
	// the answer never discloses whether the address exists
	err = render.Render(w, r, &messageResponse{
		Message: "Eğer bu e-posta adresi kayıtlıysa, şifre sıfırlama bağlantısı gönderildi.",
	})
	if err != nil {
		u.logger.Error("unable to render response", zap.Error(err))
	}
}

func (u *UsersRessource) passwordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		u.renderError(w, r, createStdValidationError("Geçersiz istek gövdesi."))
		return
	}
	if err := u.validate.Struct(&req); err != nil {
		u.renderError(w, r, createStdValidationError("token ve password alanları zorunludur."))
		return
	}
	err := u.service.ResetPassword(r.Context(), req.Token, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrPasswordGuidelines) {
			policy := u.service.PasswordPolicy()
			u.renderError(w, r, createError(
				errValidation,
				http.StatusBadRequest,
				policy.Describe(policy.Validate(req.Password)),
			))
			return
		}
		if errors.Is(err, user.ErrTokenExpired) {
			u.renderError(w, r, createError(
				errValidation,
				http.StatusBadRequest,
				"Şifre sıfırlama bağlantısı geçersiz veya süresi dolmuş.",
			))
			return
		}
		u.logger.Error("password reset failed due to unexpected error", zap.Error(err))
		u.renderInternalError(w, r)
		return
	}
	err = render.Render(w, r, &messageResponse{
		Message: "Şifreniz güncellendi. Lütfen yeni şifrenizle giriş yapın.",
	})
	if err != nil {
		u.logger.Error("unable to render response", zap.Error(err))
	}
}
