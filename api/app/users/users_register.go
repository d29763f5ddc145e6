package users

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/sepetli/kimlik/user"
	"go.uber.org/zap"
)

func (u *UsersRessource) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		u.renderError(w, r, createStdValidationError("Geçersiz istek gövdesi."))
		return
	}
	if err := u.validate.Struct(&req); err != nil {
		u.renderError(w, r, createStdValidationError("Eksik veya hatalı alanlar var: e-posta, şifre, ad ve soyad zorunludur."))
		return
	}
	err := u.service.Register(r.Context(), user.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Address:   req.Address,
		IsAdmin:   req.IsAdmin,
		IP:        clientIP(r),
	})
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
		if errors.Is(err, user.ErrEntityAlreadyExists) {
			u.renderError(w, r, createError(
				errConflict,
				http.StatusBadRequest,
				"Bu e-posta adresi ile bir hesap zaten mevcut.",
			))
			return
		}
		if errors.Is(err, user.ErrEmailDeliveryFailed) {
			u.renderError(w, r, createError(
				errDependency,
				http.StatusInternalServerError,
				"Doğrulama e-postası gönderilemedi. Lütfen daha sonra tekrar deneyin.",
			))
			return
		}
		u.logger.Error("register failed due to unexpected error", zap.Error(err))
		u.renderInternalError(w, r)
		return
	}
	err = render.Render(w, r, &registerResponse{
		Message: "Kayıt alındı. Doğrulama kodu e-posta adresinize gönderildi.",
		Email:   strings.ToLower(strings.TrimSpace(req.Email)),
	})
	if err != nil {
		u.logger.Error("unable to render response", zap.Error(err))
	}
}

func (u *UsersRessource) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		u.renderError(w, r, createStdValidationError("Geçersiz istek gövdesi."))
		return
	}
	if err := u.validate.Struct(&req); err != nil {
		u.renderError(w, r, createStdValidationError("E-posta ve 6 haneli doğrulama kodu zorunludur."))
		return
	}
	_, err := u.service.VerifyEmail(r.Context(), req.Email, req.Code, req.IsAdmin)
	if err != nil {
		if errors.Is(err, user.ErrVerificationFailed) {
			u.renderError(w, r, createError(
				errValidation,
				http.StatusBadRequest,
				"Doğrulama kodu hatalı veya süresi dolmuş.",
			))
			return
		}
		if errors.Is(err, user.ErrEntityAlreadyExists) {
			u.renderError(w, r, createError(
				errConflict,
				http.StatusBadRequest,
				"Bu hesap zaten doğrulanmış.",
			))
			return
		}
		u.logger.Error("email verification failed due to unexpected error", zap.Error(err))
		u.renderInternalError(w, r)
		return
	}
	err = render.Render(w, r, &verifyEmailResponse{
		Message: "E-posta adresiniz doğrulandı. Artık giriş yapabilirsiniz.",
		Success: true,
	})
	if err != nil {
		u.logger.Error("unable to render response", zap.Error(err))
	}
}

// ResendVerification handles POST /resend-verification?email=, the
// endpoint lives outside the /users subtree for compatibility with the
// storefront clients
func (u *UsersRessource) ResendVerification(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		u.renderError(w, r, createStdValidationError("email parametresi zorunludur."))
		return
	}
	err := u.service.ResendVerification(r.Context(), email)
	if err != nil {
		if errors.Is(err, user.ErrTokenExpired) {
			u.renderError(w, r, createError(
				errValidation,
				http.StatusBadRequest,
				"Doğrulama süresi dolmuş. Lütfen yeniden kayıt olun.",
			))
			return
		}
		if errors.Is(err, user.ErrNothingToResend) {
			u.renderError(w, r, createError(
				errNotFound,
				http.StatusNotFound,
				"Bekleyen bir kayıt bulunamadı.",
			))
			return
		}
		if errors.Is(err, user.ErrEmailDeliveryFailed) {
			u.renderError(w, r, createError(
				errDependency,
				http.StatusInternalServerError,
				"Doğrulama e-postası gönderilemedi. Lütfen daha sonra tekrar deneyin.",
			))
			return
		}
		u.logger.Error("resend verification failed due to unexpected error", zap.Error(err))
		u.renderInternalError(w, r)
		return
	}
	err = render.Render(w, r, &messageResponse{
		Message: "Yeni doğrulama kodu e-posta adresinize gönderildi.",
	})
	if err != nil {
		u.logger.Error("unable to render response", zap.Error(err))
	}
}

func (u *UsersRessource) renderError(w http.ResponseWriter, r *http.Request, resp *errorResponse) {
	if err := render.Render(w, r, resp); err != nil {
		u.logger.Error("unable to render response", zap.Error(err))
	}
}

func (u *UsersRessource) renderInternalError(w http.ResponseWriter, r *http.Request) {
	u.renderError(w, r, createError(
		errDependency,
		http.StatusInternalServerError,
		"Beklenmeyen bir hata oluştu. Lütfen daha sonra tekrar deneyin.",
	))
}

func createStdValidationError(message string) *errorResponse {
	return createError(errValidation, http.StatusBadRequest, message)
}

func clientIP(r *http.Request) string {
	// RealIP middleware rewrites RemoteAddr from the proxy headers
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 && !strings.Contains(host[idx:], "]") {
		host = host[:idx]
	}
	return host
}
