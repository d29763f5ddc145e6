package users

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/sepetli/kimlik/api/auth"
	"github.com/sepetli/kimlik/user"
	"go.uber.org/zap"
)

func (u *UsersRessource) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		u.renderError(w, r, createStdValidationError("Geçersiz istek gövdesi."))
		return
	}
	if err := u.validate.Struct(&req); err != nil {
		u.renderError(w, r, createStdValidationError("E-posta ve şifre zorunludur."))
		return
	}
	res, err := u.userSignIn.SignIn(r.Context(), req.Email, req.Password, req.IsAdmin, user.ClientInfo{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		if errors.Is(err, user.ErrAccountLocked) {
			u.renderError(w, r, createError(
				errLocked,
				http.StatusLocked,
				"Çok fazla başarısız giriş denemesi. Hesabınız geçici olarak kilitlendi, lütfen daha sonra tekrar deneyin.",
			))
			return
		}
		if errors.Is(err, user.ErrInvalidCredentials) {
			u.renderError(w, r, createError(
				errAuthentication,
				http.StatusUnauthorized,
				"E-posta veya şifre hatalı.",
			))
			return
		}
		if errors.Is(err, user.ErrEmailNotVerified) {
			u.renderError(w, r, createError(
				errAuthentication,
				http.StatusUnauthorized,
				"E-posta adresiniz henüz doğrulanmamış. Lütfen gelen kutunuzu kontrol edin.",
			))
			return
		}
		if errors.Is(err, user.ErrAccountInactive) {
			u.renderError(w, r, createError(
				errAuthentication,
				http.StatusUnauthorized,
				"Hesabınız devre dışı bırakılmış.",
			))
			return
		}
		u.logger.Error("login failed due to unexpected error", zap.Error(err))
		u.renderInternalError(w, r)
		return
	}
	err = render.Render(w, r, &loginResponse{
		User: mapUserResponse(res.User),
		Tokens: &tokenPairResponse{
			AccessToken:  res.AccessToken,
			RefreshToken: res.RefreshToken,
			ExpiresIn:    res.ExpiresIn,
		},
		Message: "Giriş başarılı.",
	})
	if err != nil {
		u.logger.Error("unable to render response", zap.Error(err))
	}
}

func (u *UsersRessource) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		u.renderError(w, r, createStdValidationError("Geçersiz istek gövdesi."))
		return
	}
	if err := u.validate.Struct(&req); err != nil {
		u.renderError(w, r, createStdValidationError("refresh_token alanı zorunludur."))
		return
	}
	res, err := u.userSignIn.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			u.renderError(w, r, createError(
				errAuthentication,
				http.StatusUnauthorized,
				"Oturum geçersiz veya süresi dolmuş. Lütfen tekrar giriş yapın.",
			))
			return
		}
		u.logger.Error("token refresh failed due to unexpected error", zap.Error(err))
		u.renderInternalError(w, r)
		return
	}
	err = render.Render(w, r, &refreshResponse{
		AccessToken: res.AccessToken,
		TokenType:   "bearer",
		ExpiresIn:   res.ExpiresIn,
	})
	if err != nil {
		u.logger.Error("unable to render response", zap.Error(err))
	}
}

func (u *UsersRessource) logout(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.ClaimsFromContext(r.Context())
	if err != nil {
		u.renderError(w, r, createError(errAuthentication, http.StatusUnauthorized, "Oturum bulunamadı."))
		return
	}
	raw, err := auth.RawTokenFromContext(r.Context())
	if err != nil {
		u.renderError(w, r, createError(errAuthentication, http.StatusUnauthorized, "Oturum bulunamadı."))
		return
	}
	var req logoutRequest
	// body is optional, logout works without a refresh token
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		req.RefreshToken = ""
	}
	if err := u.userSignIn.SignOut(r.Context(), raw, req.RefreshToken, claims.UserID()); err != nil {
		u.logger.Error("logout failed due to unexpected error", zap.Error(err))
		u.renderInternalError(w, r)
		return
	}
	err = render.Render(w, r, &messageResponse{Message: "Çıkış yapıldı."})
	if err != nil {
		u.logger.Error("unable to render response", zap.Error(err))
	}
}

func (u *UsersRessource) me(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.ClaimsFromContext(r.Context())
	if err != nil {
		u.renderError(w, r, createError(errAuthentication, http.StatusUnauthorized, "Oturum bulunamadı."))
		return
	}
	ud, err := u.userSignIn.UserFromSubject(r.Context(), claims.UserID())
	if err != nil {
		if errors.Is(err, user.ErrEntityDoesNotExist) || errors.Is(err, user.ErrAccountInactive) {
			u.renderError(w, r, createError(
				errAuthentication,
				http.StatusUnauthorized,
				"Hesabınıza erişilemiyor.",
			))
			return
		}
		u.logger.Error("loading user from subject failed", zap.Error(err))
		u.renderInternalError(w, r)
		return
	}
	if err := render.Render(w, r, mapUserResponse(ud)); err != nil {
		u.logger.Error("unable to render response", zap.Error(err))
	}
}
