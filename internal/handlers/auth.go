// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"time"

	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"

	"coursepress/internal/apperr"
	"coursepress/internal/auth"
	"coursepress/internal/middleware"
	"coursepress/internal/models"
	"coursepress/internal/respond"
	"coursepress/internal/store"
	"coursepress/internal/validate"
)

// totpIssuer is the account label shown in authenticator apps.
const totpIssuer = "CoursePress"

// Auth groups the authentication endpoints: login, logout, the current
// account and its password and 2FA settings.
type Auth struct {
	authn  *auth.Authenticator
	admins *store.AdminStore
}

// NewAuth creates the auth handler group.
func NewAuth(d Deps) *Auth {
	return &Auth{authn: d.Auth, admins: d.Admins}
}

// LoginResponse is returned on a successful login.
type LoginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	Account   *models.Admin `json:"account"`
}

// Login exchanges credentials for a bearer token. Failures share one
// message whatever went wrong, except a locked account, which reports
// when to retry.
func (h *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var creds auth.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		respond.Error(w, r, err)
		return
	}
	res, err := h.authn.Login(r.Context(), creds)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, LoginResponse{
		Token:     res.Token,
		ExpiresAt: res.Claims.ExpiresAt.Time,
		Account:   res.Account,
	})
}

// Logout revokes the token the request was made with.
func (h *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authn.Logout(r.Context(), middleware.ClaimsFromCtx(r.Context())); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.NoContent(w)
}

// current loads the live account behind the request's token.
func (h *Auth) current(r *http.Request) (*models.Admin, error) {
	acct, err := h.admins.FindByID(r.Context(), actor(r))
	if err != nil {
		return nil, err
	}
	if acct == nil || acct.IsDeleted {
		return nil, auth.ErrTokenRevoked
	}
	return acct, nil
}

// Me returns the authenticated account.
func (h *Auth) Me(w http.ResponseWriter, r *http.Request) {
	acct, err := h.current(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, acct)
}

// ChangePasswordRequest carries a password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

// ChangePassword replaces the caller's password after checking the
// current one, then revokes every token of the account.
func (h *Auth) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		respond.Error(w, r, err)
		return
	}
	acct, err := h.current(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if !h.admins.VerifyPassword(acct, req.CurrentPassword) {
		respond.Error(w, r, apperr.Invalid("current_password", "is incorrect"))
		return
	}
	if err := h.admins.SetPassword(r.Context(), acct.ID, req.NewPassword, acct.ID); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := h.authn.RevokeAccount(r.Context(), acct.ID); err != nil {
		respond.Error(w, r, err)
		return
	}
	slog.Info("password changed", "account_id", acct.ID)
	respond.NoContent(w)
}

// TOTPSetup is returned when 2FA setup starts.
type TOTPSetup struct {
	Secret string `json:"secret"`
	URL    string `json:"otpauth_url"`
	QRCode string `json:"qr_code"` // base64 PNG
}

// SetupTOTP generates a new secret for the caller. 2FA is switched on
// only once EnableTOTP confirms a code from it.
func (h *Auth) SetupTOTP(w http.ResponseWriter, r *http.Request) {
	acct, err := h.current(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if acct.TOTPEnabled {
		respond.Error(w, r, apperr.Conflict("Two-factor authentication is already enabled."))
		return
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: acct.Email,
	})
	if err != nil {
		respond.Error(w, r, apperr.Unexpected(err))
		return
	}
	if err := h.admins.SetTOTPSecret(r.Context(), acct.ID, key.Secret()); err != nil {
		respond.Error(w, r, err)
		return
	}

	png, err := qrcode.Encode(key.URL(), qrcode.Medium, 256)
	if err != nil {
		respond.Error(w, r, apperr.Unexpected(err))
		return
	}
	respond.OK(w, TOTPSetup{
		Secret: key.Secret(),
		URL:    key.URL(),
		QRCode: base64.StdEncoding.EncodeToString(png),
	})
}

// EnableTOTPRequest carries the code that confirms 2FA setup.
type EnableTOTPRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// EnableTOTP switches 2FA on once the caller proves the authenticator
// app produces valid codes.
func (h *Auth) EnableTOTP(w http.ResponseWriter, r *http.Request) {
	var req EnableTOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		respond.Error(w, r, err)
		return
	}
	acct, err := h.current(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if acct.TOTPSecret == nil {
		respond.Error(w, r, apperr.Conflict("Start two-factor setup first."))
		return
	}
	if !h.authn.CheckOTP(req.Code, *acct.TOTPSecret) {
		respond.Error(w, r, apperr.Invalid("code", "is not valid"))
		return
	}
	if err := h.admins.EnableTOTP(r.Context(), acct.ID); err != nil {
		respond.Error(w, r, err)
		return
	}
	slog.Info("2fa enabled", "account_id", acct.ID)
	respond.NoContent(w)
}
