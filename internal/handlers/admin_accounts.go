// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"log/slog"
	"net/http"

	"coursepress/internal/apperr"
	"coursepress/internal/respond"
	"coursepress/internal/store"
	"coursepress/internal/validate"
)

// ListAdmins returns a page of accounts.
func (a *Admin) ListAdmins(w http.ResponseWriter, r *http.Request) {
	deleted, err := deletedParam(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	pg := pageParams(r)
	items, total, err := a.admins.List(r.Context(), deleted, pg)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.List(w, items, respond.NewMeta(total, pg.Page, pg.PageSize))
}

// GetAdmin returns one account in any state.
func (a *Admin) GetAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "Account")
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	acct, err := a.admins.FindByID(r.Context(), id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if acct == nil {
		respond.Error(w, r, apperr.NotFound("Account"))
		return
	}
	respond.OK(w, acct)
}

// CreateAdmin creates an account.
func (a *Admin) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var in store.NewAdmin
	if err := decodeJSON(w, r, &in); err != nil {
		respond.Error(w, r, err)
		return
	}
	acct, err := a.admins.Create(r.Context(), in, actor(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	slog.Info("admin account created", "id", acct.ID, "role", acct.Role, "actor", actor(r))
	respond.Created(w, acct)
}

// UpdateAdmin applies a partial update. Changes to role, permissions or
// the active flag revoke the account's tokens, since issued tokens carry
// the old grants.
func (a *Admin) UpdateAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "Account")
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	var patch store.AdminPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		respond.Error(w, r, err)
		return
	}
	acct, err := a.admins.Update(r.Context(), id, patch, actor(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if patch.Role != nil || patch.Permissions != nil || patch.IsActive != nil {
		if err := a.authn.RevokeAccount(r.Context(), id); err != nil {
			respond.Error(w, r, err)
			return
		}
	}
	respond.OK(w, acct)
}

// DeleteAdmin soft-deletes an account and revokes its tokens. Accounts
// cannot delete themselves.
func (a *Admin) DeleteAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "Account")
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if id == actor(r) {
		respond.Error(w, r, apperr.Conflict("You cannot delete your own account."))
		return
	}
	if err := a.admins.SoftDelete(r.Context(), id, actor(r)); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := a.authn.RevokeAccount(r.Context(), id); err != nil {
		respond.Error(w, r, err)
		return
	}
	slog.Info("admin account deleted", "id", id, "actor", actor(r))
	respond.NoContent(w)
}

// RestoreAdmin brings a deleted account back.
func (a *Admin) RestoreAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "Account")
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	acct, err := a.admins.Restore(r.Context(), id, actor(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, acct)
}

// ResetPasswordRequest carries the new password an admin sets for
// another account.
type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// ResetAdminPassword sets a new password for an account and signs it out
// everywhere.
func (a *Admin) ResetAdminPassword(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "Account")
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	var req ResetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := a.admins.SetPassword(r.Context(), id, req.Password, actor(r)); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := a.authn.RevokeAccount(r.Context(), id); err != nil {
		respond.Error(w, r, err)
		return
	}
	slog.Info("admin password reset", "id", id, "actor", actor(r))
	respond.NoContent(w)
}

// ResetAdminTOTP disables two-factor authentication for an account that
// lost its authenticator.
func (a *Admin) ResetAdminTOTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "Account")
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := a.admins.ResetTOTP(r.Context(), id, actor(r)); err != nil {
		respond.Error(w, r, err)
		return
	}
	slog.Info("admin 2fa reset", "id", id, "actor", actor(r))
	respond.NoContent(w)
}
