// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"coursepress/internal/apperr"
	"coursepress/internal/models"
	"coursepress/internal/respond"
	"coursepress/internal/store"
)

// maxBulkIDs caps how many records one bulk request may touch.
const maxBulkIDs = 100

// repository is the part of store.Repository the admin content handlers
// use. CategoryRepo, CourseRepo and BlogRepo all satisfy it.
type repository[T any] interface {
	Kind() string
	Create(ctx context.Context, e *T, actor uuid.UUID) (*T, error)
	Transition(ctx context.Context, id, actor uuid.UUID, action models.AuditAction, mutate func(*T) error) (*T, error)
	SoftDelete(ctx context.Context, id, actor uuid.UUID) error
	Restore(ctx context.Context, id, actor uuid.UUID) (*T, error)
	FindByID(ctx context.Context, id uuid.UUID) (*T, error)
	List(ctx context.Context, f store.Filter, pg store.Page) ([]T, int, error)
}

// bulkAction is a named state change applied by the bulk endpoint.
type bulkAction[T any] struct {
	audit  models.AuditAction
	mutate func(e *T) error
}

// Content serves the admin CRUD endpoints of one content type.
type Content[T any] struct {
	repo    repository[T]
	label   string
	prepare func(e *T) error // runs after decoding, before saving
	actions map[string]bulkAction[T]
}

// newContent wires a repository into the shared admin handlers.
func newContent[T any](repo repository[T], label string) *Content[T] {
	return &Content[T]{repo: repo, label: label, actions: map[string]bulkAction[T]{}}
}

// List returns a page of records, including soft-deleted ones when asked
// with deleted=include or deleted=only.
func (h *Content[T]) List(w http.ResponseWriter, r *http.Request) {
	f, err := filterParams(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if f.Deleted, err = deletedParam(r); err != nil {
		respond.Error(w, r, err)
		return
	}
	pg := pageParams(r)
	items, total, err := h.repo.List(r.Context(), f, pg)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.List(w, items, respond.NewMeta(total, pg.Page, pg.PageSize))
}

// Get returns one record in any state.
func (h *Content[T]) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, h.label)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	e, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if e == nil {
		respond.Error(w, r, apperr.NotFound(h.label))
		return
	}
	respond.OK(w, e)
}

// Create inserts a new record.
func (h *Content[T]) Create(w http.ResponseWriter, r *http.Request) {
	var e T
	if err := decodeJSON(w, r, &e); err != nil {
		respond.Error(w, r, err)
		return
	}
	if h.prepare != nil {
		if err := h.prepare(&e); err != nil {
			respond.Error(w, r, err)
			return
		}
	}
	created, err := h.repo.Create(r.Context(), &e, actor(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	slog.Info("content created", "kind", h.repo.Kind(), "actor", actor(r))
	respond.Created(w, created)
}

// Update applies the JSON body as a partial update: fields absent from
// the body keep their stored values.
func (h *Content[T]) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, h.label)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	updated, err := h.repo.Transition(r.Context(), id, actor(r), models.ActionUpdate, func(e *T) error {
		if err := unmarshal(body, e); err != nil {
			return err
		}
		if h.prepare != nil {
			return h.prepare(e)
		}
		return nil
	})
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, updated)
}

// Delete soft-deletes a record.
func (h *Content[T]) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, h.label)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := h.repo.SoftDelete(r.Context(), id, actor(r)); err != nil {
		respond.Error(w, r, err)
		return
	}
	slog.Info("content deleted", "kind", h.repo.Kind(), "id", id, "actor", actor(r))
	respond.NoContent(w)
}

// Restore brings a soft-deleted record back.
func (h *Content[T]) Restore(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, h.label)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	restored, err := h.repo.Restore(r.Context(), id, actor(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, restored)
}

// BulkRequest names an action and the records it applies to.
type BulkRequest struct {
	Action string      `json:"action"`
	IDs    []uuid.UUID `json:"ids"`
}

// BulkFailure explains why one record was not changed.
type BulkFailure struct {
	ID      uuid.UUID   `json:"id"`
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}

// BulkResult reports the outcome of a bulk request.
type BulkResult struct {
	Action    string        `json:"action"`
	Succeeded []uuid.UUID   `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}

// Bulk applies one action to many records. Each record is handled on its
// own; a failure is reported and the rest carry on.
func (h *Content[T]) Bulk(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if len(req.IDs) == 0 {
		respond.Error(w, r, apperr.Invalid("ids", "is required"))
		return
	}
	if len(req.IDs) > maxBulkIDs {
		respond.Error(w, r, apperr.Invalid("ids", fmt.Sprintf("must contain at most %d items", maxBulkIDs)))
		return
	}
	act, ok := h.actions[req.Action]
	if req.Action != "delete" && !ok {
		respond.Error(w, r, apperr.Invalid("action", "is not supported"))
		return
	}

	res := BulkResult{Action: req.Action, Succeeded: []uuid.UUID{}, Failed: []BulkFailure{}}
	who := actor(r)
	for _, id := range req.IDs {
		var err error
		if req.Action == "delete" {
			err = h.repo.SoftDelete(r.Context(), id, who)
		} else {
			_, err = h.repo.Transition(r.Context(), id, who, act.audit, act.mutate)
		}
		if err != nil {
			ae := apperr.From(err)
			if ae.Kind == apperr.KindUnexpected || ae.Kind == apperr.KindTimeout {
				slog.Error("bulk action failed", "kind", h.repo.Kind(), "action", req.Action, "id", id, "error", err)
			}
			res.Failed = append(res.Failed, BulkFailure{ID: id, Kind: ae.Kind, Message: ae.Message})
			continue
		}
		res.Succeeded = append(res.Succeeded, id)
	}
	slog.Info("bulk action", "kind", h.repo.Kind(), "action", req.Action,
		"succeeded", len(res.Succeeded), "failed", len(res.Failed), "actor", who)
	respond.OK(w, res)
}
