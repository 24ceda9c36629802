// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package respond writes the JSON envelopes used by every API endpoint.
// Successful responses carry {"data", "meta", "warnings"}; failures carry
// {"error": {"kind", "code", "message", "fields"}}.
package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"coursepress/internal/apperr"
)

// Envelope is the success response wrapper.
type Envelope struct {
	Data     any      `json:"data,omitempty"`
	Meta     *Meta    `json:"meta,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Meta carries pagination details for list responses.
type Meta struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Pages    int `json:"pages"`
}

// NewMeta builds pagination metadata from a total and the page window.
func NewMeta(total, page, pageSize int) *Meta {
	pages := 0
	if pageSize > 0 {
		pages = (total + pageSize - 1) / pageSize
	}
	return &Meta{Total: total, Page: page, PageSize: pageSize, Pages: pages}
}

// ErrorBody is the failure response wrapper.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failure in a stable, machine-readable way.
type ErrorDetail struct {
	Kind    apperr.Kind       `json:"kind"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response failed", "error", err)
	}
}

// OK writes a 200 response with data.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Envelope{Data: data})
}

// Created writes a 201 response with data.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, Envelope{Data: data})
}

// List writes a 200 response with data and pagination meta.
func List(w http.ResponseWriter, data any, meta *Meta) {
	JSON(w, http.StatusOK, Envelope{Data: data, Meta: meta})
}

// NoContent writes a bare 204.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error classifies err and writes the matching error envelope. Unexpected
// and timeout errors are logged with their cause; the cause never reaches
// the client.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	ae := apperr.From(err)

	switch ae.Kind {
	case apperr.KindUnexpected:
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	case apperr.KindTimeout:
		slog.Warn("request timed out",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}

	if ae.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(ae.RetryAfter.Seconds())))
	}
	JSON(w, ae.Kind.Status(), ErrorBody{Error: ErrorDetail{
		Kind:    ae.Kind,
		Code:    ae.Code,
		Message: ae.Message,
		Fields:  ae.Fields,
	}})
}
