// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"coursepress/internal/apperr"
	"coursepress/internal/respond"
	"coursepress/internal/storage"
)

// Upload stores one file posted as the multipart field "file".
func (a *Admin) Upload(w http.ResponseWriter, r *http.Request) {
	// Leave room for the multipart framing around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			respond.Error(w, r, apperr.Invalid("file", "is too large"))
			return
		}
		respond.Error(w, r, apperr.Invalid("file", "could not read the upload"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respond.Error(w, r, apperr.Invalid("file", "is required"))
		return
	}
	defer file.Close()

	obj, err := a.uploader.Save(r.Context(), header.Filename, file, header.Size)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	slog.Info("file uploaded", "key", obj.Key, "type", obj.ContentType, "size", obj.Size, "actor", actor(r))
	respond.Created(w, obj)
}

// DeleteUpload removes the stored file named by the path query parameter,
// either its key or its public URL.
func (a *Admin) DeleteUpload(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("path")
	if key == "" {
		respond.Error(w, r, apperr.Invalid("path", "is required"))
		return
	}
	if err := a.uploader.Delete(r.Context(), key); err != nil {
		respond.Error(w, r, err)
		return
	}
	slog.Info("file deleted", "key", key, "actor", actor(r))
	respond.NoContent(w)
}
