// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"coursepress/internal/models"
)

// AuditStore reads the append-only audit trail. Rows are written by the
// repositories inside the transaction of the change they describe.
type AuditStore struct {
	db      *sql.DB
	timeout time.Duration
}

// NewAuditStore creates a new AuditStore backed by the given database.
func NewAuditStore(db *sql.DB, timeout time.Duration) *AuditStore {
	return &AuditStore{db: db, timeout: timeout}
}

// List returns audit events newest first, optionally narrowed to one
// entity type and one entity.
func (s *AuditStore) List(ctx context.Context, entityType string, entityID *uuid.UUID, pg Page) ([]models.AuditEvent, int, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	pg = pg.Normalize()
	a := &args{}
	cond := "TRUE"
	if entityType != "" {
		cond += " AND entity_type = " + a.add(entityType)
	}
	if entityID != nil {
		cond += " AND entity_id = " + a.add(*entityID)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events WHERE `+cond, a.values...).Scan(&total); err != nil {
		return nil, 0, classify(err, "count audit events")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_type, entity_id, action, actor_id, created_at
		FROM audit_events WHERE `+cond+`
		ORDER BY created_at DESC, id DESC
		LIMIT `+a.add(pg.PageSize)+` OFFSET `+a.add(pg.Offset()), a.values...)
	if err != nil {
		return nil, 0, classify(err, "list audit events")
	}
	defer rows.Close()

	events := make([]models.AuditEvent, 0, pg.PageSize)
	for rows.Next() {
		var e models.AuditEvent
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, 0, classify(err, "scan audit event")
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify(err, "list audit events")
	}
	return events, total, nil
}
