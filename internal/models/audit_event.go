// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction names an editorial change recorded in the audit trail.
type AuditAction string

const (
	ActionCreate  AuditAction = "create"
	ActionUpdate  AuditAction = "update"
	ActionDelete  AuditAction = "delete"
	ActionRestore AuditAction = "restore"
	ActionPublish AuditAction = "publish"
)

// AuditEvent is one row of the append-only audit trail. ActorID is nil for
// system actions such as scheduled publishing.
type AuditEvent struct {
	ID         int64       `json:"id"`
	EntityType string      `json:"entity_type"`
	EntityID   uuid.UUID   `json:"entity_id"`
	Action     AuditAction `json:"action"`
	ActorID    *uuid.UUID  `json:"actor_id,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}
