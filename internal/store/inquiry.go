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
	"coursepress/internal/validate"
)

const inquiryColumns = `id, kind, name, email, phone, company, course_id, attendees, message, notified, created_at`

func scanInquiry(row scanner) (*models.Inquiry, error) {
	var q models.Inquiry
	err := row.Scan(&q.ID, &q.Kind, &q.Name, &q.Email, &q.Phone, &q.Company,
		&q.CourseID, &q.Attendees, &q.Message, &q.Notified, &q.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// InquiryStore persists contact and quote requests from the public site.
type InquiryStore struct {
	db      *sql.DB
	timeout time.Duration
}

// NewInquiryStore creates a new InquiryStore backed by the given database.
func NewInquiryStore(db *sql.DB, timeout time.Duration) *InquiryStore {
	return &InquiryStore{db: db, timeout: timeout}
}

// Create validates and stores an inquiry.
func (s *InquiryStore) Create(ctx context.Context, in *models.Inquiry) (*models.Inquiry, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	out, err := scanInquiry(s.db.QueryRowContext(ctx, `
		INSERT INTO inquiries (kind, name, email, phone, company, course_id, attendees, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+inquiryColumns,
		in.Kind, in.Name, in.Email, in.Phone, in.Company, in.CourseID, in.Attendees, in.Message))
	if err != nil {
		return nil, classify(err, "create inquiry")
	}
	return out, nil
}

// MarkNotified records that the notification email went out.
func (s *InquiryStore) MarkNotified(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `UPDATE inquiries SET notified = TRUE WHERE id = $1`, id)
	return classify(err, "mark inquiry notified")
}

// List returns inquiries newest first, optionally of one kind.
func (s *InquiryStore) List(ctx context.Context, kind models.InquiryKind, pg Page) ([]models.Inquiry, int, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	pg = pg.Normalize()
	a := &args{}
	cond := "TRUE"
	if kind != "" {
		cond = "kind = " + a.add(kind)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM inquiries WHERE `+cond, a.values...).Scan(&total); err != nil {
		return nil, 0, classify(err, "count inquiries")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+inquiryColumns+` FROM inquiries WHERE `+cond+`
		ORDER BY created_at DESC, id DESC
		LIMIT `+a.add(pg.PageSize)+` OFFSET `+a.add(pg.Offset()), a.values...)
	if err != nil {
		return nil, 0, classify(err, "list inquiries")
	}
	defer rows.Close()

	items := make([]models.Inquiry, 0, pg.PageSize)
	for rows.Next() {
		q, err := scanInquiry(rows)
		if err != nil {
			return nil, 0, classify(err, "scan inquiry")
		}
		items = append(items, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify(err, "list inquiries")
	}
	return items, total, nil
}
