// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// InquiryKind distinguishes contact messages from quote requests.
type InquiryKind string

const (
	InquiryContact InquiryKind = "contact"
	InquiryQuote   InquiryKind = "quote"
)

// Inquiry is a message submitted through the public contact or quote form.
type Inquiry struct {
	ID        uuid.UUID   `json:"id"`
	Kind      InquiryKind `json:"kind"`
	Name      string      `json:"name" validate:"notblank,max=120"`
	Email     string      `json:"email" validate:"required,email,max=254"`
	Phone     string      `json:"phone" validate:"max=40"`
	Company   string      `json:"company" validate:"max=200"`
	CourseID  *uuid.UUID  `json:"course_id,omitempty"`
	Attendees int         `json:"attendees,omitempty" validate:"gte=0,lte=10000"`
	Message   string      `json:"message" validate:"notblank,max=5000"`
	Notified  bool        `json:"notified"`
	CreatedAt time.Time   `json:"created_at"`
}
