// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package auth

import (
	"fmt"

	"coursepress/internal/apperr"
	"coursepress/internal/models"
)

// Authorize decides whether verified claims may perform perm. Role admin
// is allowed everything; other roles need perm in the set captured in the
// token. A nil claims value means the caller never authenticated.
func Authorize(c *Claims, perm models.Permission) error {
	if c == nil {
		return ErrTokenMissing
	}
	if c.Can(perm) {
		return nil
	}
	return apperr.Forbidden(fmt.Sprintf("You do not have the %q permission.", perm))
}
