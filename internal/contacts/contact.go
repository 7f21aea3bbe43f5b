// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

// Package contacts manages each account's address book.
package contacts

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrNotFound is wrapped by repository lookups that match nothing.
var ErrNotFound = errors.New("contact not found")

// Error codes.
const (
	CodeNotFound  = "CONTACT_NOT_FOUND"
	CodeForbidden = "CONTACT_FORBIDDEN"
	CodeInvalid   = "CONTACT_INVALID"
)

// Contact is one address book entry.
type Contact struct {
	ID        ulid.ULID `json:"_id"`
	OwnerID   ulid.ULID `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Fields are the user-editable parts of a Contact.
type Fields struct {
	Name  string
	Email string
	Phone string
}

// Repository persists contacts.
type Repository interface {
	// ListByOwner returns the owner's contacts, newest first.
	ListByOwner(ctx context.Context, ownerID ulid.ULID) ([]Contact, error)
	Create(ctx context.Context, c Contact) error
	// Get returns a contact regardless of owner; ownership is checked by
	// the service so it can tell "missing" from "not yours".
	Get(ctx context.Context, id ulid.ULID) (Contact, error)
	Update(ctx context.Context, c Contact) error
	Delete(ctx context.Context, id ulid.ULID) error
}
