// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

// Package postgres implements contacts.Repository on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/luan-services/contactsd/internal/contacts"
)

// Querier is the subset of *pgxpool.Pool the repository uses.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ContactRepository implements contacts.Repository using PostgreSQL.
type ContactRepository struct {
	pool Querier
}

// NewContactRepository creates a new ContactRepository.
func NewContactRepository(pool Querier) *ContactRepository {
	return &ContactRepository{pool: pool}
}

// ListByOwner returns the owner's contacts, newest first.
func (r *ContactRepository) ListByOwner(ctx context.Context, ownerID ulid.ULID) ([]contacts.Contact, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, owner_id, name, email, phone, created_at, updated_at
		FROM contacts
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
	`, ownerID.String())
	if err != nil {
		return nil, oops.With("operation", "list contacts").Wrap(err)
	}
	defer rows.Close()

	var out []contacts.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "iterate contacts").Wrap(err)
	}
	return out, nil
}

// Create inserts a contact.
func (r *ContactRepository) Create(ctx context.Context, c contacts.Contact) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO contacts (id, owner_id, name, email, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID.String(), c.OwnerID.String(), c.Name, c.Email, c.Phone, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return oops.With("operation", "insert contact").With("contact_id", c.ID.String()).Wrap(err)
	}
	return nil
}

// Get retrieves a contact by ID.
func (r *ContactRepository) Get(ctx context.Context, id ulid.ULID) (contacts.Contact, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, owner_id, name, email, phone, created_at, updated_at
		FROM contacts
		WHERE id = $1
	`, id.String())

	c, err := scanContact(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return contacts.Contact{}, oops.With("contact_id", id.String()).Wrap(contacts.ErrNotFound)
	}
	if err != nil {
		return contacts.Contact{}, oops.With("operation", "get contact").With("contact_id", id.String()).Wrap(err)
	}
	return c, nil
}

// Update replaces the editable fields of a contact.
func (r *ContactRepository) Update(ctx context.Context, c contacts.Contact) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE contacts SET name = $2, email = $3, phone = $4, updated_at = $5
		WHERE id = $1
	`, c.ID.String(), c.Name, c.Email, c.Phone, c.UpdatedAt)
	if err != nil {
		return oops.With("operation", "update contact").With("contact_id", c.ID.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.With("contact_id", c.ID.String()).Wrap(contacts.ErrNotFound)
	}
	return nil
}

// Delete removes a contact.
func (r *ContactRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM contacts WHERE id = $1`, id.String())
	if err != nil {
		return oops.With("operation", "delete contact").With("contact_id", id.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.With("contact_id", id.String()).Wrap(contacts.ErrNotFound)
	}
	return nil
}

func scanContact(row pgx.Row) (contacts.Contact, error) {
	var (
		idStr, ownerStr string
		c               contacts.Contact
		createdAt       time.Time
		updatedAt       time.Time
	)
	if err := row.Scan(&idStr, &ownerStr, &c.Name, &c.Email, &c.Phone, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return contacts.Contact{}, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return contacts.Contact{}, oops.With("operation", "scan contact").Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return contacts.Contact{}, oops.With("operation", "parse contact id").With("id", idStr).Wrap(err)
	}
	owner, err := ulid.Parse(ownerStr)
	if err != nil {
		return contacts.Contact{}, oops.With("operation", "parse owner id").With("owner_id", ownerStr).Wrap(err)
	}

	c.ID, c.OwnerID, c.CreatedAt, c.UpdatedAt = id, owner, createdAt, updatedAt
	return c, nil
}

// Compile-time interface check.
var _ contacts.Repository = (*ContactRepository)(nil)
