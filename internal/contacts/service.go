// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package contacts

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Service implements contact CRUD for an authenticated owner.
type Service struct {
	repo   Repository
	now    func() time.Time
	logger *slog.Logger
}

// NewService creates a Service. A nil logger falls back to slog.Default.
func NewService(repo Repository, logger *slog.Logger) (*Service, error) {
	if repo == nil {
		return nil, oops.Code("CONTACT_SERVICE_INVALID").Errorf("contact repository is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, now: time.Now, logger: logger}, nil
}

// List returns the owner's contacts, newest first.
func (s *Service) List(ctx context.Context, ownerID ulid.ULID) ([]Contact, error) {
	list, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, oops.Code("CONTACT_LIST_FAILED").With("owner_id", ownerID.String()).Wrap(err)
	}
	if list == nil {
		list = []Contact{}
	}
	return list, nil
}

// Create stores a new contact owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID ulid.ULID, f Fields) (Contact, error) {
	if err := f.validate(); err != nil {
		return Contact{}, err
	}
	now := s.now()
	c := Contact{
		ID:        ulid.Make(),
		OwnerID:   ownerID,
		Name:      f.Name,
		Email:     f.Email,
		Phone:     f.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return Contact{}, oops.Code("CONTACT_CREATE_FAILED").With("owner_id", ownerID.String()).Wrap(err)
	}
	s.logger.DebugContext(ctx, "contact created", "contact_id", c.ID.String(), "owner_id", ownerID.String())
	return c, nil
}

// Get returns one of the owner's contacts.
func (s *Service) Get(ctx context.Context, ownerID, id ulid.ULID) (Contact, error) {
	return s.owned(ctx, ownerID, id)
}

// Update replaces name, email and phone of one of the owner's contacts.
func (s *Service) Update(ctx context.Context, ownerID, id ulid.ULID, f Fields) (Contact, error) {
	if err := f.validate(); err != nil {
		return Contact{}, err
	}
	c, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return Contact{}, err
	}
	c.Name, c.Email, c.Phone = f.Name, f.Email, f.Phone
	c.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, c); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Contact{}, notFound(id)
		}
		return Contact{}, oops.Code("CONTACT_UPDATE_FAILED").With("contact_id", id.String()).Wrap(err)
	}
	return c, nil
}

// Delete removes one of the owner's contacts.
func (s *Service) Delete(ctx context.Context, ownerID, id ulid.ULID) error {
	if _, err := s.owned(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return notFound(id)
		}
		return oops.Code("CONTACT_DELETE_FAILED").With("contact_id", id.String()).Wrap(err)
	}
	return nil
}

func (s *Service) owned(ctx context.Context, ownerID, id ulid.ULID) (Contact, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Contact{}, notFound(id)
		}
		return Contact{}, oops.Code("CONTACT_GET_FAILED").With("contact_id", id.String()).Wrap(err)
	}
	if c.OwnerID != ownerID {
		return Contact{}, oops.Code(CodeForbidden).
			With("contact_id", id.String()).
			Errorf("user don't have permission to access other user contacts")
	}
	return c, nil
}

func notFound(id ulid.ULID) error {
	return oops.Code(CodeNotFound).With("contact_id", id.String()).Errorf("contact not found")
}

func (f Fields) validate() error {
	if strings.TrimSpace(f.Name) == "" || strings.TrimSpace(f.Email) == "" || strings.TrimSpace(f.Phone) == "" {
		return oops.Code(CodeInvalid).Errorf("all fields are mandatory")
	}
	return nil
}
