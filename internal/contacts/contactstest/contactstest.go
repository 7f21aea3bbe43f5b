// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

// Package contactstest provides an in-memory contacts.Repository for tests.
package contactstest

import (
	"context"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/luan-services/contactsd/internal/contacts"
)

// MemoryRepository is a contacts.Repository backed by a map.
type MemoryRepository struct {
	mu   sync.Mutex
	byID map[ulid.ULID]contacts.Contact
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[ulid.ULID]contacts.Contact)}
}

// ListByOwner implements contacts.Repository, newest first.
func (m *MemoryRepository) ListByOwner(_ context.Context, ownerID ulid.ULID) ([]contacts.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []contacts.Contact{}
	for _, c := range m.byID {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.Compare(out[j].ID) > 0
	})
	return out, nil
}

// Create implements contacts.Repository.
func (m *MemoryRepository) Create(_ context.Context, c contacts.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[c.ID] = c
	return nil
}

// Get implements contacts.Repository.
func (m *MemoryRepository) Get(_ context.Context, id ulid.ULID) (contacts.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return contacts.Contact{}, oops.With("contact_id", id.String()).Wrap(contacts.ErrNotFound)
	}
	return c, nil
}

// Update implements contacts.Repository.
func (m *MemoryRepository) Update(_ context.Context, c contacts.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[c.ID]; !ok {
		return oops.With("contact_id", c.ID.String()).Wrap(contacts.ErrNotFound)
	}
	m.byID[c.ID] = c
	return nil
}

// Delete implements contacts.Repository.
func (m *MemoryRepository) Delete(_ context.Context, id ulid.ULID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return oops.With("contact_id", id.String()).Wrap(contacts.ErrNotFound)
	}
	delete(m.byID, id)
	return nil
}

// Len returns the number of stored contacts.
func (m *MemoryRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

var _ contacts.Repository = (*MemoryRepository)(nil)
