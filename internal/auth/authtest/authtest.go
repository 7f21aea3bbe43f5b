// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

// Package authtest provides in-memory auth collaborators for tests.
package authtest

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/luan-services/contactsd/internal/auth"
)

// MemoryAccounts is an AccountRepository backed by a map.
type MemoryAccounts struct {
	mu       sync.Mutex
	accounts map[ulid.ULID]auth.Account
}

// NewMemoryAccounts creates an empty MemoryAccounts.
func NewMemoryAccounts() *MemoryAccounts {
	return &MemoryAccounts{accounts: make(map[ulid.ULID]auth.Account)}
}

// Create implements auth.AccountRepository.
func (m *MemoryAccounts) Create(_ context.Context, account auth.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if existing.Email == account.Email || existing.Username == account.Username {
			return oops.Code(auth.CodeAlreadyExists).Errorf("duplicate account")
		}
	}
	m.accounts[account.ID] = account
	return nil
}

// FindByID implements auth.AccountRepository.
func (m *MemoryAccounts) FindByID(_ context.Context, id ulid.ULID) (auth.Account, error) {
	return m.find(func(a auth.Account) bool { return a.ID == id })
}

// FindByEmail implements auth.AccountRepository.
func (m *MemoryAccounts) FindByEmail(_ context.Context, email string) (auth.Account, error) {
	return m.find(func(a auth.Account) bool { return a.Email == email })
}

// FindByUsername implements auth.AccountRepository.
func (m *MemoryAccounts) FindByUsername(_ context.Context, username string) (auth.Account, error) {
	return m.find(func(a auth.Account) bool { return a.Username == username })
}

// FindByVerificationFingerprint implements auth.AccountRepository.
func (m *MemoryAccounts) FindByVerificationFingerprint(_ context.Context, fingerprint string) (auth.Account, error) {
	return m.find(func(a auth.Account) bool { return a.Verification.Fingerprint == fingerprint })
}

// FindByResetFingerprint implements auth.AccountRepository.
func (m *MemoryAccounts) FindByResetFingerprint(_ context.Context, fingerprint string) (auth.Account, error) {
	return m.find(func(a auth.Account) bool { return a.PasswordReset.Fingerprint == fingerprint })
}

// Save implements auth.AccountRepository.
func (m *MemoryAccounts) Save(_ context.Context, account auth.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[account.ID]; !ok {
		return oops.Wrap(auth.ErrNotFound)
	}
	m.accounts[account.ID] = account
	return nil
}

// Delete removes an account, simulating deletion outside the service.
func (m *MemoryAccounts) Delete(id ulid.ULID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, id)
}

// Len returns the number of stored accounts.
func (m *MemoryAccounts) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts)
}

func (m *MemoryAccounts) find(match func(auth.Account) bool) (auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if match(a) {
			return a, nil
		}
	}
	return auth.Account{}, oops.Wrap(auth.ErrNotFound)
}

var tokenPattern = regexp.MustCompile(`[0-9a-f]{64}`)

// Outbox is a Mailer that records every message. Set Err to make Send fail.
type Outbox struct {
	mu       sync.Mutex
	messages []auth.Message
	Err      error
}

// Send implements auth.Mailer.
func (o *Outbox) Send(_ context.Context, msg auth.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Err != nil {
		return o.Err
	}
	o.messages = append(o.messages, msg)
	return nil
}

// Messages returns a copy of the recorded messages.
func (o *Outbox) Messages() []auth.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]auth.Message(nil), o.messages...)
}

// LastToken returns the raw challenge token in the newest message sent to
// the address, or "" if there is none.
func (o *Outbox) LastToken(to string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.messages) - 1; i >= 0; i-- {
		if o.messages[i].To == to {
			return tokenPattern.FindString(o.messages[i].HTMLBody)
		}
	}
	return ""
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a Clock starting at now.
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var (
	_ auth.AccountRepository = (*MemoryAccounts)(nil)
	_ auth.Mailer            = (*Outbox)(nil)
)
