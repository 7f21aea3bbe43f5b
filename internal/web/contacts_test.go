// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package web_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luan-services/contactsd/internal/contacts"
)

var card = map[string]any{"name": "Sam", "email": "sam@example.com", "phone": "555-0100"}

func TestContacts_RequireAuth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/contacts", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestContacts_CRUD(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", testEmail)
	access, _ := f.login(t, testEmail, false)

	rec := f.do(t, http.MethodPost, "/api/contacts", card, bearer(access))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody(t, rec)
	id, _ := created["_id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "Sam", created["name"])
	assert.NotEmpty(t, created["user_id"])
	assert.NotEmpty(t, created["createdAt"])

	t.Run("list", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/contacts", nil, bearer(access))
		require.Equal(t, http.StatusOK, rec.Code)
		var list []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		require.Len(t, list, 1)
		assert.Equal(t, id, list[0]["_id"])
	})

	t.Run("get", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/contacts/"+id, nil, bearer(access))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "sam@example.com", decodeBody(t, rec)["email"])
	})

	t.Run("update", func(t *testing.T) {
		rec := f.do(t, http.MethodPut, "/api/contacts/"+id,
			map[string]any{"name": "Samantha", "email": "sam@example.com", "phone": "555-0199"}, bearer(access))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "Samantha", decodeBody(t, rec)["name"])
	})

	t.Run("update with missing field", func(t *testing.T) {
		rec := f.do(t, http.MethodPut, "/api/contacts/"+id, map[string]any{"name": "x"}, bearer(access))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/contacts/not-an-id", nil, bearer(access))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_FAILED", decodeBody(t, rec)["code"])
	})

	t.Run("missing contact", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/contacts/"+ulid.Make().String(), nil, bearer(access))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, contacts.CodeNotFound, decodeBody(t, rec)["code"])
	})

	t.Run("other owner is forbidden", func(t *testing.T) {
		f.register(t, "mallory", "mallory@example.com")
		other, _ := f.login(t, "mallory@example.com", false)

		for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
			rec := f.do(t, method, "/api/contacts/"+id, card, bearer(other))
			assert.Equal(t, http.StatusForbidden, rec.Code, method)
			assert.Equal(t, contacts.CodeForbidden, decodeBody(t, rec)["code"])
		}

		rec := f.do(t, http.MethodGet, "/api/contacts", nil, bearer(other))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("delete", func(t *testing.T) {
		rec := f.do(t, http.MethodDelete, "/api/contacts/"+id, nil, bearer(access))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Deleted contact "+id, decodeBody(t, rec)["message"])

		rec = f.do(t, http.MethodGet, "/api/contacts/"+id, nil, bearer(access))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

// failingContacts fails every call with an uncoded error.
type failingContacts struct{}

func (failingContacts) List(context.Context, ulid.ULID) ([]contacts.Contact, error) {
	return nil, errors.New("connection reset by peer")
}

func (failingContacts) Create(context.Context, ulid.ULID, contacts.Fields) (contacts.Contact, error) {
	return contacts.Contact{}, errors.New("connection reset by peer")
}

func (failingContacts) Get(context.Context, ulid.ULID, ulid.ULID) (contacts.Contact, error) {
	return contacts.Contact{}, errors.New("connection reset by peer")
}

func (failingContacts) Update(context.Context, ulid.ULID, ulid.ULID, contacts.Fields) (contacts.Contact, error) {
	return contacts.Contact{}, errors.New("connection reset by peer")
}

func (failingContacts) Delete(context.Context, ulid.ULID, ulid.ULID) error {
	return errors.New("connection reset by peer")
}

func TestContacts_InternalErrorsAreHidden(t *testing.T) {
	f := newFixture(t, withContacts(failingContacts{}))
	f.register(t, "alice", testEmail)
	access, _ := f.login(t, testEmail, false)

	rec := f.do(t, http.MethodGet, "/api/contacts", nil, bearer(access))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"internal server error"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestContacts_ListNewestFirst(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", testEmail)
	access, _ := f.login(t, testEmail, false)

	var ids []string
	for _, name := range []string{"first", "second"} {
		rec := f.do(t, http.MethodPost, "/api/contacts",
			map[string]any{"name": name, "email": name + "@example.com", "phone": "1"}, bearer(access))
		require.Equal(t, http.StatusCreated, rec.Code)
		id, _ := decodeBody(t, rec)["_id"].(string)
		ids = append(ids, id)
		time.Sleep(2 * time.Millisecond)
	}

	rec := f.do(t, http.MethodGet, "/api/contacts", nil, bearer(access))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []contacts.Contact
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, ids[1], list[0].ID.String())
	assert.Equal(t, ids[0], list[1].ID.String())
}
