// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/luan-services/contactsd/internal/auth"
	"github.com/luan-services/contactsd/internal/contacts"
	"github.com/luan-services/contactsd/internal/validate"
)

func (h *handler) listContacts(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	list, err := h.contacts.List(r.Context(), owner)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) createContact(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	var req validate.ContactRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	c, err := h.contacts.Create(r.Context(), owner, fieldsOf(req))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *handler) getContact(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.ownerAndID(w, r)
	if !ok {
		return
	}
	c, err := h.contacts.Get(r.Context(), owner, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) updateContact(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.ownerAndID(w, r)
	if !ok {
		return
	}
	var req validate.ContactRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	c, err := h.contacts.Update(r.Context(), owner, id, fieldsOf(req))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) deleteContact(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.ownerAndID(w, r)
	if !ok {
		return
	}
	if err := h.contacts.Delete(r.Context(), owner, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Deleted contact "+id.String())
}

func (h *handler) owner(w http.ResponseWriter, r *http.Request) (ulid.ULID, bool) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, oops.Code(auth.CodeUnauthenticated).Errorf("user is not authorized or token missing"))
		return ulid.ULID{}, false
	}
	return principal.ID, true
}

// ownerAndID resolves the caller and validates the {id} path parameter.
func (h *handler) ownerAndID(w http.ResponseWriter, r *http.Request) (ulid.ULID, ulid.ULID, bool) {
	owner, ok := h.owner(w, r)
	if !ok {
		return ulid.ULID{}, ulid.ULID{}, false
	}
	param := validate.ContactIDParam{ID: chi.URLParam(r, "id")}
	if err := h.validator.Struct(param); err != nil {
		writeError(w, r, h.logger, err)
		return ulid.ULID{}, ulid.ULID{}, false
	}
	id, err := ulid.ParseStrict(param.ID)
	if err != nil {
		writeError(w, r, h.logger, oops.Code(validate.CodeInvalid).
			With("fields", []validate.FieldError{{Field: "id", Message: "not a valid contact id"}}).
			Wrap(err))
		return ulid.ULID{}, ulid.ULID{}, false
	}
	return owner, id, true
}

func fieldsOf(req validate.ContactRequest) contacts.Fields {
	return contacts.Fields{Name: req.Name, Email: req.Email, Phone: req.Phone}
}
