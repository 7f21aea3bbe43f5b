// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

// Package validate checks request payloads against JSON Schemas reflected
// from the request types in this package.
package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// CodeInvalid is attached to every validation failure.
const CodeInvalid = "VALIDATION_FAILED"

const schemaBaseURL = "https://contactsd.dev/schemas/"

// FieldError describes one failed constraint.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validator compiles one schema per request type on first use.
// It is safe for concurrent use.
type Validator struct {
	mu      sync.Mutex
	schemas map[reflect.Type]*jschema.Schema
}

// New creates an empty Validator.
func New() *Validator {
	return &Validator{schemas: make(map[reflect.Type]*jschema.Schema)}
}

// GenerateSchema reflects v's type into a JSON Schema document.
func GenerateSchema(v any) ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	schema := r.Reflect(v)
	schema.ID = jsonschema.ID(schemaURL(reflect.TypeOf(v)))

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.With("operation", "marshal schema").Wrap(err)
	}
	return data, nil
}

// DecodeJSON reads a JSON body from r, validates it against dst's schema
// and then decodes it into dst, which must be a pointer to a request type.
func (v *Validator) DecodeJSON(r io.Reader, dst any) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return oops.Code(CodeInvalid).With("operation", "read body").Wrap(err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return oops.Code(CodeInvalid).
			With("fields", []FieldError{{Field: "body", Message: "request body is required"}}).
			Errorf("request body is required")
	}

	inst, err := jschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return oops.Code(CodeInvalid).
			With("fields", []FieldError{{Field: "body", Message: "malformed JSON"}}).
			Errorf("malformed JSON")
	}

	if err := v.check(dst, inst); err != nil {
		return err
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return oops.Code(CodeInvalid).
			With("fields", []FieldError{{Field: "body", Message: err.Error()}}).
			Wrap(err)
	}
	return nil
}

// Struct validates an already-populated request value, such as one built
// from query or path parameters.
func (v *Validator) Struct(value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return oops.With("operation", "marshal value").Wrap(err)
	}
	inst, err := jschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return oops.With("operation", "unmarshal value").Wrap(err)
	}
	return v.check(value, inst)
}

func (v *Validator) check(target any, inst any) error {
	sch, err := v.schemaFor(target)
	if err != nil {
		return err
	}

	err = sch.Validate(inst)
	if err == nil {
		return nil
	}

	var verr *jschema.ValidationError
	if !errors.As(err, &verr) {
		return oops.Code(CodeInvalid).Wrap(err)
	}
	fields := FieldErrors(verr)
	return oops.Code(CodeInvalid).
		With("fields", fields).
		Errorf("%s", summarize(fields))
}

// schemaFor returns the cached compiled schema for target's type or
// compiles it.
func (v *Validator) schemaFor(target any) (*jschema.Schema, error) {
	typ := reflect.TypeOf(target)
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if sch, ok := v.schemas[typ]; ok {
		return sch, nil
	}

	schemaBytes, err := GenerateSchema(reflect.New(typ).Interface())
	if err != nil {
		return nil, err
	}

	var schemaData any
	if err := json.Unmarshal(schemaBytes, &schemaData); err != nil {
		return nil, oops.With("operation", "parse schema JSON").Wrap(err)
	}

	url := schemaURL(typ)
	c := jschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(url, schemaData); err != nil {
		return nil, oops.With("operation", "add schema resource").With("schema", url).Wrap(err)
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, oops.With("operation", "compile schema").With("schema", url).Wrap(err)
	}

	v.schemas[typ] = sch
	return sch, nil
}

// FieldErrors flattens a validation error into one entry per failing
// leaf, keyed by the JSON pointer of the offending value without its
// leading slash.
func FieldErrors(verr *jschema.ValidationError) []FieldError {
	p := message.NewPrinter(language.English)

	var out []FieldError
	var walk func(e *jschema.ValidationError)
	walk = func(e *jschema.ValidationError) {
		if len(e.Causes) > 0 {
			for _, c := range e.Causes {
				walk(c)
			}
			return
		}
		prefix := strings.Join(e.InstanceLocation, "/")
		if req, ok := e.ErrorKind.(*kind.Required); ok {
			for _, name := range req.Missing {
				out = append(out, FieldError{Field: joinField(prefix, name), Message: "is required"})
			}
			return
		}
		field := prefix
		if field == "" {
			field = "body"
		}
		out = append(out, FieldError{Field: field, Message: e.ErrorKind.LocalizedString(p)})
	}
	walk(verr)

	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

func joinField(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func summarize(fields []FieldError) string {
	if len(fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return strings.Join(parts, "; ")
}

// Fields returns the field errors attached to a validation failure, or nil.
func Fields(err error) []FieldError {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	fields, _ := oopsErr.Context()["fields"].([]FieldError)
	return fields
}

func schemaURL(typ reflect.Type) string {
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	return schemaBaseURL + strings.ToLower(typ.Name()) + ".json"
}
