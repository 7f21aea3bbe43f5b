// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

// Command gen-schema writes the JSON Schema of every API request body to
// schemas/, for API clients and documentation.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/oops"

	"github.com/luan-services/contactsd/internal/validate"
)

// requestTypes maps output file stems to request bodies.
var requestTypes = map[string]any{
	"register":     validate.RegisterRequest{},
	"login":        validate.LoginRequest{},
	"email":        validate.EmailRequest{},
	"new-password": validate.NewPasswordRequest{},
	"contact":      validate.ContactRequest{},
}

func main() {
	written, err := generate("schemas")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating schemas: %v\n", err)
		os.Exit(1)
	}
	for _, path := range written {
		fmt.Printf("Generated %s\n", path)
	}
}

// generate writes one <stem>.schema.json per request type into dir and
// returns the written paths.
func generate(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, oops.With("dir", dir).Wrap(err)
	}

	written := make([]string, 0, len(requestTypes))
	for stem, v := range requestTypes {
		schema, err := validate.GenerateSchema(v)
		if err != nil {
			return nil, oops.With("type", stem).Wrap(err)
		}
		path := filepath.Join(dir, stem+".schema.json")
		if err := os.WriteFile(path, schema, 0o600); err != nil {
			return nil, oops.With("file", path).Wrap(err)
		}
		written = append(written, path)
	}
	return written, nil
}
