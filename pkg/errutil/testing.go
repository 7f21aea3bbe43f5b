// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireOops(t *testing.T, err error) oops.OopsError {
	t.Helper()
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T: %v", err, err)
	return oopsErr
}

// AssertErrorCode asserts that err is an oops error reporting code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	oopsErr := requireOops(t, err)
	assert.Equal(t, code, Code(err), "error %q has context %v", err.Error(), oopsErr.Context())
}

// AssertErrorContext asserts that err carries key=value in its oops context.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	ctx := requireOops(t, err).Context()
	if assert.Contains(t, ctx, key, "error %q (code %q)", err.Error(), Code(err)) {
		assert.Equal(t, value, ctx[key], "context key %q", key)
	}
}

// AssertErrorOperation asserts the operation recorded on err, which is what
// LogError surfaces for failed steps.
func AssertErrorOperation(t *testing.T, err error, operation string) {
	t.Helper()
	AssertErrorContext(t, err, OperationKey, operation)
}
