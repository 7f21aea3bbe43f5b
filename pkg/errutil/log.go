// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package errutil

import (
	"log/slog"

	"github.com/samber/oops"
)

// OperationKey is the oops context key naming the step that failed.
const OperationKey = "operation"

// LogError logs err at error level. Oops errors contribute their code and
// context; the "operation" context value is promoted to a top-level attribute
// so failures can be filtered by step without digging into the context map.
func LogError(logger *slog.Logger, msg string, err error) {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		logger.Error(msg, "error", err)
		return
	}

	attrs := []any{"error", oopsErr.Error()}
	if code := Code(err); code != "" {
		attrs = append(attrs, "code", code)
	}
	ctx := oopsErr.Context()
	if op, ok := ctx[OperationKey].(string); ok && op != "" {
		attrs = append(attrs, OperationKey, op)
	}
	rest := make(map[string]any, len(ctx))
	for k, v := range ctx {
		if k != OperationKey {
			rest[k] = v
		}
	}
	if len(rest) > 0 {
		attrs = append(attrs, "context", rest)
	}
	logger.Error(msg, attrs...)
}
