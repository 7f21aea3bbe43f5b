// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package errutil_test

import (
	"testing"

	"github.com/samber/oops"

	"github.com/luan-services/contactsd/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("MY_CODE").Errorf("test error")
	errutil.AssertErrorCode(t, err, "MY_CODE")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("user_id", "123").Errorf("test error")
	errutil.AssertErrorContext(t, err, "user_id", "123")
}

func TestAssertErrorOperation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		op   string
	}{
		{"direct", oops.Code("CONTACT_SAVE_FAILED").With("operation", "insert contact").Errorf("boom"), "insert contact"},
		{"wrapped", oops.Wrapf(oops.With("operation", "load account").Errorf("boom"), "outer"), "load account"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errutil.AssertErrorOperation(t, tt.err, tt.op)
		})
	}
}
