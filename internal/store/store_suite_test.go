// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

//go:build integration

package store_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

// TestStore runs the migration specs against a disposable PostgreSQL
// container; it needs a reachable Docker daemon.
func TestStore(t *testing.T) {
	if testing.Short() {
		t.Skip("store suite starts a postgres container")
	}
	RegisterFailHandler(Fail)

	suiteConfig, reporterConfig := GinkgoConfiguration()
	// Migrations against a fresh container finish well inside this bound.
	if suiteConfig.Timeout > 5*time.Minute {
		suiteConfig.Timeout = 5 * time.Minute
	}
	RunSpecs(t, "Contactsd Store Suite", suiteConfig, reporterConfig)
}
