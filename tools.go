// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

//go:build tools
// +build tools

// Package main pins dependencies that contactsd only reaches from tests
// behind build tags, so `go mod tidy` keeps them in go.mod.
package main

import (
	// Store and auth integration suites (-tags integration).
	_ "github.com/onsi/ginkgo/v2"
	_ "github.com/onsi/gomega"
	_ "github.com/testcontainers/testcontainers-go"
	_ "github.com/testcontainers/testcontainers-go/modules/postgres"

	// Unit test tooling shared across packages.
	_ "github.com/stretchr/testify/assert"
	_ "github.com/stretchr/testify/mock"
	_ "github.com/stretchr/testify/require"
	_ "go.uber.org/goleak"
)
