// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mudlark Contributors

//go:build integration

// Package scripting provides end-to-end tests of the script runtime:
// profile configuration through activation, event dispatch, and reload.
package scripting_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

func TestScripting(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Scripting Integration Suite")
}
