//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const binLint = "golangci-lint"

// Lint checks formatting, runs go vet, then golangci-lint.
func Lint() error {
	mg.SerialDeps(Fmt, Vet)
	return sh.RunV(binLint, "run", "./...")
}

// Fmt fails when gofmt would rewrite any file.
func Fmt() error {
	out, err := sh.Output("gofmt", "-l", "cmd", "internal", "pkg", "magefiles")
	if err != nil {
		return err
	}
	if files := strings.TrimSpace(out); files != "" {
		return fmt.Errorf("gofmt needed on:\n%s", files)
	}
	return nil
}

// Vet runs go vet over every package.
func Vet() error {
	return sh.RunV(binGo, "vet", "./...")
}
