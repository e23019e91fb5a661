//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "lyphgraph"
	binaryDir  = "bin"
	cmdDir     = "./cmd/lyphgraph"
	versionVar = "github.com/mesh-intelligence/lyphgraph/internal/cli.Version"
)

// Build compiles the lyphgraph binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v",
		"-ldflags", "-X "+versionVar+"="+version(),
		"-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}

// version prefers LYPHGRAPH_VERSION, then git describe, then a dev marker.
func version() string {
	if v := os.Getenv("LYPHGRAPH_VERSION"); v != "" {
		return v
	}
	out, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil || strings.TrimSpace(out) == "" {
		return "0.1.0-dev"
	}
	return strings.TrimSpace(out)
}
