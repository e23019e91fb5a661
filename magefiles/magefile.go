//go:build mage

// Package main provides build targets for the lyphgraph project using Mage.
//
// Usage:
//
//	mage build          Compile lyphgraph binary to bin/
//	mage install        Install lyphgraph to GOPATH/bin
//	mage clean          Remove build artifacts
//	mage test:all       Run all tests
//	mage test:unit      Run tests without the sqlite-backed packages
//	mage test:cover     Run all tests with a coverage profile
//	mage lint           Run golangci-lint
//	mage stats          Print Go line counts
package main
