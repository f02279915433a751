//go:build tools
// +build tools

// Package tools documents development tool dependencies.
// These tools are installed via `go install` or run through `go run` and
// are not part of the gateway's runtime.
package tools

// Development tools:
//
// mockgen - Generates the gomock mocks for the auth ports
//   Run: go generate ./internal/mocks
//   Module: go.uber.org/mock (tracked in go.mod; tests import gomock)
//
// Air - Live reload during local development
//   Install: go install github.com/air-verse/air@v1.63.0
//   Docs: https://github.com/air-verse/air
