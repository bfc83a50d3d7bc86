//go:build tools

// Package tools lists the development tools used with this module. None of
// them are imported, so go.mod does not track them.
package tools

// Air reloads cmd/lotledger on save:
//
//	go install github.com/air-verse/air@v1.63.0
//	air --build.cmd "go build -o ./tmp/lotledger ./cmd/lotledger" --build.bin ./tmp/lotledger
//
// mockgen is run through go generate at a pinned version, see internal/mocks:
//
//	go generate ./internal/mocks
//
// golangci-lint honours the //nolint directives in the tree:
//
//	go install github.com/golangci/golangci-lint/v2/cmd/golangci-lint@latest
