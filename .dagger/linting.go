package main

import (
	"context"

	"dagger/esca/internal/dagger"
)

const golangciLintVersion = "v2.8.0"

// lintContainer layers golangci-lint on top of goContainer() so the Go
// caches are already in place.
func (e *Esca) lintContainer() *dagger.Container {
	return e.goContainer().
		WithExec([]string{
			"go",
			"install",
			"github.com/golangci/golangci-lint/v2/cmd/golangci-lint@" + golangciLintVersion,
		})
}

// CheckLint runs golangci-lint against the esca source code without applying fixes.
//
// +check
func (e *Esca) CheckLint(ctx context.Context) (string, error) {
	return e.lintContainer().
		WithExec([]string{"golangci-lint", "run", "./..."}).
		Stdout(ctx)
}

// FixLint runs golangci-lint with --fix and returns the modified source
// directory.
func (e *Esca) FixLint(ctx context.Context) *dagger.Directory {
	return e.lintContainer().
		WithExec([]string{"golangci-lint", "run", "--fix", "./..."}).
		Directory("/src")
}
