package main

import (
	"context"
	"errors"
	"fmt"

	"dagger/esca/internal/dagger"
)

// CheckGoModTidy runs "go mod tidy" and fails if it changes go.mod or go.sum.
//
// +check
func (e *Esca) CheckGoModTidy(ctx context.Context) (string, error) {
	out, err := e.goContainer().
		WithExec([]string{"cp", "go.mod", "go.mod.HEAD"}).
		WithExec([]string{"cp", "go.sum", "go.sum.HEAD"}).
		WithExec([]string{"go", "mod", "tidy"}).
		WithExec([]string{
			"sh", "-c",
			"diff -u go.mod.HEAD go.mod && diff -u go.sum.HEAD go.sum",
		}).
		Stdout(ctx)

	var execErr *dagger.ExecError
	if errors.As(err, &execErr) {
		return "", fmt.Errorf(
			"go.mod or go.sum are not tidy: run 'go mod tidy' and commit the changes\n\n%s",
			execErr.Stdout,
		)
	} else if err != nil {
		return "", fmt.Errorf("unexpected error: %w", err)
	}

	return fmt.Sprintf("go.mod and go.sum are tidy: %s", out), nil
}

// CheckFormat fails when any Go file is not gofmt-formatted.
//
// +check
func (e *Esca) CheckFormat(ctx context.Context) (string, error) {
	out, err := e.goContainer().
		WithExec([]string{"sh", "-c", `files=$(gofmt -l $(find . -name '*.go' -not -path './_examples/*')); test -z "$files" || { echo "$files"; exit 1; }`}).
		Stdout(ctx)
	if err != nil {
		return "", fmt.Errorf("unformatted files: %w", err)
	}
	return "all files formatted" + out, nil
}
