// Esca CI
//
// Package main provides reproducible builds, tests and checks locally and in
// GitHub actions.
package main

import (
	"context"

	"dagger/esca/internal/dagger"
)

// Esca is the main module for the esca CI pipeline
type Esca struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Esca CI module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", "build", "tmp", "_examples"]
	source *dagger.Directory,
) *Esca {
	return &Esca{
		Source: source,
	}
}

// goContainer returns a Go container with the project source mounted and
// the module and build caches attached. esca is pure Go, so CGO is off.
//
// It is the shared foundation for tests, builds, and linting.
func (e *Esca) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-alpine").
		WithEnvVariable("CGO_ENABLED", "0").
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", e.Source)
}

// Test runs the esca unit tests via "go test"
func (e *Esca) Test(
	ctx context.Context,

	// Run the tests with the race detector
	// +optional
	race bool,
) (string, error) {
	args := []string{"go", "test", "./..."}
	ctr := e.goContainer()
	if race {
		// The race detector needs cgo.
		ctr = dag.Container().
			From("golang:1.25-bookworm").
			WithEnvVariable("CGO_ENABLED", "1").
			WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
			WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build-race")).
			WithWorkdir("/src").
			WithDirectory("/src", e.Source)
		args = []string{"go", "test", "-race", "./..."}
	}

	return ctr.WithExec(args).Stdout(ctx)
}
