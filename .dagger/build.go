package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/esca/internal/dagger"
)

// Build and return directory of esca binaries for every supported platform
func (e *Esca) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	targets := []struct{ goos, goarch, ext string }{
		{"linux", "amd64", ""},
		{"linux", "arm64", ""},
		{"darwin", "amd64", ""},
		{"darwin", "arm64", ""},
		{"windows", "amd64", ".exe"},
	}

	outputs := dag.Directory()
	golang := e.goContainer()

	for _, t := range targets {
		path := fmt.Sprintf("%s/%s/", t.goos, t.goarch)

		build := golang.
			WithEnvVariable("GOOS", t.goos).
			WithEnvVariable("GOARCH", t.goarch).
			WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path + "esca" + t.ext, "./cli/esca"})

		outputs = outputs.WithDirectory(path, build.Directory(path))
	}

	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (e *Esca) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	buildtime := time.Now().UTC().Format(time.RFC3339)

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/Esca-Byte/ESCA-GGUF/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/Esca-Byte/ESCA-GGUF/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/Esca-Byte/ESCA-GGUF/pkg/utils.Buildtime=%s'", buildtime),
	}

	return e.Build(ctx, strings.Join(ldflags, " "))
}
