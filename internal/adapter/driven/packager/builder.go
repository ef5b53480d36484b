// Package packager runs the external geodatabase builder that turns the staged
// feeds into the zipped file geodatabase uploaded to the portal.
package packager

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/ericfisherdev/travelerpub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PackageBuilder = (*Builder)(nil)

// ErrPackageMissing is returned when no package file exists after the build.
var ErrPackageMissing = errors.New("geodatabase package missing")

// Environment variables passed to the build command.
const (
	EnvStagingDir  = "TRAVELERPUB_STAGING_DIR"
	EnvPackagePath = "TRAVELERPUB_PACKAGE_PATH"
)

// Builder runs a configured command to produce the package. With no command it
// only checks that the package already exists.
type Builder struct {
	argv []string
}

// NewBuilder creates a Builder running argv. argv may be empty.
func NewBuilder(argv []string) *Builder {
	return &Builder{argv: argv}
}

// Build runs the command with the staging directory and the package path in
// its environment, then verifies the package file exists.
func (b *Builder) Build(ctx context.Context, stagingDir, packagePath string) error {
	if len(b.argv) > 0 {
		if err := b.run(ctx, stagingDir, packagePath); err != nil {
			return err
		}
	}

	info, err := os.Stat(packagePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrPackageMissing, packagePath)
		}
		return fmt.Errorf("stat package: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrPackageMissing, packagePath)
	}

	slog.Info("package ready", "path", packagePath, "bytes", info.Size())
	return nil
}

func (b *Builder) run(ctx context.Context, stagingDir, packagePath string) error {
	cmd := exec.CommandContext(ctx, b.argv[0], b.argv[1:]...)
	cmd.Env = append(os.Environ(),
		EnvStagingDir+"="+stagingDir,
		EnvPackagePath+"="+packagePath,
	)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	slog.Info("building package", "command", b.argv[0], "staging_dir", stagingDir, "package", packagePath)
	start := time.Now()
	err := cmd.Run()

	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		slog.Info("builder output", "line", scanner.Text())
	}

	if err != nil {
		return fmt.Errorf("run %s: %w", b.argv[0], err)
	}

	slog.Debug("package build finished", "duration", time.Since(start).Round(time.Millisecond))
	return nil
}
