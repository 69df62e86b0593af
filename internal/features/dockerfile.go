package features

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DockerfileGenerator assembles a Dockerfile that layers resolved
// features on top of a base image, one RUN per feature in
// installation order, following the devcontainer-features install
// convention: each feature's install.sh runs as root with its option
// values exposed as environment variables.
type DockerfileGenerator struct {
	baseImage     string
	features      []*Feature
	buildDir      string
	remoteUser    string
	containerUser string
}

// NewDockerfileGenerator returns a generator for the given base image
// and ordered feature set. buildDir is the temporary build context
// directory features' contents are copied into.
func NewDockerfileGenerator(baseImage string, features []*Feature, buildDir, remoteUser, containerUser string) *DockerfileGenerator {
	return &DockerfileGenerator{
		baseImage:     baseImage,
		features:      features,
		buildDir:      buildDir,
		remoteUser:    remoteUser,
		containerUser: containerUser,
	}
}

// featureDirName returns the build-context-relative directory a
// feature's contents are copied into, prefixed with its install
// position so the Dockerfile's COPY/RUN pairs are unambiguous even
// when two features share a resource name.
func featureDirName(index int, f *Feature) string {
	safeID := strings.NewReplacer("/", "_", ":", "_", "@", "_").Replace(f.ID)
	return fmt.Sprintf("%02d_%s", index, safeID)
}

// Generate returns the full Dockerfile text. Each feature contributes
// a COPY of its extracted contents plus a single RUN of its
// install.sh, with option values set as environment variables for
// that RUN instruction only (so one feature's options never leak into
// another's install environment).
func (g *DockerfileGenerator) Generate() string {
	var b strings.Builder

	fmt.Fprintf(&b, "FROM %s\n\n", g.baseImage)
	b.WriteString("USER root\n\n")

	for i, f := range g.features {
		dir := featureDirName(i, f)
		name := f.ID
		if f.Metadata != nil && f.Metadata.Name != "" {
			name = f.Metadata.Name
		}

		fmt.Fprintf(&b, "# Feature: %s\n", name)
		fmt.Fprintf(&b, "COPY %s /tmp/dcx-features/%s\n", dir, dir)

		env := f.GetEnvVars()
		envNames := make([]string, 0, len(env))
		for k := range env {
			envNames = append(envNames, k)
		}
		sort.Strings(envNames)

		if len(envNames) > 0 {
			b.WriteString("RUN ")
			for _, k := range envNames {
				fmt.Fprintf(&b, "%s=%s \\\n    ", k, shellQuote(env[k]))
			}
		} else {
			b.WriteString("RUN ")
		}

		fmt.Fprintf(&b, "_CONTAINER_USER=%s _REMOTE_USER=%s \\\n", shellQuote(g.containerUser), shellQuote(g.remoteUser))
		fmt.Fprintf(&b, "    chmod +x /tmp/dcx-features/%s/install.sh && /tmp/dcx-features/%s/install.sh\n\n", dir, dir)
	}

	b.WriteString("USER ")
	if g.containerUser != "" {
		b.WriteString(g.containerUser)
	} else {
		b.WriteString("root")
	}
	b.WriteString("\n")

	return b.String()
}

// shellQuote wraps a value in single quotes for safe interpolation
// into a Dockerfile RUN instruction's shell form.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// PrepareBuildContext copies every feature's cached contents into
// buildDir under its featureDirName, and writes the generated
// Dockerfile as Dockerfile.dcx-features.
func PrepareBuildContext(buildDir string, ordered []*Feature, dockerfile string) error {
	for i, f := range ordered {
		if f.CachePath == "" {
			return fmt.Errorf("feature %q has no cached contents to copy into the build context", f.ID)
		}
		dest := filepath.Join(buildDir, featureDirName(i, f))
		if err := copyDir(f.CachePath, dest); err != nil {
			return fmt.Errorf("copy feature %q into build context: %w", f.ID, err)
		}
	}

	dockerfilePath := filepath.Join(buildDir, "Dockerfile.dcx-features")
	return os.WriteFile(dockerfilePath, []byte(dockerfile), 0644)
}

func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if info.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
