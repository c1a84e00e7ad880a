package phase

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Project type labels reported by CheckReady.
const (
	ProjectTypeVirgin   = "virgin"
	ProjectTypeExisting = "existing"
)

// Readiness is the result of the project readiness check that gates session
// creation.
type Readiness struct {
	Ready           bool
	HasConstitution bool
	HasArchitecture bool
	ProjectType     string

	// Route is the project-scoped phase to run before any session can
	// exist: init for a virgin directory, analyze for an existing codebase.
	// Empty when the project is ready.
	Route Phase
}

// Readiness record file names under the workflow root.
const (
	ConstitutionFile = "constitution.md"
	ArchitectureFile = "architecture.md"
	ProjectEntryFile = "project.md"
)

// manifestFiles are build manifests whose presence marks a checkout as an
// existing codebase rather than a virgin directory.
var manifestFiles = []string{
	"go.mod", "package.json", "Cargo.toml", "pyproject.toml",
	"requirements.txt", "pom.xml", "build.gradle", "Gemfile", "composer.json",
}

// sourceDirs are conventional source roots checked when no manifest exists.
var sourceDirs = []string{"src", "lib", "app", "internal", "cmd", "pkg"}

// CheckReady evaluates project readiness: a constitution record must be
// present, and an architecture record must either exist or be
// cross-referenced from the project entry-point document.
//
// A not-ready project is routed to init (nothing recognizable on disk) or
// analyze (manifest or source directories detected) before any session is
// created.
func CheckReady(workflowRoot, projectRoot string) (*Readiness, error) {
	r := &Readiness{}

	r.HasConstitution = fileExists(filepath.Join(workflowRoot, ConstitutionFile))
	r.HasArchitecture = fileExists(filepath.Join(workflowRoot, ArchitectureFile)) ||
		entryReferencesArchitecture(filepath.Join(workflowRoot, ProjectEntryFile))

	r.Ready = r.HasConstitution && r.HasArchitecture

	existing, err := detectExistingProject(projectRoot)
	if err != nil {
		return nil, err
	}
	if existing {
		r.ProjectType = ProjectTypeExisting
	} else {
		r.ProjectType = ProjectTypeVirgin
	}

	if !r.Ready {
		if existing {
			r.Route = PhaseAnalyze
		} else {
			r.Route = PhaseInit
		}
	}

	return r, nil
}

// RequireReady returns ErrProjectNotReady (with the route to run) when the
// project readiness records are absent.
func RequireReady(workflowRoot, projectRoot string) error {
	r, err := CheckReady(workflowRoot, projectRoot)
	if err != nil {
		return err
	}
	if !r.Ready {
		return fmt.Errorf("%w: run %s first", ErrProjectNotReady, r.Route)
	}
	return nil
}

// entryReferencesArchitecture reports whether the project entry-point
// document cross-references an architecture record.
func entryReferencesArchitecture(path string) bool {
	content, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(content)), ArchitectureFile)
}

// detectExistingProject looks for a build manifest or conventional source
// directories in the project root.
func detectExistingProject(projectRoot string) (bool, error) {
	if projectRoot == "" {
		projectRoot = "."
	}

	for _, name := range manifestFiles {
		if fileExists(filepath.Join(projectRoot, name)) {
			return true, nil
		}
	}
	for _, name := range sourceDirs {
		info, err := os.Stat(filepath.Join(projectRoot, name))
		if err == nil && info.IsDir() {
			return true, nil
		}
	}
	return false, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
