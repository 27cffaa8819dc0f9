package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Iron-Ham/porch/internal/errors"
)

// ProjectsDir is the project-relative directory holding per-project
// status files, one directory per project: porch/projects/<id>-<title>/.
const ProjectsDir = "porch/projects"

// StatusFileName is the status file inside each project directory.
const StatusFileName = "status.yaml"

// ProjectDir returns the directory for a project under the given root.
func ProjectDir(root, id, title string) string {
	return filepath.Join(root, ProjectsDir, id+"-"+title)
}

// StatusPath returns the status file path for a project under the given root.
func StatusPath(root, id, title string) string {
	return filepath.Join(ProjectDir(root, id, title), StatusFileName)
}

// FindStatusFile locates the status file for a project ID by scanning the
// projects directory for a "<id>-*" child. Returns an ErrProjectNotFound
// error with remediation text when no match exists.
func FindStatusFile(root, projectID string) (string, error) {
	dir := filepath.Join(root, ProjectsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", notFoundHint(projectID)
		}
		return "", fmt.Errorf("scan projects directory: %w", err)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), projectID+"-") {
			path := filepath.Join(dir, e.Name(), StatusFileName)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
	}
	return "", notFoundHint(projectID)
}

func notFoundHint(projectID string) error {
	return errors.NewNotFoundError("project", projectID).
		WithHint(fmt.Sprintf("Run: porch init <protocol> %s <name>", projectID))
}

// FindProjects scans the projects directory under root and returns every
// parseable project state. An absent directory yields an empty slice, not
// an error; unparseable status files are skipped.
func FindProjects(root string) []*ProjectState {
	dir := filepath.Join(root, ProjectsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return []*ProjectState{}
	}

	projects := make([]*ProjectState, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		s, err := Read(filepath.Join(dir, e.Name(), StatusFileName))
		if err != nil || s == nil {
			continue
		}
		projects = append(projects, s)
	}
	return projects
}
