package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/porch/internal/errors"
)

const frontmatterFence = "---\n"

// Serialize renders the state as a status file: YAML frontmatter between
// "---" fences followed by the markdown body.
func Serialize(s *ProjectState) (string, error) {
	var sb strings.Builder

	data, err := yaml.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal state: %w", err)
	}

	sb.WriteString(frontmatterFence)
	sb.Write(data)
	sb.WriteString(frontmatterFence)
	if s.Body != "" {
		sb.WriteString("\n")
		sb.WriteString(s.Body)
	}
	return sb.String(), nil
}

// Parse reconstructs a ProjectState from status file content. Content that
// does not carry a frontmatter block or fails YAML decoding is malformed.
func Parse(content string) (*ProjectState, error) {
	if !strings.HasPrefix(content, frontmatterFence) {
		return nil, fmt.Errorf("%w: no frontmatter block", errors.ErrMalformedState)
	}

	rest := content[len(frontmatterFence):]
	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return nil, fmt.Errorf("%w: unterminated frontmatter block", errors.ErrMalformedState)
	}
	front := rest[:idx+1]

	body := rest[idx+len("\n---"):]
	body = strings.TrimPrefix(body, "\n")
	body = strings.TrimPrefix(body, "\n")

	var s ProjectState
	if err := yaml.Unmarshal([]byte(front), &s); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedState, err)
	}
	if s.ID == "" || s.CurrentState == "" {
		return nil, fmt.Errorf("%w: missing id or current_state", errors.ErrMalformedState)
	}

	if s.Gates == nil {
		s.Gates = make(map[string]GateState)
	}
	if s.Phases == nil {
		s.Phases = make(map[string]PhaseState)
	}
	s.Body = body
	return &s, nil
}

// Read loads the status file at path. Returns (nil, nil) when the file does
// not exist; malformed content is an error.
func Read(path string) (*ProjectState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}
	return Parse(string(data))
}

// Write persists the state atomically: serialize to a temp file in the same
// directory, then rename over the target. A concurrent reader sees either
// the old file or the new one, never a partial write.
func Write(path string, s *ProjectState) error {
	content, err := Serialize(s)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create status directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".status-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp status file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp status file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp status file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace status file: %w", err)
	}
	return nil
}
