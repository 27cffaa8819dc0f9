package orch

import (
	"fmt"
	"os"

	porcherr "github.com/Iron-Ham/porch/internal/errors"
	"github.com/Iron-Ham/porch/internal/protocol"
	"github.com/Iron-Ham/porch/internal/state"
)

// defaultDescription seeds the status file body when init is given none.
const defaultDescription = "<!-- Add a brief description of what this project will build -->"

// Init creates the initial status file for a project. It fails when the
// protocol is unknown or the project already exists.
func Init(root, protocolName, projectID, title, description string) (string, *state.ProjectState, error) {
	proto, err := protocol.Load(protocolName, root)
	if err != nil {
		return "", nil, err
	}

	if existing, err := state.FindStatusFile(root, projectID); err == nil {
		return "", nil, fmt.Errorf("project %s already initialized: %s", projectID, existing)
	}

	gateIDs := make([]string, len(proto.Gates))
	for i, g := range proto.Gates {
		gateIDs[i] = g.ID
	}

	st := state.New(projectID, title, protocolName, proto.InitialState, gateIDs)
	if description == "" {
		description = defaultDescription
	}
	st.Body = fmt.Sprintf("## Project Description\n\n%s\n", description)

	statusPath := state.StatusPath(root, projectID, title)
	if err := state.Write(statusPath, st); err != nil {
		return "", nil, err
	}
	return statusPath, st, nil
}

// Approve marks a gate passed for a project. Approving an already-passed
// gate is a no-op. The gate must exist in the project's protocol or its
// recorded gate set.
func Approve(root, projectID, gateID string) (*state.ProjectState, error) {
	statusPath, err := state.FindStatusFile(root, projectID)
	if err != nil {
		return nil, err
	}
	st, err := state.Read(statusPath)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, porcherr.NewNotFoundError("project", projectID)
	}

	if _, tracked := st.Gates[gateID]; !tracked {
		proto, err := protocol.Load(st.Protocol, root)
		if err != nil || proto.GateByID(gateID) == nil {
			return nil, fmt.Errorf("%w: %q (project %s)", porcherr.ErrGateUnknown, gateID, projectID)
		}
	}

	ns := state.ApproveGate(st, gateID)
	if err := state.Write(statusPath, ns); err != nil {
		return nil, err
	}
	return ns, nil
}

// StatusText returns the raw status file content for display.
func StatusText(root, projectID string) (string, error) {
	statusPath, err := state.FindStatusFile(root, projectID)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(statusPath)
	if err != nil {
		return "", err
	}
	return string(content), nil
}
