package docker

import (
	"context"
	"strings"
	"time"

	"github.com/docker/docker/api/types"

	"github.com/bdobrica/torii/internal/torii/runtime"
)

// dockerModule is the engine-backed runtime.Module. It is an ephemeral
// snapshot produced by List; state queries always go back to the engine.
type dockerModule struct {
	rt     *Runtime
	name   string
	config runtime.EngineConfig
}

func (m *dockerModule) Name() string { return m.name }

func (m *dockerModule) Type() string { return m.rt.moduleType }

func (m *dockerModule) Config() runtime.EngineConfig { return m.config }

// RuntimeState inspects the container behind this module. A module deleted
// since the List snapshot yields an error wrapping runtime.ErrNotFound,
// which the detail scan filters out.
func (m *dockerModule) RuntimeState(ctx context.Context) (runtime.RuntimeState, error) {
	inspect, err := m.rt.client.ContainerInspect(ctx, m.name)
	if err != nil {
		m.rt.log.Warn().Err(err).Str("module", m.name).Msg("could not inspect container")
		return runtime.RuntimeState{}, engineErr("inspect container "+m.name, err)
	}
	return stateFromInspect(inspect), nil
}

func stateFromInspect(inspect types.ContainerJSON) runtime.RuntimeState {
	st := inspect.State
	if st == nil {
		return runtime.RuntimeState{Status: runtime.StatusUnknown, ImageID: inspect.Image}
	}

	// The engine reports zero timestamps as year-one RFC3339; parse
	// failures and zero values both end up as the zero time.
	startedAt, _ := time.Parse(time.RFC3339Nano, st.StartedAt)
	finishedAt, _ := time.Parse(time.RFC3339Nano, st.FinishedAt)

	description := st.Status
	if st.Error != "" {
		description = st.Error
	}

	return runtime.RuntimeState{
		Status:            parseModuleStatus(st.Status, st.ExitCode),
		StatusDescription: description,
		ExitCode:          st.ExitCode,
		Pid:               st.Pid,
		StartedAt:         startedAt,
		FinishedAt:        finishedAt,
		ImageID:           inspect.Image,
	}
}

// parseModuleStatus maps engine state strings onto the module status enum.
func parseModuleStatus(status string, exitCode int) runtime.ModuleStatus {
	switch strings.ToLower(status) {
	case "running", "paused", "restarting":
		return runtime.StatusRunning
	case "created":
		return runtime.StatusStopped
	case "exited", "dead", "removing":
		if exitCode == 0 {
			return runtime.StatusStopped
		}
		return runtime.StatusFailed
	default:
		return runtime.StatusUnknown
	}
}
