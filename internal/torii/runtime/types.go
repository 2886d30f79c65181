// Package runtime defines the module lifecycle and registry capabilities the
// agent exposes over a container engine, plus the domain types they exchange.
package runtime

import "time"

const (
	// OwnerLabelKey / OwnerLabelValue form the ownership label attached to
	// every container this agent creates. The pair is also the server-side
	// list filter, so only agent-owned containers ever surface as modules.
	OwnerLabelKey   = "net.azure-devices.edge.owner"
	OwnerLabelValue = "torii.edge.Agent"

	// DefaultStopGrace is how long the engine waits after a polite stop
	// signal before killing the container, when the caller gives no grace.
	DefaultStopGrace = 10 * time.Second

	// UnknownModuleName is the display name used when the engine reports a
	// container with no names.
	UnknownModuleName = "Unknown"
)

// ModuleStatus is the coarse lifecycle state observed for a module.
type ModuleStatus string

const (
	StatusUnknown ModuleStatus = "unknown"
	StatusRunning ModuleStatus = "running"
	StatusStopped ModuleStatus = "stopped"
	StatusFailed  ModuleStatus = "failed"
)

// CreateOptions is the engine-specific container-create parameter bag.
// Only the fields this agent reads or writes are modeled; everything else a
// caller wants to pass to the engine belongs to a layer above this one.
type CreateOptions struct {
	// Env holds "KEY=VALUE" entries. After Create's merge no two entries
	// share a KEY.
	Env []string `json:"env,omitempty"`
	// Labels are attached to the created container. The ownership label is
	// injected here, overwriting any caller-supplied value for its key.
	Labels map[string]string `json:"labels,omitempty"`
	// ImageID is the engine image digest, populated on modules returned by
	// List; it is never sent on create.
	ImageID string `json:"imageId,omitempty"`
}

// RegistryAuth is the credential descriptor for pulling from a private
// registry. It is serialized to JSON and base64-encoded into the engine's
// auth header.
type RegistryAuth struct {
	Username      string `json:"username,omitempty"`
	Password      string `json:"password,omitempty"`
	ServerAddress string `json:"serveraddress,omitempty"`
}

// EngineConfig describes the engine-facing half of a module: which image to
// run, how to create the container, and how to authenticate the pull.
type EngineConfig struct {
	Image         string        `json:"image"`
	CreateOptions CreateOptions `json:"createOptions,omitempty"`
	Auth          *RegistryAuth `json:"auth,omitempty"`
}

// ModuleSpec declares a module to be created. It is immutable once handed
// to Create.
type ModuleSpec struct {
	Name   string            `json:"name"`
	Type   string            `json:"type"`
	Config EngineConfig      `json:"config"`
	Env    map[string]string `json:"env,omitempty"`
}

// RuntimeState is a point-in-time snapshot of a module's state as reported
// by the engine. It is produced only by querying the engine; nothing in this
// package caches it between calls.
type RuntimeState struct {
	Status            ModuleStatus `json:"status"`
	StatusDescription string       `json:"statusDescription,omitempty"`
	ExitCode          int          `json:"exitCode"`
	Pid               int          `json:"pid,omitempty"`
	StartedAt         time.Time    `json:"startedAt,omitzero"`
	FinishedAt        time.Time    `json:"finishedAt,omitzero"`
	ImageID           string       `json:"imageId,omitempty"`
}

// LogOptions controls a Logs call.
type LogOptions struct {
	// Follow keeps the stream open, delivering new output as the module
	// produces it. Without it the stream ends at the current log tail.
	Follow bool `json:"follow"`
	// Tail limits output to the last N lines ("all" for everything).
	Tail string `json:"tail,omitempty"`
}

// SystemInfo reports the engine host's OS and architecture. Fields the
// engine leaves blank default to "Unknown" independently.
type SystemInfo struct {
	OSType       string `json:"osType"`
	Architecture string `json:"architecture"`
}
