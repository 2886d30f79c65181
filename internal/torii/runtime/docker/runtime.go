// Package docker implements the runtime and registry capabilities against
// the Docker Engine HTTP API.
package docker

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	dockerclient "github.com/docker/docker/client"
	"github.com/rs/zerolog"

	"github.com/bdobrica/torii/internal/torii/runtime"
)

// ModuleType is the default module type tag this runtime creates. Create
// rejects specs carrying any other type before touching the engine.
const ModuleType = "docker"

// Runtime drives module lifecycle operations against a Docker Engine. It
// holds only connection configuration; module state always comes from the
// engine at query time. The value is safe for unsynchronized concurrent use.
type Runtime struct {
	client     *dockerclient.Client
	network    string
	moduleType string
	log        zerolog.Logger
}

// Option configures a Runtime at construction.
type Option func(*Runtime)

// WithNetwork sets the container network Init ensures exists. Without it
// Init is a no-op.
func WithNetwork(id string) Option {
	return func(r *Runtime) { r.network = id }
}

// WithModuleType overrides the module type tag Create accepts and listed
// modules report. Empty values keep the default.
func WithModuleType(t string) Option {
	return func(r *Runtime) {
		if t != "" {
			r.moduleType = t
		}
	}
}

// WithLogger sets the runtime's logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Runtime) { r.log = log }
}

// New creates a Runtime for the engine at the given endpoint. Local-socket
// endpoints (unix, npipe) address the engine through their filesystem path;
// network endpoints (tcp, http, https) address it by host. Any other scheme
// is rejected.
func New(endpoint string, opts ...Option) (*Runtime, error) {
	host, err := engineHost(endpoint)
	if err != nil {
		return nil, err
	}
	cli, err := dockerclient.NewClientWithOpts(
		dockerclient.WithHost(host),
		dockerclient.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	r := &Runtime{client: cli, moduleType: ModuleType, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// engineHost maps the configured endpoint onto the SDK host string. The
// SDK's transport reconstructs request targets consistently with the
// scheme, so the socket path is all a local endpoint needs.
func engineHost(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("engine endpoint %q: %v: %w", endpoint, err, runtime.ErrValidation)
	}
	switch u.Scheme {
	case "unix", "npipe":
		return u.Scheme + "://" + u.Path, nil
	case "tcp", "http", "https":
		// Network endpoints address the engine by host over TCP; the SDK
		// picks http or https according to its TLS configuration.
		return "tcp://" + u.Host, nil
	default:
		return "", fmt.Errorf("engine endpoint %q: unsupported scheme: %w", endpoint, runtime.ErrValidation)
	}
}

// Init ensures the configured container network exists. Idempotent: a
// second call with the same configuration finds the network and creates
// nothing.
func (r *Runtime) Init(ctx context.Context) error {
	if r.network == "" {
		return nil
	}
	r.log.Debug().Str("network", r.network).Msg("ensuring module network")

	nets, err := r.client.NetworkList(ctx, network.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", r.network)),
	})
	if err != nil {
		r.log.Warn().Err(err).Str("network", r.network).Msg("runtime init failed")
		return engineErr("list networks", err)
	}
	for _, n := range nets {
		// The name filter matches substrings; require an exact hit.
		if n.Name == r.network {
			return nil
		}
	}

	_, err = r.client.NetworkCreate(ctx, r.network, network.CreateOptions{
		Driver:     "bridge",
		Attachable: true,
		Labels:     map[string]string{runtime.OwnerLabelKey: runtime.OwnerLabelValue},
	})
	if err != nil {
		r.log.Warn().Err(err).Str("network", r.network).Msg("runtime init failed")
		return engineErr("create network "+r.network, err)
	}
	return nil
}

// Create creates (without starting) a container for spec.
func (r *Runtime) Create(ctx context.Context, spec runtime.ModuleSpec) error {
	if spec.Type != r.moduleType {
		return fmt.Errorf("module %q has type %q, supported type is %q: %w",
			spec.Name, spec.Type, r.moduleType, runtime.ErrValidation)
	}
	if err := ensureNotBlank(spec.Name); err != nil {
		return err
	}

	opts := spec.Config.CreateOptions
	labels := make(map[string]string, len(opts.Labels)+1)
	for k, v := range opts.Labels {
		labels[k] = v
	}
	labels[runtime.OwnerLabelKey] = runtime.OwnerLabelValue

	cfg := &container.Config{
		Image:  spec.Config.Image,
		Env:    mergeEnv(opts.Env, spec.Env),
		Labels: labels,
	}

	r.log.Debug().Str("module", spec.Name).Str("image", spec.Config.Image).Msg("creating container")

	// The container is not attached to the module network here; the agent
	// above this layer owns network membership, and only attaches modules
	// that did not ask for a network of their own.
	if _, err := r.client.ContainerCreate(ctx, cfg, nil, nil, nil, spec.Name); err != nil {
		r.log.Warn().Err(err).Str("module", spec.Name).Msg("could not create container")
		return engineErr("create container "+spec.Name, err)
	}
	return nil
}

// Start starts the identified module.
func (r *Runtime) Start(ctx context.Context, id string) error {
	if err := ensureNotBlank(id); err != nil {
		return err
	}
	r.log.Debug().Str("module", id).Msg("starting container")
	if err := r.client.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		r.log.Warn().Err(err).Str("module", id).Msg("could not start container")
		return engineErr("start container "+id, err)
	}
	return nil
}

// Stop stops the identified module. A nil grace means DefaultStopGrace;
// oversized values are clamped to the largest grace the engine accepts.
func (r *Runtime) Stop(ctx context.Context, id string, grace *time.Duration) error {
	if err := ensureNotBlank(id); err != nil {
		return err
	}
	secs := killGraceSeconds(grace)
	r.log.Debug().Str("module", id).Int("grace_seconds", secs).Msg("stopping container")
	if err := r.client.ContainerStop(ctx, id, container.StopOptions{Timeout: &secs}); err != nil {
		r.log.Warn().Err(err).Str("module", id).Msg("could not stop container")
		return engineErr("stop container "+id, err)
	}
	return nil
}

// Restart restarts the identified module with the default stop grace.
func (r *Runtime) Restart(ctx context.Context, id string) error {
	if err := ensureNotBlank(id); err != nil {
		return err
	}
	secs := killGraceSeconds(nil)
	r.log.Debug().Str("module", id).Msg("restarting container")
	if err := r.client.ContainerRestart(ctx, id, container.StopOptions{Timeout: &secs}); err != nil {
		r.log.Warn().Err(err).Str("module", id).Msg("could not restart container")
		return engineErr("restart container "+id, err)
	}
	return nil
}

// Remove force-removes the identified module, leaving volumes and links in
// place.
func (r *Runtime) Remove(ctx context.Context, id string) error {
	if err := ensureNotBlank(id); err != nil {
		return err
	}
	r.log.Debug().Str("module", id).Msg("removing container")
	err := r.client.ContainerRemove(ctx, id, container.RemoveOptions{
		Force:         true,
		RemoveVolumes: false,
		RemoveLinks:   false,
	})
	if err != nil {
		r.log.Warn().Err(err).Str("module", id).Msg("could not remove container")
		return engineErr("remove container "+id, err)
	}
	return nil
}

// List returns a snapshot of the modules this agent owns, selected by the
// ownership label on the engine side.
func (r *Runtime) List(ctx context.Context) ([]runtime.Module, error) {
	containers, err := r.client.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", runtime.OwnerLabelKey+"="+runtime.OwnerLabelValue),
		),
	})
	if err != nil {
		r.log.Warn().Err(err).Msg("could not list containers")
		return nil, engineErr("list containers", err)
	}

	modules := make([]runtime.Module, 0, len(containers))
	for _, c := range containers {
		name := runtime.UnknownModuleName
		if len(c.Names) > 0 {
			// The engine reports names with a leading separator.
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		modules = append(modules, &dockerModule{
			rt:   r,
			name: name,
			config: runtime.EngineConfig{
				Image: c.Image,
				CreateOptions: runtime.CreateOptions{
					Labels:  c.Labels,
					ImageID: c.ImageID,
				},
			},
		})
	}
	return modules, nil
}

// ListWithDetails streams (module, state) pairs for the current owned set,
// dropping modules deleted while the scan runs.
func (r *Runtime) ListWithDetails(ctx context.Context) <-chan runtime.ModuleDetail {
	return runtime.ListWithDetails(ctx, r)
}

// Logs opens the module's log stream.
func (r *Runtime) Logs(ctx context.Context, id string, options runtime.LogOptions) (io.ReadCloser, error) {
	if err := ensureNotBlank(id); err != nil {
		return nil, err
	}
	rc, err := r.client.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Timestamps: true,
		Follow:     options.Follow,
		Tail:       options.Tail,
	})
	if err != nil {
		r.log.Warn().Err(err).Str("module", id).Msg("could not get container logs")
		return nil, engineErr("logs for container "+id, err)
	}
	return rc, nil
}

// SystemInfo reports the engine host's OS type and architecture, defaulting
// each independently when the engine leaves it blank.
func (r *Runtime) SystemInfo(ctx context.Context) (runtime.SystemInfo, error) {
	info, err := r.client.Info(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("could not get engine system information")
		return runtime.SystemInfo{}, engineErr("system info", err)
	}
	return runtime.SystemInfo{
		OSType:       orUnknown(info.OSType),
		Architecture: orUnknown(info.Architecture),
	}, nil
}

// RemoveAll removes every owned module concurrently; all removals are
// awaited and the first error observed fails the call.
func (r *Runtime) RemoveAll(ctx context.Context) error {
	return runtime.RemoveAll(ctx, r)
}

// Registry returns the image capability backed by the same engine client.
func (r *Runtime) Registry() runtime.ModuleRegistry {
	return &imageRegistry{rt: r}
}

// --- helpers ---

// ensureNotBlank rejects identifiers that are empty after trimming, before
// any engine I/O happens.
func ensureNotBlank(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("identifier must not be empty or blank: %w", runtime.ErrValidation)
	}
	return nil
}

// mergeEnv merges pre-existing create-option env entries into the spec's
// env map. Spec entries win on key collision and no duplicate keys survive.
// Entry order is not significant.
func mergeEnv(cur []string, specEnv map[string]string) []string {
	merged := make(map[string]string, len(cur)+len(specEnv))
	for k, v := range specEnv {
		merged[k] = v
	}
	for _, entry := range cur {
		k, v, _ := strings.Cut(entry, "=")
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	env := make([]string, 0, len(merged))
	for k, v := range merged {
		env = append(env, k+"="+v)
	}
	return env
}

// killGraceSeconds converts an optional stop grace into the whole seconds
// the engine expects: nil means the default, oversized durations clamp to
// the maximum representable value instead of overflowing, and negative
// durations clamp to zero (a negative timeout tells the engine to wait
// forever).
func killGraceSeconds(grace *time.Duration) int {
	if grace == nil {
		return int(runtime.DefaultStopGrace.Seconds())
	}
	secs := int64(grace.Seconds())
	switch {
	case secs > math.MaxInt32:
		return math.MaxInt32
	case secs < 0:
		return 0
	}
	return int(secs)
}

// engineErr tags an engine failure with its error kind, preserving the
// underlying cause.
func engineErr(op string, err error) error {
	if dockerclient.IsErrNotFound(err) {
		return fmt.Errorf("%s: %w: %w", op, err, runtime.ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %w", op, err, runtime.ErrEngine)
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
