package docker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/image"

	"github.com/bdobrica/torii/internal/torii/runtime"
)

// imageRegistry is the engine-backed runtime.ModuleRegistry. It shares the
// Runtime's client and logger; Registry() hands one out per call.
type imageRegistry struct {
	rt *Runtime
}

// Pull fetches config.Image, sending config.Auth as the engine's
// base64-encoded JSON credential blob (empty when absent). The engine
// streams pull progress; the pull is only complete once that stream is
// drained.
func (ir *imageRegistry) Pull(ctx context.Context, config runtime.EngineConfig) error {
	auth := ""
	if config.Auth != nil {
		blob, err := json.Marshal(config.Auth)
		if err != nil {
			return fmt.Errorf("encode registry credentials: %w: %w", err, runtime.ErrSerialization)
		}
		auth = base64.URLEncoding.EncodeToString(blob)
	}

	ir.rt.log.Debug().Str("image", config.Image).Msg("pulling image")

	rc, err := ir.rt.client.ImagePull(ctx, config.Image, image.PullOptions{RegistryAuth: auth})
	if err != nil {
		ir.rt.log.Warn().Err(err).Str("image", config.Image).Msg("could not pull image")
		return engineErr("pull image "+config.Image, err)
	}
	defer rc.Close()

	if _, err := io.Copy(io.Discard, rc); err != nil {
		ir.rt.log.Warn().Err(err).Str("image", config.Image).Msg("image pull stream failed")
		return engineErr("pull image "+config.Image, err)
	}
	return nil
}

// Remove deletes the named image from the engine.
func (ir *imageRegistry) Remove(ctx context.Context, name string) error {
	if err := ensureNotBlank(name); err != nil {
		return err
	}
	ir.rt.log.Debug().Str("image", name).Msg("removing image")
	if _, err := ir.rt.client.ImageRemove(ctx, name, image.RemoveOptions{}); err != nil {
		ir.rt.log.Warn().Err(err).Str("image", name).Msg("could not remove image")
		return engineErr("remove image "+name, err)
	}
	return nil
}
