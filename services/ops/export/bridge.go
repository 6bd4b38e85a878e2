// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LegacyBridge delivers export payloads to the downstream billing
// system. Submit must respect ctx: the engine bounds every call with
// the configured timeout. A nil error means the downstream acknowledged
// the artifact.
type LegacyBridge interface {
	Submit(ctx context.Context, artifactID string, payload []byte) error

	// Name identifies the bridge in errors and logs.
	Name() string
}

// FileBridge is the default bridge: it drops each artifact as a JSON
// file into a directory watched by the legacy import job.
type FileBridge struct {
	dir string
}

// NewFileBridge creates a FileBridge writing into dir.
func NewFileBridge(dir string) *FileBridge {
	return &FileBridge{dir: dir}
}

// Name implements LegacyBridge.
func (b *FileBridge) Name() string { return "file" }

// Submit writes the payload to <dir>/<artifactID>.json. The write goes
// through a temp file and rename so the import job never reads a
// partial artifact.
func (b *FileBridge) Submit(ctx context.Context, artifactID string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(b.dir, 0750); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	final := filepath.Join(b.dir, artifactID+".json")
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, payload, 0640); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("publish artifact: %w", err)
	}
	return nil
}
