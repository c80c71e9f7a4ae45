package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryInterval = 50 * time.Millisecond

// Store persists Settings and keeps the derived daemon configuration
// consistent with them. Saves are all-or-nothing: validation happens before
// anything is written, and both files are replaced via tmp+rename under an
// advisory lock so a reader never observes saved settings paired with a stale
// derived file.
type Store struct {
	cfgPath  string
	luaPath  string
	certsDir string
	lock     *flock.Flock
}

// NewStore returns a Store rooted at configRoot, using the contract layout
// (wezterm.cfg, wezterm.lua, certs/).
func NewStore(configRoot string) *Store {
	return &Store{
		cfgPath:  filepath.Join(configRoot, "wezterm.cfg"),
		luaPath:  filepath.Join(configRoot, "wezterm.lua"),
		certsDir: filepath.Join(configRoot, "certs"),
		lock:     flock.New(filepath.Join(configRoot, ".wezterm.cfg.lock")),
	}
}

// LuaPath is the derived daemon configuration file path, passed to the server
// binary at launch.
func (st *Store) LuaPath() string {
	return st.luaPath
}

// Read returns the stored settings. It never fails: a missing or corrupt
// file yields defaults, field by field.
func (st *Store) Read() Settings {
	data, err := os.ReadFile(st.cfgPath)
	if err != nil {
		return Defaults()
	}
	return parse(data)
}

// Save validates the candidate, then persists it and regenerates the derived
// daemon configuration. On validation failure nothing is written and the
// error names the offending field.
func (st *Store) Save(ctx context.Context, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	ok, err := st.lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return fmt.Errorf("acquiring config lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("acquiring config lock: %w", ctx.Err())
	}
	defer st.lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(st.cfgPath), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := writeAtomic(st.cfgPath, s.encode(), 0o644); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	if err := writeAtomic(st.luaPath, GenerateLua(s, st.certsDir), 0o644); err != nil {
		return fmt.Errorf("regenerating daemon configuration: %w", err)
	}
	return nil
}

// EnsureDerived regenerates the derived daemon configuration if it is
// missing, from whatever settings are currently stored. The supervisor calls
// this before launching the daemon.
func (st *Store) EnsureDerived(ctx context.Context) error {
	if _, err := os.Stat(st.luaPath); err == nil {
		return nil
	}
	return st.Save(ctx, st.Read())
}

func writeAtomic(path string, data []byte, mode os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
