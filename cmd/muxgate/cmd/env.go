package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/rgoodwin/muxgate/bundle"
	"github.com/rgoodwin/muxgate/config"
	"github.com/rgoodwin/muxgate/ledger"
	"github.com/rgoodwin/muxgate/pki"
	"github.com/rgoodwin/muxgate/storage/fsrepo"
	"github.com/rgoodwin/muxgate/supervise"
)

// env wires the components over the configured roots. Every subcommand
// builds one and closes it when done.
type env struct {
	repo      *fsrepo.Repo
	led       *ledger.Bolt
	authority *pki.Authority
	cfg       *config.Store
	packager  *bundle.Packager
	sup       *supervise.Supervisor
	installer *supervise.Installer
	logPath   string
}

func buildEnv() (*env, error) {
	certsDir := filepath.Join(configRoot, "certs")
	repo, err := fsrepo.New(certsDir)
	if err != nil {
		return nil, fmt.Errorf("opening certificate store: %w", err)
	}
	led, err := ledger.OpenBolt(filepath.Join(certsDir, "index.db"))
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	cfg := config.NewStore(configRoot)
	logPath := filepath.Join(configRoot, "wezterm.log")
	pidPath := filepath.Join(runtimeRoot, "wezterm-mux-server.pid")

	return &env{
		repo:      repo,
		led:       led,
		authority: pki.New(repo, led),
		cfg:       cfg,
		packager:  bundle.New(repo, cfg),
		sup:       supervise.New(serverBin, pidPath, logPath, bootScript, cfg),
		installer: &supervise.Installer{Path: installerPath},
		logPath:   logPath,
	}, nil
}

func (e *env) Close() {
	e.led.Close()
}
