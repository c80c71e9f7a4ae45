package supervise

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Installer delegates server installation to an external installer
// executable. The contract is argv plus exit code: the installer receives the
// requested version as its single argument, exit 0 means success, and
// combined stdout/stderr is the human-readable diagnostic either way.
type Installer struct {
	// Path to the installer executable; empty disables installation.
	Path string
}

// Install runs the installer for the requested version and returns its
// combined output. Sub-process failures are never swallowed: the output is
// part of the returned error.
func (i *Installer) Install(ctx context.Context, version string) (string, error) {
	if i.Path == "" {
		return "", fmt.Errorf("%w: no installer configured", ErrBinaryMissing)
	}
	if _, err := os.Stat(i.Path); err != nil {
		return "", fmt.Errorf("%w: %s", ErrBinaryMissing, i.Path)
	}

	out, err := exec.CommandContext(ctx, i.Path, version).CombinedOutput()
	output := strings.TrimSpace(string(out))
	if err != nil {
		return output, fmt.Errorf("installer failed: %w: %s", err, output)
	}
	return output, nil
}
