package supervise

import (
	"fmt"
	"os"
	"strings"
)

// autostartMarker tags the managed line in the boot script so repeated
// toggles never duplicate it and manual edits elsewhere are left alone.
const autostartMarker = "# managed by muxgate"

// ensureBootLine makes the managed start line present or absent in the boot
// script. The script is an external collaborator: everything except the
// managed line is preserved byte for byte.
func ensureBootLine(path, line string, present bool) error {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	var kept []string
	removed := false
	for _, l := range strings.Split(string(data), "\n") {
		if strings.HasSuffix(l, autostartMarker) {
			removed = true
			continue
		}
		kept = append(kept, l)
	}
	// Removing a line that was never there must not touch (or create) the
	// script.
	if !present && !removed {
		return nil
	}
	// Drop the trailing empty element from the final newline, if any.
	for len(kept) > 0 && kept[len(kept)-1] == "" {
		kept = kept[:len(kept)-1]
	}
	if len(kept) == 0 {
		kept = []string{"#!/bin/sh"}
	}
	if present {
		kept = append(kept, fmt.Sprintf("%s %s", line, autostartMarker))
	}

	content := strings.Join(kept, "\n") + "\n"
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o755); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
