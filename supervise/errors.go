package supervise

import "errors"

var (
	// ErrBinaryMissing is returned when the supervised executable is absent
	// or not executable.
	ErrBinaryMissing = errors.New("server binary is missing or not executable")

	// ErrStartFailed is returned when no live process is found after the
	// start poll window. The wrapped message carries captured output.
	ErrStartFailed = errors.New("server failed to start")

	// ErrStopFailed is returned only when the process survives the forceful
	// kill.
	ErrStopFailed = errors.New("server failed to stop")
)
