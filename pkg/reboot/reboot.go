// Package reboot abstracts how the device restarts itself after an update,
// so the orchestrator never shells out directly and tests never reboot the
// machine running them.
package reboot

import (
	"context"
	"fmt"
	"os/exec"
)

// Hook performs (or simulates) a device reboot.
type Hook interface {
	Reboot(ctx context.Context) error
}

// NoopHook never reboots; it records that it was asked to. Useful for
// development images and for operations that must never take the device
// down, such as a true no-op update.
type NoopHook struct {
	Invoked bool
}

func (h *NoopHook) Reboot(ctx context.Context) error {
	h.Invoked = true
	return nil
}

// CommandHook reboots by running an external command, e.g. "systemctl
// reboot" or "reboot". It is the production default.
type CommandHook struct {
	Name string
	Args []string
}

// NewCommandHook builds a Hook around an argv-style command line. An empty
// name yields a Hook that errors when invoked, rather than silently doing
// nothing in production.
func NewCommandHook(name string, args ...string) CommandHook {
	return CommandHook{Name: name, Args: args}
}

func (h CommandHook) Reboot(ctx context.Context) error {
	if h.Name == "" {
		return fmt.Errorf("reboot: no reboot command configured")
	}
	cmd := exec.CommandContext(ctx, h.Name, h.Args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("reboot: run %s: %w", h.Name, err)
	}
	return nil
}
