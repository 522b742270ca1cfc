package reboot

import (
	"context"
	"testing"
)

func TestNoopHookRecordsInvocation(t *testing.T) {
	t.Parallel()

	h := &NoopHook{}
	if err := h.Reboot(context.Background()); err != nil {
		t.Fatalf("Reboot: %v", err)
	}
	if !h.Invoked {
		t.Fatal("expected Invoked to be true")
	}
}

func TestCommandHookWithoutNameErrors(t *testing.T) {
	t.Parallel()

	h := NewCommandHook("")
	if err := h.Reboot(context.Background()); err == nil {
		t.Fatal("expected error for empty command name")
	}
}
