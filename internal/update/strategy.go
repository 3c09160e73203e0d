package update

import (
	"fmt"
	"os"
)

// Strategy performs the final executable replacement. Replace consumes the
// staged binary on success; on failure the target must be left intact.
type Strategy interface {
	Replace(target, staged string) error
}

// RenameStrategy replaces the target in place: the old binary is parked at
// target.old, the staged binary renamed over the target, and the park file
// removed once the swap succeeded. Works on platforms that allow replacing a
// running executable's path (Linux, macOS).
type RenameStrategy struct{}

func (RenameStrategy) Replace(target, staged string) error {
	backup := target + ".old"
	_ = os.Remove(backup) // stale park file from an interrupted run

	if err := os.Rename(target, backup); err != nil {
		return fmt.Errorf("park current binary: %w", err)
	}
	if err := os.Rename(staged, target); err != nil {
		// Roll back: the old binary goes back in place.
		if restoreErr := os.Rename(backup, target); restoreErr != nil {
			return fmt.Errorf("install failed (%v) and rollback failed: %w", err, restoreErr)
		}
		return fmt.Errorf("install new binary: %w", err)
	}
	_ = os.Remove(backup)
	return nil
}

// StagedStrategy defers the swap to the next process start: the staged
// binary is parked at target.new for a launcher or service manager to move
// into place. For platforms that forbid replacing a running executable.
type StagedStrategy struct{}

func (StagedStrategy) Replace(target, staged string) error {
	pending := target + ".new"
	if err := os.Rename(staged, pending); err != nil {
		return fmt.Errorf("stage pending binary: %w", err)
	}
	return nil
}
