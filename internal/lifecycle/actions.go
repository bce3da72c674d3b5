package lifecycle

import (
	"context"
	"fmt"
)

// ActionResetProcessing clears contents-derived fields so the record is
// processed again.
var ActionResetProcessing = &Action{
	Name: "resetProcessing",
	Run: func(_ context.Context, t *Transition) error {
		t.Record.ResetProcessing()
		return nil
	},
}

// ActionClearMetadata removes descriptive metadata.
var ActionClearMetadata = &Action{
	Name: "clearMetadata",
	Run: func(_ context.Context, t *Transition) error {
		t.Record.ClearMetadata()
		return nil
	},
}

// ActionMarkRecreating flags the record for archive recreation.
var ActionMarkRecreating = &Action{
	Name: "markRecreating",
	Run: func(_ context.Context, t *Transition) error {
		t.Record.Recreating = true
		return nil
	},
}

// ActionApplyFilename points the record at its consolidation target and
// publishes the target in the targetFilename header.
var ActionApplyFilename = &Action{
	Name: "applyFilename",
	Run: func(_ context.Context, t *Transition) error {
		target, err := ResolveTarget(t)
		if err != nil {
			return fmt.Errorf("resolve target: %w", err)
		}
		t.Record.Filename = target
		t.Headers[HeaderTargetFilename] = target
		return nil
	},
}

// ActionSetMissing flags the record's file as missing.
var ActionSetMissing = &Action{
	Name: "setMissing",
	Run: func(_ context.Context, t *Transition) error {
		t.Record.Missing = true
		return nil
	},
}

// ActionClearMissing clears the missing flag.
var ActionClearMissing = &Action{
	Name: "clearMissing",
	Run: func(_ context.Context, t *Transition) error {
		t.Record.Missing = false
		return nil
	},
}
