package commands

import (
	"os"
	"path/filepath"

	"github.com/fly-io/flashcache-agent/pkg/errors"
)

// ensureDirectories creates the durable state directory and the journal's
// parent directory. Empty arguments are skipped.
func ensureDirectories(stateDir, journalPath string) error {
	if stateDir != "" {
		if err := os.MkdirAll(stateDir, 0700); err != nil {
			return errors.Wrap(err, "failed to create state directory")
		}
	}

	if journalPath != "" {
		if err := os.MkdirAll(filepath.Dir(journalPath), 0755); err != nil {
			return errors.Wrap(err, "failed to create journal directory")
		}
	}

	return nil
}
