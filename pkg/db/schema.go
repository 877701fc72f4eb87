package db

// Schema defines the SQLite journal of state-changing agent invocations.
// Observations are never stored: the device-mapper table stays the source of
// truth for resource state.
const Schema = `
CREATE TABLE IF NOT EXISTS invocations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    resource TEXT NOT NULL,
    action TEXT NOT NULL CHECK(action IN ('start', 'stop', 'reload')),
    status TEXT NOT NULL,
    exit_code INTEGER NOT NULL,
    error_message TEXT,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_invocations_resource ON invocations(resource);
CREATE INDEX IF NOT EXISTS idx_invocations_created_at ON invocations(created_at);
`

// Invocation represents one journaled start, stop or reload
type Invocation struct {
	ID           int64
	Resource     string
	Action       string
	Status       string
	ExitCode     int
	ErrorMessage string
	DurationMS   int64
	CreatedAt    string
}
