package db

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	repo, err := NewRepository(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRepository_RecordAndList(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	inv := &Invocation{Resource: "fc1", Action: "start", Status: "success", DurationMS: 1200}
	if err := repo.Record(ctx, inv); err != nil {
		t.Fatalf("failed to record: %v", err)
	}
	if inv.ID == 0 {
		t.Error("ID should be assigned")
	}

	repo.Record(ctx, &Invocation{Resource: "fc1", Action: "stop", Status: "generic_error", ExitCode: 1, ErrorMessage: "busy"})
	repo.Record(ctx, &Invocation{Resource: "fc2", Action: "start", Status: "success"})

	all, err := repo.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 invocations, got %d", len(all))
	}
	if all[0].Resource != "fc2" {
		t.Errorf("expected newest first, got %s", all[0].Resource)
	}

	fc1, err := repo.List(ctx, "fc1", 1)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(fc1) != 1 || fc1[0].Action != "stop" || fc1[0].ErrorMessage != "busy" {
		t.Errorf("unexpected fc1 history: %+v", fc1)
	}
}

func TestRepository_RejectsUnknownAction(t *testing.T) {
	repo := newTestRepository(t)

	err := repo.Record(context.Background(), &Invocation{Resource: "fc1", Action: "monitor", Status: "success"})
	if err == nil {
		t.Error("monitor invocations must not be journaled")
	}
}
