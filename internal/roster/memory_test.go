package roster

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryRepository_Save(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	entry := NewEntry("10.0.0.1.alice")

	err := repo.Save(ctx, entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Verify it was saved
	saved, err := repo.FindByIPU(ctx, entry.IPU)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.IPU != entry.IPU {
		t.Errorf("expected IPU %s, got %s", entry.IPU, saved.IPU)
	}
}

func TestMemoryRepository_Save_Update(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	entry := NewEntry("10.0.0.1.alice")

	_ = repo.Save(ctx, entry)

	entry.Next = 5
	entry.IDs = []int64{1, 4}
	_ = repo.Save(ctx, entry)

	saved, _ := repo.FindByIPU(ctx, entry.IPU)
	if saved.Next != 5 {
		t.Errorf("expected next 5, got %d", saved.Next)
	}
	if len(saved.IDs) != 2 {
		t.Errorf("expected 2 ids, got %v", saved.IDs)
	}
}

func TestMemoryRepository_FindByIPU_NotFound(t *testing.T) {
	repo := NewMemoryRepository()

	_, err := repo.FindByIPU(context.Background(), "nonexistent")
	if !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestMemoryRepository_FindByIPU_ReturnsClone(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	entry := NewEntry("10.0.0.1.alice")
	entry.IDs = []int64{1, 2}
	_ = repo.Save(ctx, entry)

	found, _ := repo.FindByIPU(ctx, entry.IPU)
	found.IDs[0] = 99
	found.Next = 42

	original, _ := repo.FindByIPU(ctx, entry.IPU)
	if original.IDs[0] != 1 {
		t.Error("modifying returned ids should not affect repository")
	}
	if original.Next != 0 {
		t.Error("modifying returned entry should not affect repository")
	}
}

func TestMemoryRepository_Save_StoresClone(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	entry := NewEntry("10.0.0.1.alice")
	entry.IDs = []int64{3}
	_ = repo.Save(ctx, entry)

	entry.IDs[0] = 7

	saved, _ := repo.FindByIPU(ctx, entry.IPU)
	if saved.IDs[0] != 3 {
		t.Error("modifying saved entry should not affect repository")
	}
}

func TestMemoryRepository_List(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	for _, ipu := range []string{"b.user", "a.user", "c.user"} {
		_ = repo.Save(ctx, NewEntry(ipu))
	}

	entries, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, want := range []string{"a.user", "b.user", "c.user"} {
		if entries[i].IPU != want {
			t.Errorf("entries[%d] = %s, want %s", i, entries[i].IPU, want)
		}
	}
}

func TestMemoryRepository_List_Empty(t *testing.T) {
	repo := NewMemoryRepository()

	entries, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty list, got %d entries", len(entries))
	}
}
