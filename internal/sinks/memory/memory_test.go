package memory

import (
	"context"
	"testing"

	"expenso/internal/core"
)

func expense(id string, cents int64) core.Expense {
	return core.Expense{ID: id, Name: "item " + id, Amount: core.Cents(cents), Date: core.NewDate(2024, 3, 1)}
}

func TestStoreAppendDeleteResync(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.Append(ctx, "u1", expense("a", 100)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(ctx, "u1", expense("b", 200)); err != nil {
		t.Fatalf("append: %v", err)
	}
	// replay replaces instead of duplicating
	if err := s.Append(ctx, "u1", expense("a", 150)); err != nil {
		t.Fatalf("append: %v", err)
	}
	got := s.Expenses("u1")
	if len(got) != 2 || got[0].Amount.Cents != 150 {
		t.Fatalf("unexpected items after append: %+v", got)
	}
	if len(s.Expenses("u2")) != 0 {
		t.Fatal("users must not see each other's rows")
	}

	if err := s.Delete(ctx, "u1", "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "u1", "missing"); err != nil {
		t.Fatalf("delete of unknown id should be a no-op: %v", err)
	}
	if got := s.Expenses("u1"); len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("unexpected items after delete: %+v", got)
	}

	if err := s.Resync(ctx, "u1", []core.Expense{expense("c", 1), expense("d", 2)}); err != nil {
		t.Fatalf("resync: %v", err)
	}
	if got := s.Expenses("u1"); len(got) != 2 || got[0].ID != "c" {
		t.Fatalf("unexpected items after resync: %+v", got)
	}
	if err := s.Resync(ctx, "u1", nil); err != nil {
		t.Fatalf("resync: %v", err)
	}
	if len(s.Expenses("u1")) != 0 {
		t.Fatal("empty resync should clear the user")
	}
}

func TestStoreRejectsInvalid(t *testing.T) {
	s := New()
	if err := s.Append(context.Background(), "u1", core.Expense{ID: "x"}); err == nil {
		t.Fatal("expected validation error")
	}
}
