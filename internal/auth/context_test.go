package auth

import (
	"context"
	"testing"
)

func TestWithCallerAndFromContext(t *testing.T) {
	ctx := WithCaller(context.Background(), Child(2, 7))
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected Caller in context")
	}
	if got.OwnerID != 2 {
		t.Errorf("OwnerID = %d, want 2", got.OwnerID)
	}
	if got.ChildID != 7 {
		t.Errorf("ChildID = %d, want 7", got.ChildID)
	}
	if !got.IsChild() || got.IsParent() {
		t.Errorf("role = %q, want child", got.Role)
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected false for missing Caller")
	}
}

func TestHelpersWithoutCaller(t *testing.T) {
	ctx := context.Background()
	if id := OwnerID(ctx); id != 0 {
		t.Errorf("OwnerID = %d, want 0", id)
	}
	if id := ChildID(ctx); id != 0 {
		t.Errorf("ChildID = %d, want 0", id)
	}
}

func TestParentCaller(t *testing.T) {
	c := Parent(5)
	if !c.IsParent() {
		t.Error("expected parent")
	}
	if c.IsChild() {
		t.Error("parent must not be a child")
	}
	if (Caller{Role: RoleParent}).IsParent() {
		t.Error("parent without owner id must not count as parent")
	}
}
