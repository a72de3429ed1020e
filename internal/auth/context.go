package auth

import "context"

type contextKey struct{}

type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

// Caller identifies who is acting. Parents carry their own id as OwnerID;
// children carry their id plus the id of the parent that owns them.
type Caller struct {
	OwnerID int64
	ChildID int64
	Role    Role
}

func (c Caller) IsParent() bool { return c.Role == RoleParent && c.OwnerID != 0 }

func (c Caller) IsChild() bool { return c.Role == RoleChild && c.ChildID != 0 }

func Parent(ownerID int64) Caller {
	return Caller{OwnerID: ownerID, Role: RoleParent}
}

func Child(ownerID, childID int64) Caller {
	return Caller{OwnerID: ownerID, ChildID: childID, Role: RoleChild}
}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

func FromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(contextKey{}).(Caller)
	return c, ok
}

func OwnerID(ctx context.Context) int64 {
	c, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return c.OwnerID
}

func ChildID(ctx context.Context) int64 {
	c, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return c.ChildID
}
