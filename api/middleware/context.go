package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/avigneron/cavebox-backend/pkg/enums"
)

type contextKey string

const (
	ctxMemberID contextKey = "member_id"
	ctxRole     contextKey = "actor_role"
	ctxCaveID   contextKey = "cave_id"
)

func MemberIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxMemberID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

func RoleFromContext(ctx context.Context) enums.MemberRole {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(enums.MemberRole); ok {
		return v
	}
	return ""
}

func CaveIDFromContext(ctx context.Context) *uuid.UUID {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxCaveID).(uuid.UUID); ok {
		return &v
	}
	return nil
}

// WithMember injects the authenticated member into the context.
func WithMember(ctx context.Context, memberID uuid.UUID, role enums.MemberRole) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxMemberID, memberID)
	return context.WithValue(ctx, ctxRole, role)
}

// WithCave injects the owner's cave into the context.
func WithCave(ctx context.Context, caveID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxCaveID, caveID)
}
