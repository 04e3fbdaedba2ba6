package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const (
	ownerIDKey   contextKey = "owner_id"
	keyPrefixKey contextKey = "key_prefix"
)

func SetOwnerID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ownerIDKey, id)
}

// GetOwnerID returns the authenticated caller's owner id, or nil for
// anonymous requests.
func GetOwnerID(r *http.Request) *uuid.UUID {
	id, ok := r.Context().Value(ownerIDKey).(uuid.UUID)
	if !ok {
		return nil
	}
	return &id
}

func setKeyPrefix(ctx context.Context, prefix string) context.Context {
	return context.WithValue(ctx, keyPrefixKey, prefix)
}

func getKeyPrefix(r *http.Request) (string, bool) {
	prefix, ok := r.Context().Value(keyPrefixKey).(string)
	return prefix, ok
}
