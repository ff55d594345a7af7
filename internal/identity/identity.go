// Package identity resolves bearer credentials to platform users.
package identity

import (
	"context"
	"errors"

	"github.com/wishory-lab/aiworkground/internal/store"
)

var ErrUnauthorized = errors.New("unauthorized")

// Resolver turns a raw credential into a verified user.
type Resolver interface {
	ResolveCaller(ctx context.Context, credential string) (*store.User, error)
}

// StoreResolver looks the credential up as an API token in the user
// table.
type StoreResolver struct {
	store *store.Store
}

func NewStoreResolver(st *store.Store) *StoreResolver {
	return &StoreResolver{store: st}
}

func (r *StoreResolver) ResolveCaller(ctx context.Context, credential string) (*store.User, error) {
	if credential == "" {
		return nil, ErrUnauthorized
	}
	u, err := r.store.GetUserByToken(ctx, credential)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}
