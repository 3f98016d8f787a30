package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// NewIdentity returns a fresh installation identity. It seeds spawn points and
// is never used for authentication.
func NewIdentity() string {
	return "user_" + uuid.NewString()
}

// EnsureIdentity loads the stored identity, generating and persisting one on
// first run.
func EnsureIdentity(ctx context.Context, s IdentityStore) (id string, created bool, err error) {
	id, err = s.LoadIdentity(ctx)
	if err == nil && id != "" {
		return id, false, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", false, fmt.Errorf("loading identity: %w", err)
	}

	id = NewIdentity()
	if err := s.SaveIdentity(ctx, id); err != nil {
		return "", false, fmt.Errorf("saving identity: %w", err)
	}
	return id, true, nil
}
