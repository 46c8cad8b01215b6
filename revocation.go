package auth

import (
	"context"
	"time"
)

// RevocationList records refresh token ids that must no longer be
// accepted. Tokens are stateless, so without a list a logout only
// clears the client copy.
type RevocationList interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type noopRevocationList struct{}

func (noopRevocationList) Revoke(context.Context, string, time.Time) error {
	return nil
}

func (noopRevocationList) IsRevoked(context.Context, string) (bool, error) {
	return false, nil
}

func normalizeRevocationList(r RevocationList) RevocationList {
	if r == nil {
		return noopRevocationList{}
	}
	return r
}
