package ports

import (
	"context"

	"github.com/lcalzada-xor/venuechat/internal/core/domain"
)

// IdentityVerifier checks tokens issued by the identity provider.
type IdentityVerifier interface {
	// VerifyToken validates a signed token and returns the mirrored user profile.
	VerifyToken(ctx context.Context, token string) (*domain.User, error)
}
