package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/linkhub/internal/domain"
	"github.com/MrSnakeDoc/linkhub/internal/logger"
)

// Creator creates profiles; *profiles.Store satisfies it.
type Creator interface {
	CreateProfile(ctx context.Context, username, ownerID string, theme domain.Theme, links []domain.LinkRecord) (domain.Profile, error)
}

// Result counts what an import did.
type Result struct {
	Created int
	Skipped int
}

// Import creates every profile whose username is still free.
// Taken usernames are skipped; existing profiles are never modified.
func Import(ctx context.Context, c Creator, profiles []Profile, log logger.Logger) (Result, error) {
	var res Result
	for _, p := range profiles {
		_, err := c.CreateProfile(ctx, p.Username, p.Owner, p.Theme, p.Links)
		switch {
		case err == nil:
			res.Created++
		case errors.Is(err, domain.ErrUsernameTaken):
			res.Skipped++
			log.Debug("seed profile already exists, skipping", logger.String("username", p.Username))
		default:
			return res, fmt.Errorf("failed to seed %s: %w", p.Username, err)
		}
	}
	return res, nil
}
