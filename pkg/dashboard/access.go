package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/dbx"
)

// ErrNoAccess is returned by AccessLevelFor when the user has neither
// ownership nor a non-expired share row.
type noAccessError struct{}

func (noAccessError) Error() string { return "dashboard: user has no access" }

var ErrNoAccess error = noAccessError{}

// AccessLevelFor resolves a user's effective access level on a dashboard:
// owner (creator) takes precedence, otherwise the non-expired share row
// applies (spec.md 4.9: "owner (creator), admin|edit|read (via share
// rows; non-expired only)").
func AccessLevelFor(ctx context.Context, store Store, tx dbx.DBTX, d Dashboard, userID uuid.UUID, now time.Time) (AccessLevel, error) {
	if d.OwnerUserID == userID {
		return AccessOwner, nil
	}

	share, found, err := store.ShareFor(ctx, tx, d.ID, userID)
	if err != nil {
		return "", err
	}
	if !found || share.Expired(now) {
		return "", ErrNoAccess
	}
	return share.AccessLevel, nil
}
