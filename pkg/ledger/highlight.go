package ledger

import (
	"errors"
	"log/slog"
	"sort"

	"github.com/a-essam23/go-vrsync/pkg/spatial"
)

var (
	ErrHighlightClaimed = errors.New("entity is highlighted by another user")
	ErrNotOpen          = errors.New("application is not open")
)

// HighlightClaim is one user's highlight on an application entity.
type HighlightClaim struct {
	UserID        string
	AppID         string
	EntityID      string
	Color         spatial.Color
	OriginalColor spatial.Color
}

// ClaimHighlight records userID's highlight on (appID, entityID). A claim held
// by another user is never overwritten; the request fails with
// ErrHighlightClaimed. Re-claiming by the same user only updates the color.
// Entities of an application that is not open cannot be claimed.
func (l *Ledger) ClaimHighlight(userID, appID, entityID string, color, original spatial.Color) error {
	if _, ok := l.apps[appID]; !ok {
		return ErrNotOpen
	}
	key := entityKey{appID: appID, entityID: entityID}
	if existing, ok := l.highlights[key]; ok {
		if existing.UserID != userID {
			l.logger.Debug("Highlight rejected",
				slog.String("appID", appID),
				slog.String("entityID", entityID),
				slog.String("owner", existing.UserID),
				slog.String("requester", userID),
			)
			return ErrHighlightClaimed
		}
		existing.Color = color
		return nil
	}
	l.highlights[key] = &HighlightClaim{
		UserID:        userID,
		AppID:         appID,
		EntityID:      entityID,
		Color:         color,
		OriginalColor: original,
	}
	return nil
}

// ReleaseHighlight drops userID's claim and returns the color to restore.
func (l *Ledger) ReleaseHighlight(userID, appID, entityID string) (spatial.Color, bool) {
	key := entityKey{appID: appID, entityID: entityID}
	claim, ok := l.highlights[key]
	if !ok || claim.UserID != userID {
		return spatial.Color{}, false
	}
	delete(l.highlights, key)
	return claim.OriginalColor, true
}

func (l *Ledger) Highlight(appID, entityID string) (*HighlightClaim, bool) {
	claim, ok := l.highlights[entityKey{appID: appID, entityID: entityID}]
	return claim, ok
}

// HighlightsBy lists userID's claims ordered by application then entity.
func (l *Ledger) HighlightsBy(userID string) []HighlightClaim {
	var claims []HighlightClaim
	for _, c := range l.highlights {
		if c.UserID == userID {
			claims = append(claims, *c)
		}
	}
	sort.Slice(claims, func(i, j int) bool {
		if claims[i].AppID != claims[j].AppID {
			return claims[i].AppID < claims[j].AppID
		}
		return claims[i].EntityID < claims[j].EntityID
	})
	return claims
}

// ReleaseAllHighlights drops every claim of userID and returns them so the
// caller can restore original colors.
func (l *Ledger) ReleaseAllHighlights(userID string) []HighlightClaim {
	claims := l.HighlightsBy(userID)
	for _, c := range claims {
		delete(l.highlights, entityKey{appID: c.AppID, entityID: c.EntityID})
	}
	return claims
}
