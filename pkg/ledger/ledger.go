// Package ledger tracks which applications are open, who holds them and who
// highlights which entity. Applications live in an arena keyed by id; the
// holder relation is a side table from user id to held application ids, so
// no entity points back at its holder.
package ledger

import (
	"log/slog"
	"sort"

	"github.com/a-essam23/go-vrsync/pkg/spatial"
)

type OpenApplication struct {
	ID   string
	Pose spatial.Pose
	// BoundBy is the user currently holding the application, empty if free.
	BoundBy        string
	BoundToPrimary bool
	// HolderOffset is the application pose in the holder controller frame.
	HolderOffset spatial.Pose
}

type entityKey struct {
	appID    string
	entityID string
}

type Ledger struct {
	apps       map[string]*OpenApplication
	holdings   map[string]map[string]struct{}
	highlights map[entityKey]*HighlightClaim

	landscape  Landscape
	systems    map[string]bool
	nodeGroups map[string]bool
	components map[string]*componentState

	logger *slog.Logger
}

func New(logger *slog.Logger) *Ledger {
	l := &Ledger{logger: logger.With(slog.String("component", "ledger"))}
	l.Reset()
	return l
}

// Reset forgets every application, claim and landscape state.
func (l *Ledger) Reset() {
	l.apps = make(map[string]*OpenApplication)
	l.holdings = make(map[string]map[string]struct{})
	l.highlights = make(map[entityKey]*HighlightClaim)
	l.landscape = Landscape{Pose: spatial.Identity()}
	l.systems = make(map[string]bool)
	l.nodeGroups = make(map[string]bool)
	l.components = make(map[string]*componentState)
}

// OpenApplication inserts the application unless it is already open.
func (l *Ledger) OpenApplication(id string, pose spatial.Pose) bool {
	if _, exists := l.apps[id]; exists {
		l.logger.Debug("Application already open", slog.String("appID", id))
		return false
	}
	l.apps[id] = &OpenApplication{ID: id, Pose: pose}
	return true
}

// CloseApplication removes the application together with its bind, its
// component state and every highlight claim on its entities.
func (l *Ledger) CloseApplication(id string) (*OpenApplication, bool) {
	app, ok := l.apps[id]
	if !ok {
		return nil, false
	}
	if app.BoundBy != "" {
		l.dropHolding(app.BoundBy, id)
	}
	delete(l.apps, id)
	delete(l.components, id)
	for key := range l.highlights {
		if key.appID == id {
			delete(l.highlights, key)
		}
	}
	return app, true
}

func (l *Ledger) Application(id string) (*OpenApplication, bool) {
	app, ok := l.apps[id]
	return app, ok
}

// Applications returns the open applications ordered by id.
func (l *Ledger) Applications() []*OpenApplication {
	apps := make([]*OpenApplication, 0, len(l.apps))
	for _, a := range l.apps {
		apps = append(apps, a)
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].ID < apps[j].ID })
	return apps
}

// BindApplication grants userID the hold on an open application. It is
// rejected when another user already holds it. The application takes pose
// and remembers its offset to holderPose so it can follow the controller.
func (l *Ledger) BindApplication(userID, id string, pose, holderPose spatial.Pose, toPrimary bool) bool {
	app, ok := l.apps[id]
	if !ok {
		return false
	}
	if app.BoundBy != "" && app.BoundBy != userID {
		l.logger.Debug("Bind rejected, application held",
			slog.String("appID", id),
			slog.String("holder", app.BoundBy),
			slog.String("requester", userID),
		)
		return false
	}
	app.BoundBy = userID
	app.BoundToPrimary = toPrimary
	app.Pose = pose
	app.HolderOffset = pose.RelativeTo(holderPose)

	held, ok := l.holdings[userID]
	if !ok {
		held = make(map[string]struct{})
		l.holdings[userID] = held
	}
	held[id] = struct{}{}
	return true
}

// ReleaseApplication clears the hold and places the application at pose.
// Holder checks are the caller's responsibility.
func (l *Ledger) ReleaseApplication(id string, pose spatial.Pose) bool {
	app, ok := l.apps[id]
	if !ok {
		return false
	}
	if app.BoundBy != "" {
		l.dropHolding(app.BoundBy, id)
	}
	app.BoundBy = ""
	app.BoundToPrimary = false
	app.HolderOffset = spatial.Pose{}
	app.Pose = pose
	return true
}

func (l *Ledger) HolderOf(id string) (string, bool) {
	app, ok := l.apps[id]
	if !ok || app.BoundBy == "" {
		return "", false
	}
	return app.BoundBy, true
}

// HeldBy lists the application ids held by userID, ordered.
func (l *Ledger) HeldBy(userID string) []string {
	held := l.holdings[userID]
	ids := make([]string, 0, len(held))
	for id := range held {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ReleaseAllBindings frees every application held by userID in place.
func (l *Ledger) ReleaseAllBindings(userID string) []string {
	ids := l.HeldBy(userID)
	for _, id := range ids {
		l.ReleaseApplication(id, l.apps[id].Pose)
	}
	return ids
}

// FollowHolder moves the applications userID holds with the given controller
// to follow its new pose and returns the ids that moved.
func (l *Ledger) FollowHolder(userID string, primary bool, controllerPose spatial.Pose) []string {
	var moved []string
	for _, id := range l.HeldBy(userID) {
		app := l.apps[id]
		if app.BoundToPrimary != primary {
			continue
		}
		app.Pose = controllerPose.Compose(app.HolderOffset)
		moved = append(moved, id)
	}
	return moved
}

func (l *Ledger) dropHolding(userID, id string) {
	held, ok := l.holdings[userID]
	if !ok {
		return
	}
	delete(held, id)
	if len(held) == 0 {
		delete(l.holdings, userID)
	}
}
