package engine

import (
	"github.com/a-essam23/go-vrsync/pkg/ledger"
	"github.com/a-essam23/go-vrsync/pkg/session"
	"github.com/a-essam23/go-vrsync/pkg/spatial"
)

// Notification tells the rendering side what changed. Inbound batches are
// delivered only after the whole batch has been applied.
type Notification interface {
	notification()
}

type ConnectionStateChanged struct{ State session.ConnectionState }

// SessionCleared follows a disconnect; every avatar, application and
// highlight previously announced is gone.
type SessionCleared struct{}

// UserMessage is a transient line for the user, e.g. "bob connected".
type UserMessage struct {
	UserID string
	Text   string
	Color  spatial.Color
}

type AvatarAdded struct{ User session.RemoteUser }

type AvatarRemoved struct{ UserID string }

type AvatarMoved struct {
	UserID    string
	Transform session.RemoteTransform
}

type AvatarVisibilityChanged struct {
	UserID  string
	Visible bool
}

type ControllerAttached struct {
	UserID string
	Slot   session.Slot
	Model  string
}

type ControllerDetached struct {
	UserID string
	Slot   session.Slot
}

// LocalUserMoved is emitted when the engine itself moves the local head,
// i.e. while spectating and when spectating ends.
type LocalUserMoved struct{ Head spatial.Pose }

type ApplicationOpened struct {
	AppID string
	Pose  spatial.Pose
}

type ApplicationClosed struct{ AppID string }

type ApplicationBound struct {
	AppID     string
	UserID    string
	Pose      spatial.Pose
	ToPrimary bool
}

type ApplicationReleased struct {
	AppID string
	Pose  spatial.Pose
}

type ApplicationMoved struct {
	AppID string
	Pose  spatial.Pose
}

type SystemToggled struct {
	SystemID string
	Open     bool
}

type NodeGroupToggled struct {
	NodeGroupID string
	Open        bool
}

type ComponentToggled struct {
	AppID       string
	ComponentID string
	Open        bool
	Foundation  bool
}

type EntityHighlighted struct {
	AppID    string
	EntityID string
	UserID   string
	Color    spatial.Color
}

type EntityUnhighlighted struct {
	AppID         string
	EntityID      string
	UserID        string
	OriginalColor spatial.Color
}

type LandscapeMoved struct{ Landscape ledger.Landscape }

func (ConnectionStateChanged) notification()  {}
func (SessionCleared) notification()          {}
func (UserMessage) notification()             {}
func (AvatarAdded) notification()             {}
func (AvatarRemoved) notification()           {}
func (AvatarMoved) notification()             {}
func (AvatarVisibilityChanged) notification() {}
func (ControllerAttached) notification()      {}
func (ControllerDetached) notification()      {}
func (LocalUserMoved) notification()          {}
func (ApplicationOpened) notification()       {}
func (ApplicationClosed) notification()       {}
func (ApplicationBound) notification()        {}
func (ApplicationReleased) notification()     {}
func (ApplicationMoved) notification()        {}
func (SystemToggled) notification()           {}
func (NodeGroupToggled) notification()        {}
func (ComponentToggled) notification()        {}
func (EntityHighlighted) notification()       {}
func (EntityUnhighlighted) notification()     {}
func (LandscapeMoved) notification()          {}
