// Package session holds the local user and the mirror of every remote
// participant. It is owned by the reconciliation engine and must only be
// mutated from the engine's driver thread.
package session

import (
	"log/slog"
	"sort"

	"github.com/a-essam23/go-vrsync/pkg/spatial"
)

type Store struct {
	profile Profile
	local   LocalUser
	remotes map[string]*RemoteUser

	logger *slog.Logger
}

func NewStore(logger *slog.Logger, profile Profile) *Store {
	s := &Store{
		profile: profile,
		logger:  logger.With(slog.String("component", "session_store")),
	}
	s.Reset()
	return s
}

// Reset returns the store to its initial, offline state.
func (s *Store) Reset() {
	s.local = LocalUser{
		State:       Offline,
		DisplayName: s.profile.DisplayName,
		Color:       s.profile.Color,
		Handedness:  s.profile.Handedness,
		Transform: UserTransform{
			Head:                spatial.Identity(),
			PrimaryController:   spatial.Identity(),
			SecondaryController: spatial.Identity(),
		},
	}
	s.remotes = make(map[string]*RemoteUser)
}

// Local returns the live local user. Callers outside the engine treat it as read-only.
func (s *Store) Local() *LocalUser {
	return &s.local
}

func (s *Store) SetState(state ConnectionState) {
	if s.local.State != state {
		s.logger.Debug("Local state changed", slog.String("from", s.local.State.String()), slog.String("to", state.String()))
	}
	s.local.State = state
}

func (s *Store) Remote(userID string) (*RemoteUser, bool) {
	u, ok := s.remotes[userID]
	return u, ok
}

// RemoteUsers returns every remote participant ordered by id.
func (s *Store) RemoteUsers() []*RemoteUser {
	users := make([]*RemoteUser, 0, len(s.remotes))
	for _, u := range s.remotes {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
	return users
}

func (s *Store) RemoteCount() int {
	return len(s.remotes)
}

// ApplySelfConnecting records the id the server assigned. The caller replies
// with a connect request carrying the local display name.
func (s *Store) ApplySelfConnecting(assignedID string) {
	s.local.UserID = assignedID
	s.SetState(Connecting)
}

// ApplySelfConnected completes the handshake and materializes the roster.
// Entries equal to the local id and already-known users are skipped. The
// created users are returned in roster order.
func (s *Store) ApplySelfConnected(roster []RemoteUser) []*RemoteUser {
	s.SetState(Connected)
	created := make([]*RemoteUser, 0, len(roster))
	for _, entry := range roster {
		if u, ok := s.addRemote(entry); ok {
			created = append(created, u)
		}
	}
	s.logger.Info("Session joined", slog.String("userID", s.local.UserID), slog.Int("peers", len(s.remotes)))
	return created
}

// ApplyUserConnected adds one participant. It reports false when the id is
// empty, the local id, or already present.
func (s *Store) ApplyUserConnected(user RemoteUser) (*RemoteUser, bool) {
	return s.addRemote(user)
}

func (s *Store) addRemote(user RemoteUser) (*RemoteUser, bool) {
	if user.UserID == "" || user.UserID == s.local.UserID {
		return nil, false
	}
	if _, exists := s.remotes[user.UserID]; exists {
		s.logger.Debug("Ignoring duplicate remote user", slog.String("userID", user.UserID))
		return nil, false
	}
	if user.State != Spectating {
		user.State = Connected
	}
	u := &RemoteUser{
		UserID:        user.UserID,
		DisplayName:   user.DisplayName,
		Color:         user.Color,
		State:         user.State,
		Controllers:   user.Controllers,
		SpectatedUser: user.SpectatedUser,
	}
	mergeTransform(&u.Transform, user.Transform)
	s.remotes[u.UserID] = u
	s.logger.Debug("Remote user added", slog.String("userID", u.UserID), slog.String("name", u.DisplayName))
	return u, true
}

// ApplyUserDisconnected removes the participant and returns its last state.
func (s *Store) ApplyUserDisconnected(userID string) (*RemoteUser, bool) {
	u, ok := s.remotes[userID]
	if !ok {
		return nil, false
	}
	delete(s.remotes, userID)
	s.logger.Debug("Remote user removed", slog.String("userID", userID))
	return u, true
}

// ApplyUserTransformUpdate merges the non-nil parts of partial.
func (s *Store) ApplyUserTransformUpdate(userID string, partial RemoteTransform) bool {
	u, ok := s.remotes[userID]
	if !ok {
		return false
	}
	mergeTransform(&u.Transform, partial)
	return true
}

// ApplyControllerPresenceChange attaches the controllers in connects and
// detaches those in disconnects. A detached controller also loses its pose.
func (s *Store) ApplyControllerPresenceChange(userID string, connects ControllerChange, disconnects []Slot) (*RemoteUser, bool) {
	u, ok := s.remotes[userID]
	if !ok {
		return nil, false
	}
	for slot, model := range connects {
		u.Controllers.set(slot, true, model)
	}
	for _, slot := range disconnects {
		u.Controllers.set(slot, false, "")
		if slot == Secondary {
			u.Transform.SecondaryController = nil
		} else {
			u.Transform.PrimaryController = nil
		}
	}
	return u, true
}

// SetRemoteSpectating records whether userID is spectating target.
func (s *Store) SetRemoteSpectating(userID string, spectating bool, target string) (*RemoteUser, bool) {
	u, ok := s.remotes[userID]
	if !ok {
		return nil, false
	}
	if spectating {
		u.State = Spectating
		u.SpectatedUser = target
	} else {
		u.State = Connected
		u.SpectatedUser = ""
	}
	return u, true
}

// ClearSpectatorsOf ends every remote relation whose target is targetID and
// returns the affected spectators.
func (s *Store) ClearSpectatorsOf(targetID string) []*RemoteUser {
	var cleared []*RemoteUser
	for _, u := range s.RemoteUsers() {
		if u.State == Spectating && u.SpectatedUser == targetID {
			u.State = Connected
			u.SpectatedUser = ""
			cleared = append(cleared, u)
		}
	}
	return cleared
}

func (s *Store) SetLocalTransform(t UserTransform) {
	s.local.Transform = t
}

func (s *Store) SetLocalHead(p spatial.Pose) {
	s.local.Transform.Head = p
}

func (s *Store) SetLocalController(slot Slot, connected bool, model string) {
	s.local.Controllers.set(slot, connected, model)
}

func mergeTransform(dst *RemoteTransform, partial RemoteTransform) {
	if partial.Head != nil {
		p := *partial.Head
		dst.Head = &p
	}
	if partial.PrimaryController != nil {
		p := *partial.PrimaryController
		dst.PrimaryController = &p
	}
	if partial.SecondaryController != nil {
		p := *partial.SecondaryController
		dst.SecondaryController = &p
	}
}
