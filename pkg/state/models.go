package state

import (
	"sync"
	"time"

	"github.com/a-essam23/go-vrsync/pkg/spatial"
	"github.com/a-essam23/go-vrsync/pkg/transport"
	"github.com/a-essam23/go-vrsync/pkg/wire"
	"github.com/google/uuid"
)

// representation of a single relay participant: one socket, one avatar.
type Connection struct {
	ID        uuid.UUID
	IPAddress string
	Transport *transport.Connection // The actual connection for sending messages
	User      *User                 // Pointer to the owning account (nil until associated)
	Room      string
	CreatedAt time.Time

	mu     sync.RWMutex
	avatar Avatar
}

// Avatar is what the relay remembers about a participant so late joiners
// receive it in their roster.
type Avatar struct {
	Name        string
	Color       spatial.Color
	Joined      bool // connect_request received
	Controllers wire.ControllerNames
	Camera      *wire.Pose
	Controller1 *wire.Pose
	Controller2 *wire.Pose
}

// Avatar returns a copy of the participant's avatar.
func (c *Connection) Avatar() Avatar {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.avatar
}

// UpdateAvatar applies fn under the connection's lock.
func (c *Connection) UpdateAvatar(fn func(a *Avatar)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.avatar)
}

// Roster renders the participant as a roster entry.
func (c *Connection) Roster() wire.RosterUser {
	a := c.Avatar()
	u := wire.RosterUser{
		ID:          wire.ID(c.ID.String()),
		Name:        a.Name,
		Color:       a.Color,
		Camera:      a.Camera,
		Controller1: a.Controller1,
		Controller2: a.Controller2,
	}
	if a.Controllers != (wire.ControllerNames{}) {
		names := a.Controllers
		u.Controllers = &names
	}
	return u
}

// canonical representation of an account, aggregating all its connections.
// Accounts come from the auth token subject, or the client IP when auth is off.
type User struct {
	ID          string
	Connections map[uuid.UUID]*Connection // All active connections for this account
}

// canonical representation of a shared session.
type Room struct {
	ID      string
	Members map[uuid.UUID]*Connection // All participants in this room, keyed by connection ID
}
