package state

import (
	"github.com/a-essam23/go-vrsync/pkg/transport"
	"github.com/google/uuid"
)

// Manager is the registry the relay needs. Implementations may offer more
// lookups for inspection.
type Manager interface {
	// --- Connection Lifecycle ---
	RegisterConnection(conn *transport.Connection, ipAddr string) (*Connection, error)
	// DeregisterConnection also removes the connection from its room.
	DeregisterConnection(connID uuid.UUID) error
	FindOldestUserConnection(userID string) (*Connection, bool)

	// --- User Management ---
	// links a connection to an account, creating the account if it doesn't exist.
	AssociateUser(connID uuid.UUID, userID string) (*User, error)
	GetUserConnectionCount(userID string) (int, error)
	GetAllUsers() ([]*User, error)

	// --- Room & Membership Management ---
	// adds a connection to a room, creating the room if it doesn't exist.
	Join(connID uuid.UUID, roomID string) (*Room, error)
	GetRoomMembers(roomID string) ([]*Connection, error)
}
