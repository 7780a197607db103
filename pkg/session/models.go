package session

import (
	"strings"

	"github.com/a-essam23/go-vrsync/pkg/spatial"
)

// ConnectionState is the local (or remote) position in the session lifecycle.
type ConnectionState int

const (
	Offline ConnectionState = iota
	Connecting
	Connected
	Spectating
)

func (s ConnectionState) String() string {
	switch s {
	case Offline:
		return "offline"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Spectating:
		return "spectating"
	default:
		return "unknown"
	}
}

// Handedness selects which physical controller is the primary one. The
// dominant hand holds the primary controller; see SlotFor.
type Handedness int

const (
	RightHanded Handedness = iota
	LeftHanded
)

func (h Handedness) String() string {
	if h == LeftHanded {
		return "left"
	}
	return "right"
}

func ParseHandedness(s string) Handedness {
	if strings.EqualFold(strings.TrimSpace(s), "left") {
		return LeftHanded
	}
	return RightHanded
}

// Hand is a physical hand as reported by the tracking runtime.
type Hand int

const (
	RightHand Hand = iota
	LeftHand
)

// SlotFor maps a physical hand to its controller slot.
func (h Handedness) SlotFor(hand Hand) Slot {
	if (h == LeftHanded) == (hand == LeftHand) {
		return Primary
	}
	return Secondary
}

// Slot names a controller. Primary travels as controller1 on the wire,
// secondary as controller2.
type Slot int

const (
	Primary Slot = iota
	Secondary
)

func (s Slot) String() string {
	if s == Secondary {
		return "secondary"
	}
	return "primary"
}

// ControllerPresence records which controllers are attached and their model.
type ControllerPresence struct {
	PrimaryConnected   bool
	SecondaryConnected bool
	PrimaryModel       string
	SecondaryModel     string
}

func (c ControllerPresence) Connected(slot Slot) bool {
	if slot == Secondary {
		return c.SecondaryConnected
	}
	return c.PrimaryConnected
}

func (c *ControllerPresence) set(slot Slot, connected bool, model string) {
	if !connected {
		model = ""
	}
	if slot == Secondary {
		c.SecondaryConnected, c.SecondaryModel = connected, model
		return
	}
	c.PrimaryConnected, c.PrimaryModel = connected, model
}

// UserTransform is the full tracked pose set of the local user.
type UserTransform struct {
	Head                spatial.Pose
	PrimaryController   spatial.Pose
	SecondaryController spatial.Pose
}

func (t UserTransform) Controller(slot Slot) spatial.Pose {
	if slot == Secondary {
		return t.SecondaryController
	}
	return t.PrimaryController
}

// Profile is the locally configured identity carried into every session.
type Profile struct {
	DisplayName string
	Color       spatial.Color
	Handedness  Handedness
}

type LocalUser struct {
	UserID      string
	State       ConnectionState
	DisplayName string
	Color       spatial.Color
	Handedness  Handedness
	Transform   UserTransform
	Controllers ControllerPresence
}

// RemoteTransform mirrors UserTransform; nil parts are unknown or detached.
type RemoteTransform struct {
	Head                *spatial.Pose
	PrimaryController   *spatial.Pose
	SecondaryController *spatial.Pose
}

type RemoteUser struct {
	UserID      string
	DisplayName string
	Color       spatial.Color
	State       ConnectionState
	Transform   RemoteTransform
	Controllers ControllerPresence
	// SpectatedUser is the target id while State is Spectating.
	SpectatedUser string
}

// ControllerChange lists controllers that attached, by slot, with model names.
type ControllerChange map[Slot]string
