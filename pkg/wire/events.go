package wire

import (
	"encoding/json"

	"github.com/a-essam23/go-vrsync/pkg/spatial"
)

// Event is one element of a wire batch. The set of implementations is closed;
// consumers switch on the concrete type.
type Event interface {
	Kind() Kind
	header() *Header
}

// Header carries the fields shared by every event.
type Header struct {
	Event Kind  `json:"event"`
	Time  int64 `json:"time"`
}

func (h *Header) header() *Header { return h }

// Pose is the wire form of a position plus quaternion.
type Pose struct {
	Position   [3]float32 `json:"position"`
	Quaternion [4]float32 `json:"quaternion"`
}

func (p Pose) Spatial() spatial.Pose {
	return spatial.PoseFromArrays(p.Position, p.Quaternion)
}

func PoseOf(p spatial.Pose) *Pose {
	return &Pose{Position: p.PositionArray(), Quaternion: p.QuaternionArray()}
}

// ControllerNames maps controller slots to the connected device model.
type ControllerNames struct {
	Controller1 string `json:"controller1,omitempty"`
	Controller2 string `json:"controller2,omitempty"`
}

// RosterUser describes a participant in the connect handshake.
type RosterUser struct {
	ID          ID               `json:"id"`
	Name        string           `json:"name"`
	Color       spatial.Color    `json:"color"`
	Controllers *ControllerNames `json:"controllers,omitempty"`
	Camera      *Pose            `json:"camera,omitempty"`
	Controller1 *Pose            `json:"controller1,omitempty"`
	Controller2 *Pose            `json:"controller2,omitempty"`
}

type ConnectRequest struct {
	Header
	Name string `json:"name"`
}

func (*ConnectRequest) Kind() Kind { return KindConnectRequest }

type SelfConnecting struct {
	Header
	ID ID `json:"id"`
}

func (*SelfConnecting) Kind() Kind { return KindSelfConnecting }

type SelfConnected struct {
	Header
	Self  *RosterUser  `json:"self,omitempty"`
	Users []RosterUser `json:"users"`
}

func (*SelfConnected) Kind() Kind { return KindSelfConnected }

type UserConnected struct {
	Header
	User RosterUser `json:"user"`
}

func (*UserConnected) Kind() Kind { return KindUserConnected }

type UserDisconnect struct {
	Header
	ID ID `json:"id"`
}

func (*UserDisconnect) Kind() Kind { return KindUserDisconnect }

// UserPositions is a sparse transform update; absent parts are unchanged.
type UserPositions struct {
	Header
	ID          ID    `json:"id,omitempty"`
	Camera      *Pose `json:"camera,omitempty"`
	Controller1 *Pose `json:"controller1,omitempty"`
	Controller2 *Pose `json:"controller2,omitempty"`
}

func (*UserPositions) Kind() Kind { return KindUserPositions }

type UserControllers struct {
	Header
	ID         ID               `json:"id,omitempty"`
	Connect    *ControllerNames `json:"connect,omitempty"`
	Disconnect []string         `json:"disconnect,omitempty"`
}

func (*UserControllers) Kind() Kind { return KindUserControllers }

type LandscapePosition struct {
	Header
	DeltaPosition [3]float32 `json:"deltaPosition"`
	Offset        [3]float32 `json:"offset"`
	Quaternion    [4]float32 `json:"quaternion"`
}

func (*LandscapePosition) Kind() Kind { return KindLandscapePosition }

type SystemUpdate struct {
	Header
	ID     ID   `json:"id"`
	IsOpen bool `json:"isOpen"`
}

func (*SystemUpdate) Kind() Kind { return KindSystemUpdate }

type NodeGroupUpdate struct {
	Header
	ID     ID   `json:"id"`
	IsOpen bool `json:"isOpen"`
}

func (*NodeGroupUpdate) Kind() Kind { return KindNodeGroupUpdate }

type AppOpened struct {
	Header
	ID         ID         `json:"id"`
	Position   [3]float32 `json:"position"`
	Quaternion [4]float32 `json:"quaternion"`
}

func (*AppOpened) Kind() Kind { return KindAppOpened }

type AppClosed struct {
	Header
	ID ID `json:"id"`
}

func (*AppClosed) Kind() Kind { return KindAppClosed }

type AppBinded struct {
	Header
	UserID               ID         `json:"userID,omitempty"`
	AppID                ID         `json:"appID"`
	AppPosition          [3]float32 `json:"appPosition"`
	AppQuaternion        [4]float32 `json:"appQuaternion"`
	IsBoundToController1 bool       `json:"isBoundToController1"`
	ControllerPosition   [3]float32 `json:"controllerPosition"`
	ControllerQuaternion [4]float32 `json:"controllerQuaternion"`
}

func (*AppBinded) Kind() Kind { return KindAppBinded }

type AppReleased struct {
	Header
	ID         ID         `json:"id"`
	Position   [3]float32 `json:"position"`
	Quaternion [4]float32 `json:"quaternion"`
}

func (*AppReleased) Kind() Kind { return KindAppReleased }

type ComponentUpdate struct {
	Header
	AppID        ID   `json:"appID"`
	ComponentID  ID   `json:"componentID"`
	IsOpened     bool `json:"isOpened"`
	IsFoundation bool `json:"isFoundation"`
}

func (*ComponentUpdate) Kind() Kind { return KindComponentUpdate }

type HighlightUpdate struct {
	Header
	UserID        ID            `json:"userID,omitempty"`
	AppID         ID            `json:"appID"`
	EntityID      ID            `json:"entityID"`
	IsHighlighted bool          `json:"isHighlighted"`
	Color         spatial.Color `json:"color"`
}

func (*HighlightUpdate) Kind() Kind { return KindHighlightUpdate }

type SpectatingUpdate struct {
	Header
	UserID        ID   `json:"userID,omitempty"`
	IsSpectating  bool `json:"isSpectating"`
	SpectatedUser ID   `json:"spectatedUser,omitempty"`
}

func (*SpectatingUpdate) Kind() Kind { return KindSpectatingUpdate }

type DisconnectRequest struct {
	Header
}

func (*DisconnectRequest) Kind() Kind { return KindDisconnectRequest }

// Ping is relayed back verbatim. Raw holds the object as received so unknown
// fields survive the round trip.
type Ping struct {
	Header
	Seq uint64          `json:"seq,omitempty"`
	Raw json.RawMessage `json:"-"`
}

func (*Ping) Kind() Kind { return KindPing }

type pingAlias Ping

func (p *Ping) UnmarshalJSON(b []byte) error {
	if err := json.Unmarshal(b, (*pingAlias)(p)); err != nil {
		return err
	}
	p.Raw = append(p.Raw[:0], b...)
	return nil
}

func (p *Ping) MarshalJSON() ([]byte, error) {
	if len(p.Raw) > 0 {
		return p.Raw, nil
	}
	return json.Marshal((*pingAlias)(p))
}
