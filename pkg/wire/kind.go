// Package wire defines the JSON batch format exchanged over the session
// channel. Every message is a JSON array of event objects; each object carries
// an "event" kind token and a sender-stamped "time" in epoch milliseconds.
package wire

// Kind is the literal "event" token of a wire event.
type Kind string

const (
	KindConnectRequest    Kind = "receive_connect_request"
	KindSelfConnecting    Kind = "receive_self_connecting"
	KindSelfConnected     Kind = "receive_self_connected"
	KindUserConnected     Kind = "receive_user_connected"
	KindUserDisconnect    Kind = "receive_user_disconnect"
	KindUserPositions     Kind = "receive_user_positions"
	KindUserControllers   Kind = "receive_user_controllers"
	KindLandscapePosition Kind = "receive_landscape_position"
	KindSystemUpdate      Kind = "receive_system_update"
	KindNodeGroupUpdate   Kind = "receive_nodegroup_update"
	KindAppOpened         Kind = "receive_app_opened"
	KindAppClosed         Kind = "receive_app_closed"
	KindAppBinded         Kind = "receive_app_binded"
	KindAppReleased       Kind = "receive_app_released"
	KindComponentUpdate   Kind = "receive_component_update"
	// spelling is part of the wire contract
	KindHighlightUpdate   Kind = "receive_hightlight_update"
	KindSpectatingUpdate  Kind = "receive_spectating_update"
	KindDisconnectRequest Kind = "receive_disconnect_request"
	KindPing              Kind = "receive_ping"
)

// Controller slot names used in receive_user_controllers.
const (
	Controller1 = "controller1"
	Controller2 = "controller2"
)

var factories = map[Kind]func() Event{
	KindConnectRequest:    func() Event { return &ConnectRequest{} },
	KindSelfConnecting:    func() Event { return &SelfConnecting{} },
	KindSelfConnected:     func() Event { return &SelfConnected{} },
	KindUserConnected:     func() Event { return &UserConnected{} },
	KindUserDisconnect:    func() Event { return &UserDisconnect{} },
	KindUserPositions:     func() Event { return &UserPositions{} },
	KindUserControllers:   func() Event { return &UserControllers{} },
	KindLandscapePosition: func() Event { return &LandscapePosition{} },
	KindSystemUpdate:      func() Event { return &SystemUpdate{} },
	KindNodeGroupUpdate:   func() Event { return &NodeGroupUpdate{} },
	KindAppOpened:         func() Event { return &AppOpened{} },
	KindAppClosed:         func() Event { return &AppClosed{} },
	KindAppBinded:         func() Event { return &AppBinded{} },
	KindAppReleased:       func() Event { return &AppReleased{} },
	KindComponentUpdate:   func() Event { return &ComponentUpdate{} },
	KindHighlightUpdate:   func() Event { return &HighlightUpdate{} },
	KindSpectatingUpdate:  func() Event { return &SpectatingUpdate{} },
	KindDisconnectRequest: func() Event { return &DisconnectRequest{} },
	KindPing:              func() Event { return &Ping{} },
}

// required lists the gjson paths an event must carry to be applied.
var required = map[Kind][]string{
	KindConnectRequest:    {"name"},
	KindSelfConnecting:    {"id"},
	KindSelfConnected:     {"users"},
	KindUserConnected:     {"user.id"},
	KindUserDisconnect:    {"id"},
	KindLandscapePosition: {"deltaPosition", "quaternion"},
	KindSystemUpdate:      {"id", "isOpen"},
	KindNodeGroupUpdate:   {"id", "isOpen"},
	KindAppOpened:         {"id", "position", "quaternion"},
	KindAppClosed:         {"id"},
	KindAppBinded:         {"appID", "appPosition", "appQuaternion"},
	KindAppReleased:       {"id", "position", "quaternion"},
	KindComponentUpdate:   {"appID", "componentID", "isOpened"},
	KindHighlightUpdate:   {"appID", "entityID", "isHighlighted"},
	KindSpectatingUpdate:  {"isSpectating"},
}

// Known reports whether k is part of the wire contract.
func Known(k Kind) bool {
	_, ok := factories[k]
	return ok
}
