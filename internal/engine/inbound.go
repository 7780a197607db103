package engine

import (
	"fmt"
	"log/slog"

	"cogentcore.org/core/math32"
	"github.com/a-essam23/go-vrsync/internal/outbound"
	"github.com/a-essam23/go-vrsync/pkg/session"
	"github.com/a-essam23/go-vrsync/pkg/spatial"
	"github.com/a-essam23/go-vrsync/pkg/wire"
)

// applyBatch applies events in order. Notifications are held back until the
// batch is done; a disconnect caused by the batch drops the remaining events.
func (e *Engine) applyBatch(events []wire.Event) {
	epoch := e.epoch
	e.batching = true
	for i, ev := range events {
		if e.apply(ev) {
			eventsApplied.WithLabelValues(string(ev.Kind())).Inc()
		} else {
			eventsRejected.WithLabelValues(string(ev.Kind())).Inc()
		}
		if e.epoch != epoch {
			if rest := len(events) - i - 1; rest > 0 {
				e.logger.Debug("Dropping rest of batch after disconnect", slog.Int("events", rest))
			}
			break
		}
	}
	e.batching = false
	remoteUsers.Set(float64(e.store.RemoteCount()))
	e.flushNotifications()
}

// apply reports whether ev changed anything.
func (e *Engine) apply(ev wire.Event) bool {
	switch ev := ev.(type) {
	case *wire.SelfConnecting:
		return e.applySelfConnecting(ev)
	case *wire.SelfConnected:
		return e.applySelfConnected(ev)
	case *wire.UserConnected:
		return e.applyUserConnected(ev)
	case *wire.UserDisconnect:
		return e.applyUserDisconnect(ev)
	case *wire.UserPositions:
		return e.applyUserPositions(ev)
	case *wire.UserControllers:
		return e.applyUserControllers(ev)
	case *wire.LandscapePosition:
		l := e.ledger.MoveLandscape(vec3(ev.DeltaPosition), vec3(ev.Offset), quat(ev.Quaternion))
		e.emit(LandscapeMoved{Landscape: l})
		return true
	case *wire.SystemUpdate:
		e.ledger.SetSystemOpen(ev.ID.String(), ev.IsOpen)
		e.emit(SystemToggled{SystemID: ev.ID.String(), Open: ev.IsOpen})
		return true
	case *wire.NodeGroupUpdate:
		e.ledger.SetNodeGroupOpen(ev.ID.String(), ev.IsOpen)
		e.emit(NodeGroupToggled{NodeGroupID: ev.ID.String(), Open: ev.IsOpen})
		return true
	case *wire.AppOpened:
		return e.applyAppOpened(ev)
	case *wire.AppClosed:
		return e.applyAppClosed(ev)
	case *wire.AppBinded:
		return e.applyAppBinded(ev)
	case *wire.AppReleased:
		return e.applyAppReleased(ev)
	case *wire.ComponentUpdate:
		return e.applyComponentUpdate(ev)
	case *wire.HighlightUpdate:
		return e.applyHighlightUpdate(ev)
	case *wire.SpectatingUpdate:
		return e.applySpectatingUpdate(ev)
	case *wire.Ping:
		e.channel.Enqueue(ev)
		return true
	default:
		e.logger.Warn("Ignoring unexpected inbound event", slog.String("event", string(ev.Kind())))
		return false
	}
}

func (e *Engine) applySelfConnecting(ev *wire.SelfConnecting) bool {
	if e.State() != session.Connecting {
		e.logger.Warn("Ignoring self_connecting outside handshake", slog.String("state", e.State().String()))
		return false
	}
	e.store.ApplySelfConnecting(ev.ID.String())
	e.channel.Enqueue(&wire.ConnectRequest{Name: e.store.Local().DisplayName})
	return true
}

func (e *Engine) applySelfConnected(ev *wire.SelfConnected) bool {
	if e.State() != session.Connecting {
		e.logger.Warn("Ignoring self_connected outside handshake", slog.String("state", e.State().String()))
		return false
	}
	local := e.store.Local()
	if ev.Self != nil {
		if local.UserID == "" {
			local.UserID = ev.Self.ID.String()
		}
		local.Color = ev.Self.Color
	}
	roster := make([]session.RemoteUser, 0, len(ev.Users))
	for _, u := range ev.Users {
		roster = append(roster, rosterUser(u))
	}
	created := e.store.ApplySelfConnected(roster)
	e.emit(ConnectionStateChanged{State: session.Connected})
	for _, u := range created {
		e.emit(AvatarAdded{User: *u})
	}
	return true
}

func (e *Engine) applyUserConnected(ev *wire.UserConnected) bool {
	u, ok := e.store.ApplyUserConnected(rosterUser(ev.User))
	if !ok {
		return false
	}
	e.emit(AvatarAdded{User: *u})
	e.emit(UserMessage{UserID: u.UserID, Text: fmt.Sprintf("%s connected", u.DisplayName), Color: u.Color})
	return true
}

func (e *Engine) applyUserDisconnect(ev *wire.UserDisconnect) bool {
	id := ev.ID.String()
	if id != "" && id == e.store.Local().UserID {
		e.logger.Info("Server removed the local user")
		e.disconnect(nil)
		return true
	}
	if _, ok := e.store.Remote(id); !ok {
		return false
	}
	if e.spectateTarget == id {
		e.stopSpectating()
	}
	for _, claim := range e.ledger.ReleaseAllHighlights(id) {
		e.emit(EntityUnhighlighted{AppID: claim.AppID, EntityID: claim.EntityID, UserID: id, OriginalColor: claim.OriginalColor})
	}
	for _, appID := range e.ledger.ReleaseAllBindings(id) {
		if app, ok := e.ledger.Application(appID); ok {
			e.emit(ApplicationReleased{AppID: appID, Pose: app.Pose})
		}
	}
	for _, spectator := range e.store.ClearSpectatorsOf(id) {
		e.emit(AvatarVisibilityChanged{UserID: spectator.UserID, Visible: true})
	}
	u, _ := e.store.ApplyUserDisconnected(id)
	e.emit(AvatarRemoved{UserID: id})
	e.emit(UserMessage{UserID: id, Text: fmt.Sprintf("%s disconnected", u.DisplayName), Color: u.Color})
	return true
}

func (e *Engine) applyUserPositions(ev *wire.UserPositions) bool {
	id := ev.ID.String()
	partial := session.RemoteTransform{
		Head:                spatialOf(ev.Camera),
		PrimaryController:   spatialOf(ev.Controller1),
		SecondaryController: spatialOf(ev.Controller2),
	}
	if !e.store.ApplyUserTransformUpdate(id, partial) {
		return false
	}
	u, _ := e.store.Remote(id)
	e.emit(AvatarMoved{UserID: id, Transform: u.Transform})
	if partial.PrimaryController != nil {
		e.followHolder(id, true, *partial.PrimaryController)
	}
	if partial.SecondaryController != nil {
		e.followHolder(id, false, *partial.SecondaryController)
	}
	return true
}

func (e *Engine) applyUserControllers(ev *wire.UserControllers) bool {
	connects := session.ControllerChange{}
	if ev.Connect != nil {
		if ev.Connect.Controller1 != "" {
			connects[session.Primary] = ev.Connect.Controller1
		}
		if ev.Connect.Controller2 != "" {
			connects[session.Secondary] = ev.Connect.Controller2
		}
	}
	var disconnects []session.Slot
	for _, name := range ev.Disconnect {
		slot, ok := outbound.ParseSlot(name)
		if !ok {
			e.logger.Warn("Ignoring unknown controller name", slog.String("name", name))
			continue
		}
		disconnects = append(disconnects, slot)
	}
	id := ev.ID.String()
	if _, ok := e.store.ApplyControllerPresenceChange(id, connects, disconnects); !ok {
		return false
	}
	for _, slot := range []session.Slot{session.Primary, session.Secondary} {
		if model, ok := connects[slot]; ok {
			e.emit(ControllerAttached{UserID: id, Slot: slot, Model: model})
		}
	}
	for _, slot := range disconnects {
		e.emit(ControllerDetached{UserID: id, Slot: slot})
	}
	return true
}

func (e *Engine) applyAppOpened(ev *wire.AppOpened) bool {
	pose := spatial.PoseFromArrays(ev.Position, ev.Quaternion)
	if !e.ledger.OpenApplication(ev.ID.String(), pose) {
		return false
	}
	e.emit(ApplicationOpened{AppID: ev.ID.String(), Pose: pose})
	return true
}

func (e *Engine) applyAppClosed(ev *wire.AppClosed) bool {
	app, ok := e.ledger.CloseApplication(ev.ID.String())
	if !ok {
		return false
	}
	e.emit(ApplicationClosed{AppID: app.ID})
	return true
}

func (e *Engine) applyAppBinded(ev *wire.AppBinded) bool {
	userID := ev.UserID.String()
	if userID == "" {
		e.logger.Warn("Ignoring app_binded without a user", slog.String("appID", ev.AppID.String()))
		return false
	}
	appPose := spatial.PoseFromArrays(ev.AppPosition, ev.AppQuaternion)
	ctrlPose := spatial.PoseFromArrays(ev.ControllerPosition, ev.ControllerQuaternion)
	if !e.ledger.BindApplication(userID, ev.AppID.String(), appPose, ctrlPose, ev.IsBoundToController1) {
		return false
	}
	e.emit(ApplicationBound{AppID: ev.AppID.String(), UserID: userID, Pose: appPose, ToPrimary: ev.IsBoundToController1})
	return true
}

func (e *Engine) applyAppReleased(ev *wire.AppReleased) bool {
	id := ev.ID.String()
	if holder, held := e.ledger.HolderOf(id); held && holder == e.localID() {
		e.logger.Debug("Ignoring remote release of a locally held application", slog.String("appID", id))
		return false
	}
	pose := spatial.PoseFromArrays(ev.Position, ev.Quaternion)
	if !e.ledger.ReleaseApplication(id, pose) {
		return false
	}
	e.emit(ApplicationReleased{AppID: id, Pose: pose})
	return true
}

func (e *Engine) applyComponentUpdate(ev *wire.ComponentUpdate) bool {
	appID, componentID := ev.AppID.String(), ev.ComponentID.String()
	var ok bool
	if ev.IsFoundation {
		ok = e.ledger.SetFoundationOpen(appID, ev.IsOpened)
	} else {
		ok = e.ledger.SetComponentOpen(appID, componentID, ev.IsOpened)
	}
	if !ok {
		return false
	}
	e.emit(ComponentToggled{AppID: appID, ComponentID: componentID, Open: ev.IsOpened, Foundation: ev.IsFoundation})
	return true
}

func (e *Engine) applyHighlightUpdate(ev *wire.HighlightUpdate) bool {
	userID, appID, entityID := ev.UserID.String(), ev.AppID.String(), ev.EntityID.String()
	if userID == "" {
		e.logger.Warn("Ignoring highlight without a user", slog.String("entityID", entityID))
		return false
	}
	if !ev.IsHighlighted {
		original, ok := e.ledger.ReleaseHighlight(userID, appID, entityID)
		if !ok {
			return false
		}
		e.emit(EntityUnhighlighted{AppID: appID, EntityID: entityID, UserID: userID, OriginalColor: original})
		return true
	}
	if err := e.ledger.ClaimHighlight(userID, appID, entityID, ev.Color, e.originalColor(appID, entityID)); err != nil {
		e.logger.Debug("Rejected remote highlight", slog.String("userID", userID), slog.Any("error", err))
		return false
	}
	e.emit(EntityHighlighted{AppID: appID, EntityID: entityID, UserID: userID, Color: ev.Color})
	return true
}

func (e *Engine) applySpectatingUpdate(ev *wire.SpectatingUpdate) bool {
	id := ev.UserID.String()
	if _, ok := e.store.SetRemoteSpectating(id, ev.IsSpectating, ev.SpectatedUser.String()); !ok {
		return false
	}
	e.emit(AvatarVisibilityChanged{UserID: id, Visible: !ev.IsSpectating})
	return true
}

func (e *Engine) followHolder(userID string, primary bool, controller spatial.Pose) {
	for _, appID := range e.ledger.FollowHolder(userID, primary, controller) {
		if app, ok := e.ledger.Application(appID); ok {
			e.emit(ApplicationMoved{AppID: appID, Pose: app.Pose})
		}
	}
}

func rosterUser(u wire.RosterUser) session.RemoteUser {
	ru := session.RemoteUser{
		UserID:      u.ID.String(),
		DisplayName: u.Name,
		Color:       u.Color,
		Transform: session.RemoteTransform{
			Head:                spatialOf(u.Camera),
			PrimaryController:   spatialOf(u.Controller1),
			SecondaryController: spatialOf(u.Controller2),
		},
	}
	if c := u.Controllers; c != nil {
		ru.Controllers = session.ControllerPresence{
			PrimaryConnected:   c.Controller1 != "",
			PrimaryModel:       c.Controller1,
			SecondaryConnected: c.Controller2 != "",
			SecondaryModel:     c.Controller2,
		}
	}
	return ru
}

func spatialOf(p *wire.Pose) *spatial.Pose {
	if p == nil {
		return nil
	}
	s := p.Spatial()
	return &s
}

func vec3(a [3]float32) math32.Vector3 { return math32.Vec3(a[0], a[1], a[2]) }

func quat(a [4]float32) math32.Quat {
	return math32.Quat{X: a[0], Y: a[1], Z: a[2], W: a[3]}
}
