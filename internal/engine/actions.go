package engine

import (
	"log/slog"

	"cogentcore.org/core/math32"
	"github.com/a-essam23/go-vrsync/pkg/session"
	"github.com/a-essam23/go-vrsync/pkg/spatial"
	"github.com/a-essam23/go-vrsync/pkg/wire"
)

// OpenApplication opens id at pose and announces it. Opening an open
// application changes nothing and reports false.
func (e *Engine) OpenApplication(id string, pose spatial.Pose) (bool, error) {
	if err := e.requireSession(); err != nil {
		return false, err
	}
	if !e.ledger.OpenApplication(id, pose) {
		return false, nil
	}
	e.emit(ApplicationOpened{AppID: id, Pose: pose})
	e.channel.Enqueue(&wire.AppOpened{
		ID:         wire.ID(id),
		Position:   pose.PositionArray(),
		Quaternion: pose.QuaternionArray(),
	})
	return true, nil
}

// CloseApplication closes id unless another user holds it.
func (e *Engine) CloseApplication(id string) error {
	if err := e.requireSession(); err != nil {
		return err
	}
	if holder, held := e.ledger.HolderOf(id); held && holder != e.localID() {
		return ErrApplicationHeld
	}
	if _, ok := e.ledger.CloseApplication(id); !ok {
		return ErrUnknownApplication
	}
	e.emit(ApplicationClosed{AppID: id})
	e.channel.Enqueue(&wire.AppClosed{ID: wire.ID(id)})
	return nil
}

// BindApplication attaches id to one of the local controllers. The
// application keeps its current pose relative to that controller.
func (e *Engine) BindApplication(id string, slot session.Slot) error {
	if err := e.requireSession(); err != nil {
		return err
	}
	if e.State() == session.Spectating {
		return ErrSpectating
	}
	app, ok := e.ledger.Application(id)
	if !ok {
		return ErrUnknownApplication
	}
	local := e.store.Local()
	ctrl := local.Transform.Controller(slot)
	primary := slot == session.Primary
	if !e.ledger.BindApplication(local.UserID, id, app.Pose, ctrl, primary) {
		return ErrApplicationHeld
	}
	e.emit(ApplicationBound{AppID: id, UserID: local.UserID, Pose: app.Pose, ToPrimary: primary})
	e.channel.Enqueue(&wire.AppBinded{
		UserID:               wire.ID(local.UserID),
		AppID:                wire.ID(id),
		AppPosition:          app.Pose.PositionArray(),
		AppQuaternion:        app.Pose.QuaternionArray(),
		IsBoundToController1: primary,
		ControllerPosition:   ctrl.PositionArray(),
		ControllerQuaternion: ctrl.QuaternionArray(),
	})
	return nil
}

// ReleaseApplication drops the local hold on id where it currently is.
func (e *Engine) ReleaseApplication(id string) error {
	if err := e.requireSession(); err != nil {
		return err
	}
	if holder, held := e.ledger.HolderOf(id); !held || holder != e.localID() {
		return ErrNotHolder
	}
	e.release(id)
	return nil
}

func (e *Engine) release(id string) {
	app, _ := e.ledger.Application(id)
	pose := app.Pose
	e.ledger.ReleaseApplication(id, pose)
	e.emit(ApplicationReleased{AppID: id, Pose: pose})
	e.channel.Enqueue(&wire.AppReleased{
		ID:         wire.ID(id),
		Position:   pose.PositionArray(),
		Quaternion: pose.QuaternionArray(),
	})
}

func (e *Engine) SetSystemOpen(id string, open bool) error {
	if err := e.requireSession(); err != nil {
		return err
	}
	e.ledger.SetSystemOpen(id, open)
	e.emit(SystemToggled{SystemID: id, Open: open})
	e.channel.Enqueue(&wire.SystemUpdate{ID: wire.ID(id), IsOpen: open})
	return nil
}

func (e *Engine) SetNodeGroupOpen(id string, open bool) error {
	if err := e.requireSession(); err != nil {
		return err
	}
	e.ledger.SetNodeGroupOpen(id, open)
	e.emit(NodeGroupToggled{NodeGroupID: id, Open: open})
	e.channel.Enqueue(&wire.NodeGroupUpdate{ID: wire.ID(id), IsOpen: open})
	return nil
}

// UpdateComponent opens or closes a component of an open application. With
// foundation set, componentID names the foundation and every component
// follows it.
func (e *Engine) UpdateComponent(appID, componentID string, open, foundation bool) error {
	if err := e.requireSession(); err != nil {
		return err
	}
	var ok bool
	if foundation {
		ok = e.ledger.SetFoundationOpen(appID, open)
	} else {
		ok = e.ledger.SetComponentOpen(appID, componentID, open)
	}
	if !ok {
		return ErrUnknownApplication
	}
	e.emit(ComponentToggled{AppID: appID, ComponentID: componentID, Open: open, Foundation: foundation})
	e.channel.Enqueue(&wire.ComponentUpdate{
		AppID:        wire.ID(appID),
		ComponentID:  wire.ID(componentID),
		IsOpened:     open,
		IsFoundation: foundation,
	})
	return nil
}

// HighlightEntity claims or releases the local highlight on an entity. A
// claim held by someone else fails with ledger.ErrHighlightClaimed.
func (e *Engine) HighlightEntity(appID, entityID string, on bool) error {
	if err := e.requireSession(); err != nil {
		return err
	}
	local := e.store.Local()
	if on {
		if err := e.ledger.ClaimHighlight(local.UserID, appID, entityID, local.Color, e.originalColor(appID, entityID)); err != nil {
			return err
		}
		e.emit(EntityHighlighted{AppID: appID, EntityID: entityID, UserID: local.UserID, Color: local.Color})
	} else {
		original, ok := e.ledger.ReleaseHighlight(local.UserID, appID, entityID)
		if !ok {
			return ErrNotHighlighted
		}
		e.emit(EntityUnhighlighted{AppID: appID, EntityID: entityID, UserID: local.UserID, OriginalColor: original})
	}
	e.channel.Enqueue(&wire.HighlightUpdate{
		UserID:        wire.ID(local.UserID),
		AppID:         wire.ID(appID),
		EntityID:      wire.ID(entityID),
		IsHighlighted: on,
		Color:         local.Color,
	})
	return nil
}

// MoveLandscape shifts the landscape by delta and sets its offset and
// orientation.
func (e *Engine) MoveLandscape(delta, offset math32.Vector3, orientation math32.Quat) error {
	if err := e.requireSession(); err != nil {
		return err
	}
	l := e.ledger.MoveLandscape(delta, offset, orientation)
	e.emit(LandscapeMoved{Landscape: l})
	e.channel.Enqueue(&wire.LandscapePosition{
		DeltaPosition: [3]float32{delta.X, delta.Y, delta.Z},
		Offset:        [3]float32{offset.X, offset.Y, offset.Z},
		Quaternion:    [4]float32{orientation.X, orientation.Y, orientation.Z, orientation.W},
	})
	return nil
}

// UpdateLocalTransform records the tracked device poses. Applications held
// by the local user follow their controller. While spectating the head is
// driven by the target and t.Head is ignored.
func (e *Engine) UpdateLocalTransform(t session.UserTransform) {
	local := e.store.Local()
	if e.State() == session.Spectating {
		t.Head = local.Transform.Head
	}
	e.store.SetLocalTransform(t)
	if id := local.UserID; id != "" {
		if local.Controllers.PrimaryConnected {
			e.followHolder(id, true, t.PrimaryController)
		}
		if local.Controllers.SecondaryConnected {
			e.followHolder(id, false, t.SecondaryController)
		}
	}
}

// HandSlot returns the controller slot the local user's hand drives.
func (e *Engine) HandSlot(hand session.Hand) session.Slot {
	return e.store.Local().Handedness.SlotFor(hand)
}

// SetHandControllerConnected is SetControllerConnected for a physical hand,
// resolved through the configured handedness.
func (e *Engine) SetHandControllerConnected(hand session.Hand, connected bool, model string) {
	e.SetControllerConnected(e.HandSlot(hand), connected, model)
}

// SetControllerConnected records a local controller being attached or
// detached. Applications bound to a detached controller are released.
func (e *Engine) SetControllerConnected(slot session.Slot, connected bool, model string) {
	local := e.store.Local()
	if local.Controllers.Connected(slot) == connected {
		return
	}
	e.store.SetLocalController(slot, connected, model)
	e.scheduler.StageController(slot, connected, model)
	e.logger.Debug("Local controller changed", slog.String("slot", slot.String()), slog.Bool("connected", connected))
	if connected || local.UserID == "" {
		return
	}
	for _, id := range e.ledger.HeldBy(local.UserID) {
		if app, ok := e.ledger.Application(id); ok && app.BoundToPrimary == (slot == session.Primary) {
			e.release(id)
		}
	}
}
