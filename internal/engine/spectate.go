package engine

import (
	"log/slog"

	"github.com/a-essam23/go-vrsync/pkg/session"
	"github.com/a-essam23/go-vrsync/pkg/spatial"
	"github.com/a-essam23/go-vrsync/pkg/wire"
)

// ActivateSpectating makes the local head follow targetID's head. The
// target's avatar is hidden and the previous head pose is restored when
// spectating ends. Holding an application blocks spectating.
func (e *Engine) ActivateSpectating(targetID string) error {
	switch e.State() {
	case session.Connected:
	case session.Spectating:
		return ErrSpectating
	default:
		return ErrNotConnected
	}
	local := e.store.Local()
	if targetID == local.UserID {
		return ErrSpectateTarget
	}
	if _, ok := e.store.Remote(targetID); !ok {
		return ErrSpectateTarget
	}
	if len(e.ledger.HeldBy(local.UserID)) > 0 {
		return ErrHoldingApplication
	}

	e.preSpectate = local.Transform.Head
	e.spectateTarget = targetID
	e.store.SetState(session.Spectating)
	e.logger.Info("Spectating", slog.String("target", targetID))

	e.emit(ConnectionStateChanged{State: session.Spectating})
	e.emit(AvatarVisibilityChanged{UserID: targetID, Visible: false})
	e.channel.Enqueue(&wire.SpectatingUpdate{
		UserID:        wire.ID(local.UserID),
		IsSpectating:  true,
		SpectatedUser: wire.ID(targetID),
	})
	e.followSpectateTarget()
	return nil
}

// DeactivateSpectating ends spectating. It does nothing when not spectating.
func (e *Engine) DeactivateSpectating() {
	if e.State() != session.Spectating {
		return
	}
	e.stopSpectating()
}

func (e *Engine) stopSpectating() {
	target := e.spectateTarget
	e.spectateTarget = ""
	e.store.SetState(session.Connected)
	e.store.SetLocalHead(e.preSpectate)
	e.logger.Info("Stopped spectating", slog.String("target", target))

	e.emit(ConnectionStateChanged{State: session.Connected})
	if _, ok := e.store.Remote(target); ok {
		e.emit(AvatarVisibilityChanged{UserID: target, Visible: true})
	}
	e.emit(LocalUserMoved{Head: e.preSpectate})
	e.channel.Enqueue(&wire.SpectatingUpdate{
		UserID:       wire.ID(e.store.Local().UserID),
		IsSpectating: false,
	})
}

// followSpectateTarget copies the target's last known head pose onto the
// local head.
func (e *Engine) followSpectateTarget() {
	target, ok := e.store.Remote(e.spectateTarget)
	if !ok || target.Transform.Head == nil {
		return
	}
	head := *target.Transform.Head
	local := e.store.Local()
	if local.Transform.Head.ApproxEqual(head, spatial.DefaultEpsilon) {
		return
	}
	e.store.SetLocalHead(head)
	e.emit(LocalUserMoved{Head: head})
}
