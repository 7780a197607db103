package ledger

import (
	"cogentcore.org/core/math32"
	"github.com/a-essam23/go-vrsync/pkg/spatial"
)

// Landscape is the shared placement of the software landscape.
type Landscape struct {
	Pose   spatial.Pose
	Offset math32.Vector3
}

type componentState struct {
	foundationOpen bool
	overrides      map[string]bool
}

// MoveLandscape shifts the landscape by delta and adopts the given offset and
// orientation.
func (l *Ledger) MoveLandscape(delta, offset math32.Vector3, orientation math32.Quat) Landscape {
	l.landscape.Pose.Position = l.landscape.Pose.Position.Add(delta)
	l.landscape.Pose.Quaternion = orientation
	l.landscape.Offset = offset
	return l.landscape
}

func (l *Ledger) Landscape() Landscape {
	return l.landscape
}

func (l *Ledger) SetSystemOpen(id string, open bool) {
	l.systems[id] = open
}

// SystemOpen reports the last known state; unknown systems are closed.
func (l *Ledger) SystemOpen(id string) bool {
	return l.systems[id]
}

func (l *Ledger) SetNodeGroupOpen(id string, open bool) {
	l.nodeGroups[id] = open
}

func (l *Ledger) NodeGroupOpen(id string) bool {
	return l.nodeGroups[id]
}

// SetComponentOpen toggles a single component of an open application.
func (l *Ledger) SetComponentOpen(appID, componentID string, open bool) bool {
	if _, ok := l.apps[appID]; !ok {
		return false
	}
	l.componentsOf(appID).overrides[componentID] = open
	return true
}

// SetFoundationOpen opens or collapses every component of the application at
// once, discarding per-component state.
func (l *Ledger) SetFoundationOpen(appID string, open bool) bool {
	if _, ok := l.apps[appID]; !ok {
		return false
	}
	cs := l.componentsOf(appID)
	cs.foundationOpen = open
	clear(cs.overrides)
	return true
}

func (l *Ledger) ComponentOpen(appID, componentID string) bool {
	cs, ok := l.components[appID]
	if !ok {
		return false
	}
	if open, ok := cs.overrides[componentID]; ok {
		return open
	}
	return cs.foundationOpen
}

func (l *Ledger) componentsOf(appID string) *componentState {
	cs, ok := l.components[appID]
	if !ok {
		cs = &componentState{overrides: make(map[string]bool)}
		l.components[appID] = cs
	}
	return cs
}
