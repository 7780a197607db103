package engine_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"cogentcore.org/core/math32"
	"github.com/a-essam23/go-vrsync/internal/channel"
	"github.com/a-essam23/go-vrsync/internal/engine"
	"github.com/a-essam23/go-vrsync/pkg/ledger"
	"github.com/a-essam23/go-vrsync/pkg/logging"
	"github.com/a-essam23/go-vrsync/pkg/session"
	"github.com/a-essam23/go-vrsync/pkg/spatial"
	"github.com/a-essam23/go-vrsync/pkg/wire"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const identityPose = `{"position":[0,0,0],"quaternion":[0,0,0,1]}`

type fakeLink struct {
	sent    [][]byte
	written [][]byte
	closed  int
}

func (l *fakeLink) Send(msg []byte) error {
	l.sent = append(l.sent, msg)
	return nil
}

func (l *fakeLink) WriteNow(_ context.Context, msg []byte) error {
	l.written = append(l.written, msg)
	return nil
}

func (l *fakeLink) Close(error) { l.closed++ }

type fixedColors map[string]spatial.Color

func (c fixedColors) EntityColor(_, entityID string) spatial.Color { return c[entityID] }

type harness struct {
	t         *testing.T
	eng       *engine.Engine
	link      *fakeLink
	onMessage func([]byte)
	onClose   func(error)
	notes     []engine.Notification
	read      int
}

func newHarness(t *testing.T, opts ...engine.Option) *harness {
	t.Helper()
	h := &harness{t: t}
	dial := func(_ context.Context, _ string, _ http.Header, onMessage func([]byte), onClose func(error)) (channel.Link, error) {
		h.link = &fakeLink{}
		h.onMessage, h.onClose = onMessage, onClose
		return h.link, nil
	}
	cfg := engine.Config{
		Host:     "localhost",
		Port:     4444,
		SendRate: 10,
		Profile:  session.Profile{DisplayName: "alice", Color: spatial.Color{1, 0, 0}},
	}
	opts = append(opts,
		engine.WithClock(clockwork.NewFakeClockAt(time.UnixMilli(1700000000000))),
		engine.WithChannelOptions(channel.WithDialer(dial)),
	)
	h.eng = engine.New(logging.Discard(), cfg, opts...)
	h.eng.Subscribe(func(n engine.Notification) { h.notes = append(h.notes, n) })
	return h
}

// receive delivers one inbound message holding events and applies it.
func (h *harness) receive(events ...string) {
	h.t.Helper()
	h.onMessage([]byte("[" + strings.Join(events, ",") + "]"))
	require.NoError(h.t, h.eng.Tick(0))
}

// join runs the handshake as u1 with the given roster entries.
func (h *harness) join(roster ...string) {
	h.t.Helper()
	require.NoError(h.t, h.eng.Connect(context.Background()))
	h.receive(`{"event":"receive_self_connecting","time":1,"id":"u1"}`)
	h.receive(fmt.Sprintf(`{"event":"receive_self_connected","time":2,"self":{"id":"u1","name":"alice","color":[1,0,0]},"users":[%s]}`,
		strings.Join(roster, ",")))
	require.Equal(h.t, session.Connected, h.eng.State())
	h.flush()
	h.notes = nil
}

// flush forces a send interval and returns the events sent since the last call.
func (h *harness) flush() []wire.Event {
	h.t.Helper()
	require.NoError(h.t, h.eng.Tick(time.Second))
	var out []wire.Event
	for _, msg := range h.link.sent[h.read:] {
		events, skipped, err := wire.DecodeBatch(msg)
		require.NoError(h.t, err)
		require.Empty(h.t, skipped)
		out = append(out, events...)
	}
	h.read = len(h.link.sent)
	return out
}

func notesOf[T engine.Notification](notes []engine.Notification) []T {
	var out []T
	for _, n := range notes {
		if v, ok := n.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func remoteUser(id, name string) string {
	return fmt.Sprintf(`{"id":%q,"name":%q,"color":[0,1,0],"camera":%s}`, id, name, identityPose)
}

func TestConnectHandshake(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.eng.Connect(context.Background()))
	require.Equal(t, session.Connecting, h.eng.State())

	h.receive(`{"event":"receive_self_connecting","time":1,"id":"u1"}`)
	require.Equal(t, session.Connecting, h.eng.State())
	require.Equal(t, "u1", h.eng.Local().UserID)

	sent := h.flush()
	require.Len(t, sent, 1)
	req, ok := sent[0].(*wire.ConnectRequest)
	require.True(t, ok)
	require.Equal(t, "alice", req.Name)

	h.receive(`{"event":"receive_self_connected","time":2,"users":[` + remoteUser("u2", "bob") + `]}`)
	require.Equal(t, session.Connected, h.eng.State())
	bob, ok := h.eng.Users().Remote("u2")
	require.True(t, ok)
	require.Equal(t, "bob", bob.DisplayName)
	require.NotNil(t, bob.Transform.Head)

	added := notesOf[engine.AvatarAdded](h.notes)
	require.Len(t, added, 1)
	require.Equal(t, "u2", added[0].User.UserID)
	require.Equal(t, []engine.ConnectionStateChanged{{State: session.Connecting}, {State: session.Connected}},
		notesOf[engine.ConnectionStateChanged](h.notes))
}

func TestConnectRequiresEndpoint(t *testing.T) {
	eng := engine.New(logging.Discard(), engine.Config{})
	err := eng.Connect(context.Background())
	require.ErrorIs(t, err, channel.ErrMissingEndpoint)
	require.Equal(t, session.Offline, eng.State())
}

func TestConnectTwiceFails(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.eng.Connect(context.Background()))
	require.ErrorIs(t, h.eng.Connect(context.Background()), engine.ErrAlreadyConnected)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.join(remoteUser("u2", "bob"))
	_, err := h.eng.OpenApplication("a1", spatial.Identity())
	require.NoError(t, err)
	require.NoError(t, h.eng.HighlightEntity("a1", "e1", true))

	h.eng.Disconnect()
	h.eng.Disconnect()

	require.Equal(t, session.Offline, h.eng.State())
	require.Zero(t, h.eng.Users().RemoteCount())
	require.Empty(t, h.eng.Ledger().Applications())
	require.Empty(t, h.eng.Ledger().HighlightsBy("u1"))
	require.Empty(t, h.eng.Local().UserID)
	require.Len(t, h.link.written, 1)
	require.Equal(t, string(wire.KindDisconnectRequest), gjson.GetBytes(h.link.written[0], "0.event").String())
	require.Equal(t, 1, h.link.closed)
	require.Len(t, notesOf[engine.SessionCleared](h.notes), 1)
}

func TestReconnectAfterDisconnect(t *testing.T) {
	h := newHarness(t)
	h.join()
	h.eng.Disconnect()
	h.read = 0
	h.join(remoteUser("u3", "carol"))
	require.Equal(t, 1, h.eng.Users().RemoteCount())
}

func TestPositionsMergeSparsely(t *testing.T) {
	h := newHarness(t)
	h.join(remoteUser("u2", "bob"))

	h.receive(`{"event":"receive_user_positions","time":3,"id":"u2","controller1":{"position":[1,2,3],"quaternion":[0,0,0,1]}}`)

	bob, _ := h.eng.Users().Remote("u2")
	require.NotNil(t, bob.Transform.Head)
	require.True(t, bob.Transform.Head.ApproxEqual(spatial.Identity(), spatial.DefaultEpsilon))
	require.NotNil(t, bob.Transform.PrimaryController)
	require.Equal(t, [3]float32{1, 2, 3}, bob.Transform.PrimaryController.PositionArray())
	require.Nil(t, bob.Transform.SecondaryController)
	require.Len(t, notesOf[engine.AvatarMoved](h.notes), 1)
}

func TestRemoteControllersAttachAndDetach(t *testing.T) {
	h := newHarness(t)
	h.join(remoteUser("u2", "bob"))

	h.receive(`{"event":"receive_user_controllers","time":3,"id":"u2","connect":{"controller2":"oculus-left"}}`)
	bob, _ := h.eng.Users().Remote("u2")
	require.True(t, bob.Controllers.SecondaryConnected)
	require.Equal(t, "oculus-left", bob.Controllers.SecondaryModel)

	h.receive(`{"event":"receive_user_controllers","time":4,"id":"u2","disconnect":["controller2","controller9"]}`)
	require.False(t, bob.Controllers.SecondaryConnected)
	require.Equal(t, []engine.ControllerDetached{{UserID: "u2", Slot: session.Secondary}},
		notesOf[engine.ControllerDetached](h.notes))
}

func TestApplicationIsNeverOpenedTwice(t *testing.T) {
	h := newHarness(t)
	h.join()

	open := `{"event":"receive_app_opened","time":3,"id":"a1","position":[0,1,0],"quaternion":[0,0,0,1]}`
	h.receive(open, open)
	ok, err := h.eng.OpenApplication("a1", spatial.Identity())
	require.NoError(t, err)
	require.False(t, ok)

	require.Len(t, h.eng.Ledger().Applications(), 1)
	require.Len(t, notesOf[engine.ApplicationOpened](h.notes), 1)
	require.Empty(t, h.flush())
}

func TestBindIsExclusive(t *testing.T) {
	h := newHarness(t)
	h.join(remoteUser("u2", "bob"), remoteUser("u3", "carol"))
	h.receive(`{"event":"receive_app_opened","time":3,"id":"a1","position":[0,0,-1],"quaternion":[0,0,0,1]}`)

	bind := `{"event":"receive_app_binded","time":4,"userID":%q,"appID":"a1","appPosition":[0,0,-1],"appQuaternion":[0,0,0,1],"isBoundToController1":true,"controllerPosition":[0,0,0],"controllerQuaternion":[0,0,0,1]}`
	h.receive(fmt.Sprintf(bind, "u2"), fmt.Sprintf(bind, "u3"))

	holder, held := h.eng.Ledger().HolderOf("a1")
	require.True(t, held)
	require.Equal(t, "u2", holder)
	require.ErrorIs(t, h.eng.BindApplication("a1", session.Primary), engine.ErrApplicationHeld)
	require.ErrorIs(t, h.eng.ReleaseApplication("a1"), engine.ErrNotHolder)
	require.ErrorIs(t, h.eng.CloseApplication("a1"), engine.ErrApplicationHeld)
}

func TestHeldApplicationFollowsController(t *testing.T) {
	h := newHarness(t)
	h.join(remoteUser("u2", "bob"))
	h.receive(
		`{"event":"receive_app_opened","time":3,"id":"a1","position":[0,0,-1],"quaternion":[0,0,0,1]}`,
		`{"event":"receive_app_binded","time":4,"userID":"u2","appID":"a1","appPosition":[0,0,-1],"appQuaternion":[0,0,0,1],"isBoundToController1":true,"controllerPosition":[0,0,0],"controllerQuaternion":[0,0,0,1]}`,
	)
	h.receive(`{"event":"receive_user_positions","time":5,"id":"u2","controller1":{"position":[1,0,0],"quaternion":[0,0,0,1]}}`)

	app, ok := h.eng.Ledger().Application("a1")
	require.True(t, ok)
	require.InDelta(t, 1, app.Pose.Position.X, 1e-5)
	require.InDelta(t, -1, app.Pose.Position.Z, 1e-5)
	require.Len(t, notesOf[engine.ApplicationMoved](h.notes), 1)
}

func TestLocalBindAndRelease(t *testing.T) {
	h := newHarness(t)
	h.join()
	h.eng.SetControllerConnected(session.Primary, true, "index-right")
	_, err := h.eng.OpenApplication("a1", spatial.Identity())
	require.NoError(t, err)
	require.NoError(t, h.eng.BindApplication("a1", session.Primary))

	h.eng.UpdateLocalTransform(session.UserTransform{
		Head:                spatial.Identity(),
		PrimaryController:   spatial.Identity().Translate(math32.Vec3(0, 1, 0)),
		SecondaryController: spatial.Identity(),
	})
	app, _ := h.eng.Ledger().Application("a1")
	require.InDelta(t, 1, app.Pose.Position.Y, 1e-5)

	require.NoError(t, h.eng.ReleaseApplication("a1"))
	_, held := h.eng.Ledger().HolderOf("a1")
	require.False(t, held)

	var kinds []wire.Kind
	for _, ev := range h.flush() {
		kinds = append(kinds, ev.Kind())
	}
	require.Equal(t, []wire.Kind{
		wire.KindAppOpened, wire.KindAppBinded, wire.KindAppReleased,
		wire.KindUserControllers, wire.KindUserPositions,
	}, kinds)
}

func TestDetachingControllerReleasesHeldApplications(t *testing.T) {
	h := newHarness(t)
	h.join()
	h.eng.SetControllerConnected(session.Secondary, true, "index-left")
	_, err := h.eng.OpenApplication("a1", spatial.Identity())
	require.NoError(t, err)
	require.NoError(t, h.eng.BindApplication("a1", session.Secondary))

	h.eng.SetControllerConnected(session.Secondary, false, "")
	_, held := h.eng.Ledger().HolderOf("a1")
	require.False(t, held)
	require.Len(t, notesOf[engine.ApplicationReleased](h.notes), 1)
}

func TestHandControllersFollowHandedness(t *testing.T) {
	h := newHarness(t)
	h.join()
	require.Equal(t, session.Secondary, h.eng.HandSlot(session.LeftHand))

	h.eng.SetHandControllerConnected(session.LeftHand, true, "index-left")
	controllers := h.eng.Local().Controllers
	require.True(t, controllers.SecondaryConnected)
	require.False(t, controllers.PrimaryConnected)
	require.Equal(t, "index-left", controllers.SecondaryModel)

	var sent *wire.UserControllers
	for _, ev := range h.flush() {
		if uc, ok := ev.(*wire.UserControllers); ok {
			sent = uc
		}
	}
	require.NotNil(t, sent)
	require.NotNil(t, sent.Connect)
	require.Equal(t, "index-left", sent.Connect.Controller2)
	require.Empty(t, sent.Connect.Controller1)
}

func TestSpectateRoundTrip(t *testing.T) {
	h := newHarness(t)
	bob := `{"id":"u2","name":"bob","color":[0,1,0],"camera":{"position":[5,1,0],"quaternion":[0,0,0,1]}}`
	h.join(bob)

	start := spatial.Identity().Translate(math32.Vec3(0, 2, 0))
	h.eng.UpdateLocalTransform(session.UserTransform{Head: start, PrimaryController: spatial.Identity(), SecondaryController: spatial.Identity()})

	require.NoError(t, h.eng.ActivateSpectating("u2"))
	require.Equal(t, session.Spectating, h.eng.State())
	require.Equal(t, "u2", h.eng.SpectateTarget())
	require.Equal(t, [3]float32{5, 1, 0}, h.eng.Local().Transform.Head.PositionArray())

	h.receive(`{"event":"receive_user_positions","time":3,"id":"u2","camera":{"position":[6,1,0],"quaternion":[0,0,0,1]}}`)
	require.Equal(t, [3]float32{6, 1, 0}, h.eng.Local().Transform.Head.PositionArray())

	h.eng.DeactivateSpectating()
	require.Equal(t, session.Connected, h.eng.State())
	require.True(t, h.eng.Local().Transform.Head.ApproxEqual(start, spatial.DefaultEpsilon))
	require.Equal(t, []engine.AvatarVisibilityChanged{{UserID: "u2", Visible: false}, {UserID: "u2", Visible: true}},
		notesOf[engine.AvatarVisibilityChanged](h.notes))

	var updates []*wire.SpectatingUpdate
	for _, ev := range h.flush() {
		if u, ok := ev.(*wire.SpectatingUpdate); ok {
			updates = append(updates, u)
		}
	}
	require.Len(t, updates, 2)
	require.True(t, updates[0].IsSpectating)
	require.Equal(t, wire.ID("u2"), updates[0].SpectatedUser)
	require.False(t, updates[1].IsSpectating)

	h.eng.DeactivateSpectating()
	require.Equal(t, session.Connected, h.eng.State())
}

func TestSpectateRejections(t *testing.T) {
	h := newHarness(t)
	require.ErrorIs(t, h.eng.ActivateSpectating("u2"), engine.ErrNotConnected)

	h.join(remoteUser("u2", "bob"))
	require.ErrorIs(t, h.eng.ActivateSpectating("u9"), engine.ErrSpectateTarget)
	require.ErrorIs(t, h.eng.ActivateSpectating("u1"), engine.ErrSpectateTarget)

	_, err := h.eng.OpenApplication("a1", spatial.Identity())
	require.NoError(t, err)
	require.NoError(t, h.eng.BindApplication("a1", session.Primary))
	require.ErrorIs(t, h.eng.ActivateSpectating("u2"), engine.ErrHoldingApplication)
	require.Equal(t, session.Connected, h.eng.State())
}

func TestNotificationsFollowWholeBatch(t *testing.T) {
	h := newHarness(t)
	h.join()

	var seenSecond []bool
	h.eng.Subscribe(func(n engine.Notification) {
		if _, ok := n.(engine.ApplicationOpened); ok {
			_, open := h.eng.Ledger().Application("a2")
			seenSecond = append(seenSecond, open)
		}
	})
	h.receive(
		`{"event":"receive_app_opened","time":3,"id":"a1","position":[0,0,0],"quaternion":[0,0,0,1]}`,
		`{"event":"receive_app_opened","time":3,"id":"a2","position":[0,0,0],"quaternion":[0,0,0,1]}`,
	)
	require.Equal(t, []bool{true, true}, seenSecond)
}

func TestBatchAppliesInOrderAndSkipsBadEvents(t *testing.T) {
	h := newHarness(t)
	h.join()

	h.receive(
		`{"event":"receive_system_update","time":3,"id":"s1","isOpen":true}`,
		`{"event":"receive_teleport","time":3}`,
		`{"event":"receive_system_update","time":3,"id":7}`,
		`{"event":"receive_system_update","time":4,"id":"s1","isOpen":false}`,
		`{"event":"receive_nodegroup_update","time":4,"id":12,"isOpen":true}`,
	)
	require.False(t, h.eng.Ledger().SystemOpen("s1"))
	require.True(t, h.eng.Ledger().NodeGroupOpen("12"))
	require.Len(t, notesOf[engine.SystemToggled](h.notes), 2)
}

func TestUnknownIdentifiersChangeNothing(t *testing.T) {
	h := newHarness(t)
	h.join(remoteUser("u2", "bob"))

	h.receive(
		`{"event":"receive_user_positions","time":3,"id":"ghost","camera":`+identityPose+`}`,
		`{"event":"receive_user_controllers","time":3,"id":"ghost","disconnect":["controller1"]}`,
		`{"event":"receive_user_disconnect","time":3,"id":"ghost"}`,
		`{"event":"receive_app_closed","time":3,"id":"nope"}`,
		`{"event":"receive_app_released","time":3,"id":"nope","position":[0,0,0],"quaternion":[0,0,0,1]}`,
		`{"event":"receive_component_update","time":3,"appID":"nope","componentID":"c1","isOpened":true,"isFoundation":false}`,
		`{"event":"receive_spectating_update","time":3,"userID":"ghost","isSpectating":true}`,
		`{"event":"receive_hightlight_update","time":3,"userID":"u2","appID":"a1","entityID":"e1","isHighlighted":false,"color":[0,0,0]}`,
	)
	require.Empty(t, h.notes)
	require.Equal(t, 1, h.eng.Users().RemoteCount())
	require.Equal(t, session.Connected, h.eng.State())
}

func TestPingIsEchoedVerbatim(t *testing.T) {
	h := newHarness(t)
	h.join()

	h.receive(`{"event":"receive_ping","time":9,"seq":3,"nonce":"abc"}`)
	require.Len(t, h.flush(), 1)
	last := h.link.sent[len(h.link.sent)-1]
	require.Equal(t, "receive_ping", gjson.GetBytes(last, "0.event").String())
	require.Equal(t, "abc", gjson.GetBytes(last, "0.nonce").String())
	require.Equal(t, int64(3), gjson.GetBytes(last, "0.seq").Int())
}

func TestUserDisconnectCleansUp(t *testing.T) {
	h := newHarness(t, engine.WithColorSource(fixedColors{"e1": {0.2, 0.2, 0.2}}))
	h.join(remoteUser("u2", "bob"), remoteUser("u3", "carol"))
	h.receive(
		`{"event":"receive_app_opened","time":3,"id":"a1","position":[0,0,-1],"quaternion":[0,0,0,1]}`,
		`{"event":"receive_app_opened","time":3,"id":"a2","position":[0,0,-2],"quaternion":[0,0,0,1]}`,
		`{"event":"receive_hightlight_update","time":3,"userID":"u2","appID":"a1","entityID":"e1","isHighlighted":true,"color":[0,1,0]}`,
		`{"event":"receive_app_binded","time":3,"userID":"u2","appID":"a2","appPosition":[0,0,-2],"appQuaternion":[0,0,0,1],"isBoundToController1":false,"controllerPosition":[0,0,0],"controllerQuaternion":[0,0,0,1]}`,
		`{"event":"receive_spectating_update","time":3,"userID":"u3","isSpectating":true,"spectatedUser":"u2"}`,
	)
	require.NoError(t, h.eng.ActivateSpectating("u2"))
	h.notes = nil

	h.receive(`{"event":"receive_user_disconnect","time":4,"id":"u2"}`)

	_, ok := h.eng.Users().Remote("u2")
	require.False(t, ok)
	require.Equal(t, session.Connected, h.eng.State())
	require.Empty(t, h.eng.SpectateTarget())
	_, highlighted := h.eng.Ledger().Highlight("a1", "e1")
	require.False(t, highlighted)
	_, held := h.eng.Ledger().HolderOf("a2")
	require.False(t, held)
	carol, _ := h.eng.Users().Remote("u3")
	require.Equal(t, session.Connected, carol.State)

	require.Equal(t, []engine.EntityUnhighlighted{{AppID: "a1", EntityID: "e1", UserID: "u2", OriginalColor: spatial.Color{0.2, 0.2, 0.2}}},
		notesOf[engine.EntityUnhighlighted](h.notes))
	require.Equal(t, []engine.AvatarRemoved{{UserID: "u2"}}, notesOf[engine.AvatarRemoved](h.notes))
	require.Len(t, notesOf[engine.UserMessage](h.notes), 1)
}

func TestRemovalOfLocalUserStopsBatch(t *testing.T) {
	h := newHarness(t)
	h.join(remoteUser("u2", "bob"))

	h.receive(
		`{"event":"receive_user_disconnect","time":3,"id":"u1"}`,
		`{"event":"receive_app_opened","time":3,"id":"a1","position":[0,0,0],"quaternion":[0,0,0,1]}`,
	)
	require.Equal(t, session.Offline, h.eng.State())
	require.Empty(t, h.eng.Ledger().Applications())
	require.Empty(t, notesOf[engine.ApplicationOpened](h.notes))
	require.Len(t, notesOf[engine.SessionCleared](h.notes), 1)
}

func TestHighlightConflictIsRejected(t *testing.T) {
	h := newHarness(t)
	h.join(remoteUser("u2", "bob"), remoteUser("u3", "carol"))
	claim := `{"event":"receive_hightlight_update","time":3,"userID":%q,"appID":"a1","entityID":"e1","isHighlighted":%t,"color":[0,1,0]}`

	h.receive(fmt.Sprintf(claim, "u2", true))
	_, ok := h.eng.Ledger().Highlight("a1", "e1")
	require.False(t, ok, "claims on closed applications are ignored")
	require.ErrorIs(t, h.eng.HighlightEntity("a1", "e1", true), ledger.ErrNotOpen)

	h.receive(`{"event":"receive_app_opened","time":3,"id":"a1","position":[0,0,0],"quaternion":[0,0,0,1]}`)
	h.receive(fmt.Sprintf(claim, "u2", true), fmt.Sprintf(claim, "u3", true))
	c, ok := h.eng.Ledger().Highlight("a1", "e1")
	require.True(t, ok)
	require.Equal(t, "u2", c.UserID)
	require.ErrorIs(t, h.eng.HighlightEntity("a1", "e1", true), ledger.ErrHighlightClaimed)

	h.receive(fmt.Sprintf(claim, "u2", false))
	require.NoError(t, h.eng.HighlightEntity("a1", "e1", true))
	c, _ = h.eng.Ledger().Highlight("a1", "e1")
	require.Equal(t, "u1", c.UserID)
	require.Equal(t, spatial.Color{1, 0, 0}, c.Color)
	require.ErrorIs(t, h.eng.HighlightEntity("a1", "e2", false), engine.ErrNotHighlighted)
}

func TestComponentsFollowFoundation(t *testing.T) {
	h := newHarness(t)
	h.join()
	_, err := h.eng.OpenApplication("a1", spatial.Identity())
	require.NoError(t, err)

	require.NoError(t, h.eng.UpdateComponent("a1", "c1", true, false))
	require.True(t, h.eng.Ledger().ComponentOpen("a1", "c1"))
	h.receive(`{"event":"receive_component_update","time":3,"appID":"a1","componentID":"f","isOpened":false,"isFoundation":true}`)
	require.False(t, h.eng.Ledger().ComponentOpen("a1", "c1"))
	require.ErrorIs(t, h.eng.UpdateComponent("a9", "c1", true, false), engine.ErrUnknownApplication)
}

func TestLandscapeMoves(t *testing.T) {
	h := newHarness(t)
	h.join()
	h.receive(`{"event":"receive_landscape_position","time":3,"deltaPosition":[1,0,0],"offset":[0,0,0],"quaternion":[0,0,0,1]}`)
	require.NoError(t, h.eng.MoveLandscape(math32.Vec3(1, 0, 0), math32.Vector3{}, math32.Quat{W: 1}))
	require.InDelta(t, 2, h.eng.Ledger().Landscape().Pose.Position.X, 1e-5)
	require.Len(t, notesOf[engine.LandscapeMoved](h.notes), 2)
}

func TestLostConnectionGoesOffline(t *testing.T) {
	h := newHarness(t)
	h.join(remoteUser("u2", "bob"))

	h.onClose(io.EOF)
	require.NoError(t, h.eng.Tick(0))

	require.Equal(t, session.Offline, h.eng.State())
	require.Zero(t, h.eng.Users().RemoteCount())
	require.Empty(t, h.link.written)
	require.Len(t, notesOf[engine.SessionCleared](h.notes), 1)
}

func TestLocalActionsNeedSession(t *testing.T) {
	h := newHarness(t)
	_, err := h.eng.OpenApplication("a1", spatial.Identity())
	require.ErrorIs(t, err, engine.ErrNotConnected)
	require.ErrorIs(t, h.eng.SetSystemOpen("s1", true), engine.ErrNotConnected)
	require.ErrorIs(t, h.eng.HighlightEntity("a1", "e1", true), engine.ErrNotConnected)
	require.Empty(t, h.eng.Ledger().Applications())
}
