package wire_test

import (
	"errors"
	"testing"
	"time"

	"github.com/a-essam23/go-vrsync/pkg/wire"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestDecodeBatchPreservesOrder(t *testing.T) {
	raw := []byte(`[
		{"event":"receive_system_update","id":1,"isOpen":true},
		{"event":"receive_system_update","id":"1","isOpen":false}
	]`)
	events, skipped, err := wire.DecodeBatch(raw)
	require.NoError(t, err)
	require.Empty(t, skipped)
	require.Len(t, events, 2)

	first := events[0].(*wire.SystemUpdate)
	second := events[1].(*wire.SystemUpdate)
	require.Equal(t, wire.ID("1"), first.ID)
	require.True(t, first.IsOpen)
	require.Equal(t, wire.ID("1"), second.ID)
	require.False(t, second.IsOpen)
}

func TestDecodeBatchSkipsBadElements(t *testing.T) {
	raw := []byte(`[
		{"event":"receive_made_up"},
		{"id":"x"},
		{"event":"receive_app_closed"},
		42,
		{"event":"receive_app_closed","id":"app-7"}
	]`)
	events, skipped, err := wire.DecodeBatch(raw)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, wire.ID("app-7"), events[0].(*wire.AppClosed).ID)

	require.Len(t, skipped, 4)
	require.True(t, errors.Is(skipped[0], wire.ErrUnknownKind))
	require.True(t, errors.Is(skipped[1], wire.ErrMissingKind))
	require.True(t, errors.Is(skipped[2], wire.ErrMissingField))
	require.Equal(t, 3, skipped[3].Index)
}

func TestDecodeBatchRejectsNonArray(t *testing.T) {
	_, _, err := wire.DecodeBatch([]byte(`{"event":"receive_ping"}`))
	require.ErrorIs(t, err, wire.ErrNotBatch)

	_, _, err = wire.DecodeBatch([]byte(`[{"event":`))
	require.ErrorIs(t, err, wire.ErrNotBatch)
}

func TestEncodeBatchStampsKindAndTime(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	b, err := wire.EncodeBatch([]wire.Event{
		&wire.ConnectRequest{Name: "alice"},
		&wire.AppClosed{ID: "5"},
	}, now)
	require.NoError(t, err)

	parsed := gjson.ParseBytes(b)
	require.True(t, parsed.IsArray())
	require.Equal(t, "receive_connect_request", parsed.Get("0.event").String())
	require.Equal(t, "alice", parsed.Get("0.name").String())
	require.Equal(t, int64(1700000000123), parsed.Get("0.time").Int())
	require.Equal(t, "receive_app_closed", parsed.Get("1.event").String())
	require.Equal(t, "5", parsed.Get("1.id").String())
}

func TestEncodeEmptyBatch(t *testing.T) {
	b, err := wire.EncodeBatch(nil, time.Now())
	require.NoError(t, err)
	require.Equal(t, "[]", string(b))
}

func TestUserPositionsOmitsAbsentParts(t *testing.T) {
	b, err := wire.EncodeBatch([]wire.Event{&wire.UserPositions{
		Controller2: &wire.Pose{Position: [3]float32{1, 2, 3}, Quaternion: [4]float32{0, 0, 0, 1}},
	}}, time.Now())
	require.NoError(t, err)

	parsed := gjson.ParseBytes(b)
	require.False(t, parsed.Get("0.camera").Exists())
	require.False(t, parsed.Get("0.controller1").Exists())
	require.False(t, parsed.Get("0.id").Exists())
	require.Equal(t, float64(2), parsed.Get("0.controller2.position.1").Float())
}

func TestPingPassesThroughVerbatim(t *testing.T) {
	in := `{"event":"receive_ping","time":17,"seq":3,"extra":{"a":1}}`
	ev, err := wire.Decode([]byte(in))
	require.NoError(t, err)
	ping := ev.(*wire.Ping)
	require.Equal(t, uint64(3), ping.Seq)

	out, err := wire.EncodeBatch([]wire.Event{ping}, time.UnixMilli(99))
	require.NoError(t, err)
	require.JSONEq(t, "["+in+"]", string(out))
}

func TestHighlightKindKeepsWireSpelling(t *testing.T) {
	ev, err := wire.Decode([]byte(`{"event":"receive_hightlight_update","appID":"a","entityID":7,"isHighlighted":true,"color":[1,0,0]}`))
	require.NoError(t, err)
	hl := ev.(*wire.HighlightUpdate)
	require.Equal(t, wire.KindHighlightUpdate, hl.Kind())
	require.Equal(t, wire.ID("7"), hl.EntityID)
	require.Equal(t, float32(1), hl.Color[0])
}

func TestRosterDecodes(t *testing.T) {
	ev, err := wire.Decode([]byte(`{"event":"receive_self_connected","users":[
		{"id":"u2","name":"bob","color":[0,1,0],"controllers":{"controller1":"Touch (Left)"},
		 "camera":{"position":[0,1.6,0],"quaternion":[0,0,0,1]}}
	]}`))
	require.NoError(t, err)
	sc := ev.(*wire.SelfConnected)
	require.Len(t, sc.Users, 1)
	require.Equal(t, "Touch (Left)", sc.Users[0].Controllers.Controller1)
	require.NotNil(t, sc.Users[0].Camera)
	require.Nil(t, sc.Users[0].Controller1)
}
