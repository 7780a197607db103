package channel_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/a-essam23/go-vrsync/internal/channel"
	"github.com/a-essam23/go-vrsync/pkg/logging"
	"github.com/a-essam23/go-vrsync/pkg/wire"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type fakeLink struct {
	sent      [][]byte
	written   [][]byte
	closed    int
	onMessage func([]byte)
	onClose   func(error)
}

func (l *fakeLink) Send(msg []byte) error {
	l.sent = append(l.sent, msg)
	return nil
}

func (l *fakeLink) WriteNow(_ context.Context, msg []byte) error {
	l.written = append(l.written, msg)
	return nil
}

func (l *fakeLink) Close(error) {
	l.closed++
	if l.onClose != nil {
		l.onClose(nil)
	}
}

type dialRecord struct {
	url    string
	header http.Header
	link   *fakeLink
}

func newTestAdapter(t *testing.T, cfg channel.Config) (*channel.Adapter, *dialRecord) {
	t.Helper()
	rec := &dialRecord{}
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1700000000000))
	a := channel.New(logging.Discard(), cfg, clock, channel.WithDialer(
		func(_ context.Context, url string, header http.Header, onMessage func([]byte), onClose func(error)) (channel.Link, error) {
			rec.url = url
			rec.header = header
			rec.link = &fakeLink{onMessage: onMessage, onClose: onClose}
			return rec.link, nil
		}))
	return a, rec
}

func TestConnectRequiresEndpoint(t *testing.T) {
	a, _ := newTestAdapter(t, channel.Config{})

	err := a.Connect(context.Background(), "", 4444)
	var connErr *channel.ConnectionError
	require.ErrorAs(t, err, &connErr)
	require.ErrorIs(t, err, channel.ErrMissingEndpoint)

	require.ErrorIs(t, a.Connect(context.Background(), "localhost", 0), channel.ErrMissingEndpoint)
	require.False(t, a.IsOpen())
}

func TestConnectDialFailure(t *testing.T) {
	boom := errors.New("refused")
	a := channel.New(logging.Discard(), channel.Config{}, nil, channel.WithDialer(
		func(context.Context, string, http.Header, func([]byte), func(error)) (channel.Link, error) {
			return nil, boom
		}))
	err := a.Connect(context.Background(), "localhost", 4444)
	require.ErrorIs(t, err, boom)
	require.False(t, a.IsOpen())
}

func TestConnectBuildsURLAndCookie(t *testing.T) {
	a, rec := newTestAdapter(t, channel.Config{Path: "/ws", Token: "tok"})
	require.NoError(t, a.Connect(context.Background(), "localhost", 4444))
	require.Equal(t, "ws://localhost:4444/ws", rec.url)
	require.Contains(t, rec.header.Get("Cookie"), "session-token=tok")
	require.ErrorIs(t, a.Connect(context.Background(), "localhost", 4444), channel.ErrAlreadyConnected)
}

func TestConnectSelectsRoom(t *testing.T) {
	a, rec := newTestAdapter(t, channel.Config{Path: "ws", Room: "design review"})
	require.NoError(t, a.Connect(context.Background(), "::1", 4444))
	require.Equal(t, "ws://[::1]:4444/ws?room=design+review", rec.url)
}

func TestEnqueueIsNoOpWhenClosed(t *testing.T) {
	a, _ := newTestAdapter(t, channel.Config{})
	a.Enqueue(&wire.AppClosed{ID: "1"})
	require.Zero(t, a.Pending())
	require.NoError(t, a.Flush())
}

func TestFlushSendsOneArray(t *testing.T) {
	a, rec := newTestAdapter(t, channel.Config{})
	require.NoError(t, a.Connect(context.Background(), "localhost", 4444))

	a.Enqueue(&wire.AppOpened{ID: "1"})
	a.Enqueue(&wire.AppClosed{ID: "1"})
	require.Equal(t, 2, a.Pending())

	require.NoError(t, a.Flush())
	require.Zero(t, a.Pending())
	require.Len(t, rec.link.sent, 1)

	batch := gjson.ParseBytes(rec.link.sent[0])
	require.Equal(t, int64(2), batch.Get("#").Int())
	require.Equal(t, "receive_app_opened", batch.Get("0.event").String())
	require.Equal(t, "receive_app_closed", batch.Get("1.event").String())
	require.Equal(t, int64(1700000000000), batch.Get("0.time").Int())

	require.NoError(t, a.Flush())
	require.Len(t, rec.link.sent, 1)
}

func TestPumpDispatchesInOrder(t *testing.T) {
	a, rec := newTestAdapter(t, channel.Config{})
	var got []wire.Event
	a.SetHandler(func(batch []wire.Event) { got = append(got, batch...) })
	require.NoError(t, a.Connect(context.Background(), "localhost", 4444))

	rec.link.onMessage([]byte(`[{"event":"receive_system_update","id":1,"isOpen":true},{"event":"bogus"},{"event":"receive_system_update","id":1,"isOpen":false}]`))
	rec.link.onMessage([]byte(`not json`))
	rec.link.onMessage([]byte(`[{"event":"receive_app_closed","id":"9"}]`))

	require.Equal(t, 3, a.Pump())
	require.Len(t, got, 3)
	require.True(t, got[0].(*wire.SystemUpdate).IsOpen)
	require.False(t, got[1].(*wire.SystemUpdate).IsOpen)
	require.Equal(t, wire.ID("9"), got[2].(*wire.AppClosed).ID)
}

func TestCloseSendsDisconnectNoticeAndIsIdempotent(t *testing.T) {
	a, rec := newTestAdapter(t, channel.Config{})
	require.NoError(t, a.Connect(context.Background(), "localhost", 4444))
	a.Enqueue(&wire.AppClosed{ID: "1"})

	a.Close()
	a.Close()

	require.False(t, a.IsOpen())
	require.Zero(t, a.Pending())
	require.Equal(t, 1, rec.link.closed)
	require.Len(t, rec.link.written, 1)
	require.Equal(t, "receive_disconnect_request", gjson.GetBytes(rec.link.written[0], "0.event").String())
	require.Empty(t, rec.link.sent)
	require.Zero(t, a.Pump())
}

func TestUnrequestedCloseIsReportedAsLost(t *testing.T) {
	a, rec := newTestAdapter(t, channel.Config{})
	var lostErr error
	lost := 0
	a.SetOnLost(func(err error) {
		lost++
		lostErr = err
	})
	dispatched := 0
	a.SetHandler(func([]wire.Event) { dispatched++ })
	require.NoError(t, a.Connect(context.Background(), "localhost", 4444))

	eof := errors.New("eof")
	rec.link.onMessage([]byte(`[{"event":"receive_app_closed","id":"1"}]`))
	rec.link.onClose(eof)
	rec.link.onMessage([]byte(`[{"event":"receive_app_closed","id":"2"}]`))

	require.Equal(t, 1, a.Pump())
	require.Equal(t, 1, dispatched)
	require.Equal(t, 1, lost)
	require.ErrorIs(t, lostErr, eof)
	require.False(t, a.IsOpen())
	require.Empty(t, rec.link.written)

	require.Zero(t, a.Pump())
	a.Close()
	require.Equal(t, 1, rec.link.closed)
}
