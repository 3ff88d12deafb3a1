package app

import (
	"context"
	"testing"

	"github.com/mavprep/voice/internal/core"
	"github.com/mavprep/voice/internal/core/coretest"
	"github.com/mavprep/voice/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type relayFixture struct {
	reg   *Registry
	rooms core.RoomTable
	relay *Relay
	conns map[domain.ConnectionID]*coretest.Conn
}

func newRelayFixture() *relayFixture {
	reg := NewRegistry()
	rooms := NewRoomTable()
	return &relayFixture{
		reg:   reg,
		rooms: rooms,
		relay: NewRelay(reg, rooms),
		conns: map[domain.ConnectionID]*coretest.Conn{},
	}
}

func (f *relayFixture) join(t *testing.T, room domain.RoomID, member domain.MemberID) domain.ConnectionID {
	t.Helper()
	conn := coretest.NewConn()
	cid := f.reg.Register(conn, domain.Identity{})
	_, err := f.rooms.Join(context.Background(), room, domain.NewMember(member, cid), 0)
	require.NoError(t, err)
	f.conns[cid] = conn
	return cid
}

func TestRelaySignalTargeted(t *testing.T) {
	f := newRelayFixture()
	a := f.join(t, "study-1", "alice")
	b := f.join(t, "study-1", "bob")
	c := f.join(t, "study-1", "carol")

	res, err := f.relay.RelaySignal(context.Background(), domain.Envelope{
		RoomID:         "study-1",
		SenderID:       a,
		TargetMemberID: "bob",
		Payload:        []byte(`{"sdp":"offer"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.SendTo)

	got := f.conns[b].OfType(core.EventSignal)
	require.Len(t, got, 1)
	assert.Equal(t, string(a), got[0].Field("senderConnectionId"))
	assert.Equal(t, "alice", got[0].Field("senderMemberId"))
	assert.Equal(t, map[string]any{"sdp": "offer"}, got[0].Raw["payload"])

	assert.Empty(t, f.conns[c].Events())
	assert.Empty(t, f.conns[a].Events())
}

func TestRelaySignalBroadcastSkipsSender(t *testing.T) {
	f := newRelayFixture()
	a := f.join(t, "study-1", "alice")
	b := f.join(t, "study-1", "bob")
	c := f.join(t, "study-1", "carol")

	res, err := f.relay.RelaySignal(context.Background(), domain.Envelope{
		RoomID: "study-1", SenderID: a, Payload: []byte(`"hi"`),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.SendTo)
	assert.Len(t, f.conns[b].OfType(core.EventSignal), 1)
	assert.Len(t, f.conns[c].OfType(core.EventSignal), 1)
	assert.Empty(t, f.conns[a].Events())
}

func TestRelaySignalUnknownTargetIsDropped(t *testing.T) {
	f := newRelayFixture()
	a := f.join(t, "study-1", "alice")
	b := f.join(t, "study-1", "bob")

	res, err := f.relay.RelaySignal(context.Background(), domain.Envelope{
		RoomID: "study-1", SenderID: a, TargetMemberID: "ghost", Payload: []byte(`1`),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.SendTo)
	assert.Empty(t, f.conns[b].Events())
}

func TestRelaySignalRequiresMembership(t *testing.T) {
	f := newRelayFixture()
	f.join(t, "study-1", "alice")
	outsider := f.join(t, "study-2", "mallory")

	_, err := f.relay.RelaySignal(context.Background(), domain.Envelope{
		RoomID: "study-1", SenderID: outsider, Payload: []byte(`1`),
	})
	assert.ErrorIs(t, err, domain.ErrNotAMember)
}

func TestRelayFanoutReportsDropped(t *testing.T) {
	f := newRelayFixture()
	a := f.join(t, "study-1", "alice")
	b := f.join(t, "study-1", "bob")
	c := f.join(t, "study-1", "carol")
	f.conns[b].SetFull(true)

	res, err := f.relay.BroadcastJoin(context.Background(), "study-1", domain.NewMember("alice", a))
	require.NoError(t, err)
	assert.Equal(t, 1, res.SendTo)
	assert.Equal(t, []domain.ConnectionID{b}, res.Dropped)
	assert.Len(t, f.conns[c].OfType(core.EventUserJoined), 1)
}

func TestRelayUnicastWrapsTransportError(t *testing.T) {
	f := newRelayFixture()
	a := f.join(t, "study-1", "alice")
	f.conns[a].SetFull(true)

	err := f.relay.Unicast(a, core.RoomLeft{Type: core.EventRoomLeft, RoomID: "study-1"})
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.ErrorIs(t, err, coretest.ErrFull)
}
