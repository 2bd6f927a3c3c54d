package server

import (
	"math"
	"testing"

	"github.com/ValentinKolb/tabkv/lib/master"
	"github.com/ValentinKolb/tabkv/lib/seglog"
	"github.com/ValentinKolb/tabkv/lib/tablet"
	"github.com/ValentinKolb/tabkv/rpc/common"
	"github.com/ValentinKolb/tabkv/rpc/serializer"
	"github.com/ValentinKolb/tabkv/rpc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopbackTransport hands requests straight to the registered handler,
// bypassing sockets. It exercises the full serialize/dispatch chain.
type loopbackTransport struct {
	handler transport.ServerHandleFunc
}

func (t *loopbackTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *loopbackTransport) Listen(common.ServerConfig) error { return nil }

func newTestServer(t *testing.T) (*loopbackTransport, serializer.IRPCSerializer) {
	t.Helper()

	m := master.New(master.Config{ServerID: 1}, nil, nil, seglog.NopReplicator{})
	require.NoError(t, m.SetTablets([]tablet.Tablet{
		{TableID: 0, Start: 0, End: math.MaxUint64, State: tablet.StateNormal},
	}))

	lt := &loopbackTransport{}
	s := serializer.NewBinarySerializer()
	srv := NewRPCServer(common.ServerConfig{LogLevel: "error"}, m, lt, s)
	srv.registerTransportHandler()
	return lt, s
}

// roundTrip pushes a request through the wire path and decodes the
// response.
func roundTrip(t *testing.T, lt *loopbackTransport, s serializer.IRPCSerializer, req *common.Message) *common.Message {
	t.Helper()
	data, err := s.Serialize(*req)
	require.NoError(t, err)

	respData := lt.handler(data)

	var resp common.Message
	require.NoError(t, s.Deserialize(respData, &resp))
	return &resp
}

func TestServerCreateReadWriteRemove(t *testing.T) {
	lt, s := newTestServer(t)

	// create
	resp := roundTrip(t, lt, s, common.NewCreateRequest(0, []byte("item0"), nil))
	require.NoError(t, resp.AsError())
	assert.Equal(t, uint64(0), resp.ObjectID)
	assert.Equal(t, uint64(1), resp.Version)

	// read
	resp = roundTrip(t, lt, s, common.NewReadRequest(0, 0, nil))
	require.NoError(t, resp.AsError())
	assert.Equal(t, []byte("item0"), resp.Value)
	assert.Equal(t, uint64(1), resp.Version)

	// write
	resp = roundTrip(t, lt, s, common.NewWriteRequest(0, 0, []byte("item0-v2"), nil))
	require.NoError(t, resp.AsError())
	assert.Equal(t, uint64(2), resp.Version)

	// remove
	resp = roundTrip(t, lt, s, common.NewRemoveRequest(0, 0, nil))
	require.NoError(t, resp.AsError())
	assert.Equal(t, uint64(2), resp.Version)

	// the object is gone
	resp = roundTrip(t, lt, s, common.NewReadRequest(0, 0, nil))
	err := resp.AsError()
	require.Error(t, err)
	assert.Equal(t, master.StatusObjectDoesntExist, master.StatusOf(err))
}

func TestServerReturnsTypedErrors(t *testing.T) {
	lt, s := newTestServer(t)

	// Unknown table.
	resp := roundTrip(t, lt, s, common.NewCreateRequest(4, []byte("x"), nil))
	err := resp.AsError()
	require.Error(t, err)
	assert.Equal(t, master.StatusTableDoesntExist, master.StatusOf(err))

	// Reject rules carry the current version back over the wire.
	resp = roundTrip(t, lt, s, common.NewCreateRequest(0, []byte("x"), nil))
	require.NoError(t, resp.AsError())

	resp = roundTrip(t, lt, s, common.NewReadRequest(0, 0, &master.RejectRules{VersionNeGiven: true, GivenVersion: 2}))
	err = resp.AsError()
	require.Error(t, err)
	assert.Equal(t, master.StatusWrongVersion, master.StatusOf(err))
	assert.Equal(t, uint64(1), master.VersionOf(err))
}

func TestServerPing(t *testing.T) {
	lt, s := newTestServer(t)

	resp := roundTrip(t, lt, s, common.NewPingRequest())
	require.NoError(t, resp.AsError())
	assert.True(t, resp.Ok)
}

func TestServerSetTablets(t *testing.T) {
	lt, s := newTestServer(t)

	resp := roundTrip(t, lt, s, common.NewSetTabletsRequest([]tablet.Tablet{
		{TableID: 2, Start: 0, End: 10, State: tablet.StateNormal},
	}))
	require.NoError(t, resp.AsError())

	// Table 0 is no longer served.
	resp = roundTrip(t, lt, s, common.NewReadRequest(0, 0, nil))
	err := resp.AsError()
	require.Error(t, err)
	assert.Equal(t, master.StatusTableDoesntExist, master.StatusOf(err))
}

func TestServerRejectsGarbage(t *testing.T) {
	lt, s := newTestServer(t)

	respData := lt.handler([]byte{0xde, 0xad})
	var resp common.Message
	require.NoError(t, s.Deserialize(respData, &resp))
	assert.Equal(t, common.MsgTError, resp.MsgType)
	assert.Error(t, resp.AsError())
}

func TestServerRejectsUnknownMessageType(t *testing.T) {
	lt, s := newTestServer(t)

	resp := roundTrip(t, lt, s, &common.Message{MsgType: common.MsgTStartReadingData})
	assert.Equal(t, common.MsgTError, resp.MsgType)
	assert.Error(t, resp.AsError())
}
