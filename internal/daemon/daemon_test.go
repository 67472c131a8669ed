package daemon

import (
	"bufio"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gandalfthegui/aoe/internal/orchestrator"
	"github.com/gandalfthegui/aoe/internal/proto"
	"github.com/gandalfthegui/aoe/internal/storage"
)

func newTestDaemon(t *testing.T) (*Daemon, string) {
	t.Helper()
	tmp := t.TempDir()
	store, err := storage.New(tmp)
	require.NoError(t, err)
	orch := &orchestrator.Orchestrator{
		Store:      store,
		RuntimeFor: orchestrator.NewRuntimeFactory(),
		HomeDir:    tmp,
	}
	d := New(orch, storage.DefaultProfile)
	socketPath := filepath.Join(tmp, "aoed.sock")
	go d.Run(socketPath)
	time.Sleep(50 * time.Millisecond)
	return d, socketPath
}

func roundTrip(t *testing.T, socketPath string, req proto.Request) proto.Response {
	t.Helper()
	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, proto.WriteRequest(conn, req))
	resp, err := proto.ReadResponse(bufio.NewReader(conn))
	require.NoError(t, err)
	return resp
}

func TestCreateAndListRoundTrip(t *testing.T) {
	_, socketPath := newTestDaemon(t)

	resp := roundTrip(t, socketPath, proto.Request{
		Type: proto.ReqCreate,
		Params: map[string]string{
			"title": "demo",
			"path":  "/tmp/demo",
			"tool":  "claude",
		},
	})
	require.True(t, resp.OK, resp.Error)

	resp = roundTrip(t, socketPath, proto.Request{Type: proto.ReqList})
	require.True(t, resp.OK, resp.Error)
	require.NotNil(t, resp.List)
}

func TestUnknownRequestType(t *testing.T) {
	_, socketPath := newTestDaemon(t)
	resp := roundTrip(t, socketPath, proto.Request{Type: "bogus"})
	require.False(t, resp.OK)
}
