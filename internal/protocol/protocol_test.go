package protocol

import (
	"bufio"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthurguyader/sec-lsm-manager/internal/app"
	"github.com/arthurguyader/sec-lsm-manager/internal/apperr"
	"github.com/arthurguyader/sec-lsm-manager/internal/dispatch"
)

type noopInstaller struct{}

func (noopInstaller) Install(string, []app.PathEntry) error { return nil }
func (noopInstaller) Uninstall(string) error                { return nil }

func TestListenUnknownScheme(t *testing.T) {
	_, err := Listen("bogus:whatever", nil, nil)
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))
}

func TestListenMalformedSpec(t *testing.T) {
	_, err := Listen("no-colon-here", nil, nil)
	require.Error(t, err)
}

func TestServeRoundTrip(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "test.sock")
	srv, err := Listen("unix:"+sock, func() *dispatch.Session {
		return dispatch.NewSession(app.New(nil), noopInstaller{})
	}, nil)
	require.NoError(t, err)
	defer srv.Close()

	go srv.Serve()

	conn, err := net.DialTimeout("unix", sock, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	fmt.Fprintf(conn, "id myapp\n")

	scanner := bufio.NewScanner(conn)
	require.True(t, scanner.Scan())
	assert.Equal(t, "OK 0", scanner.Text())
	require.True(t, scanner.Scan())
	assert.Equal(t, "id set", scanner.Text())
	require.True(t, scanner.Scan())
	assert.Equal(t, "", scanner.Text(), "blank line terminates the reply")
}

func TestServeBatchLineProducesOneReplyBlockPerCommand(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "test.sock")
	srv, err := Listen("unix:"+sock, func() *dispatch.Session {
		return dispatch.NewSession(app.New(nil), noopInstaller{})
	}, nil)
	require.NoError(t, err)
	defer srv.Close()

	go srv.Serve()

	conn, err := net.DialTimeout("unix", sock, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	fmt.Fprintf(conn, "id x ; path /tmp/x tmp ; install\n")

	scanner := bufio.NewScanner(conn)

	require.True(t, scanner.Scan())
	assert.Equal(t, "OK 0", scanner.Text())
	require.True(t, scanner.Scan())
	assert.Equal(t, "id set", scanner.Text())
	require.True(t, scanner.Scan())
	assert.Equal(t, "", scanner.Text())

	require.True(t, scanner.Scan())
	assert.Equal(t, "OK 0", scanner.Text())
	require.True(t, scanner.Scan())
	assert.Contains(t, scanner.Text(), "add path")
	require.True(t, scanner.Scan())
	assert.Equal(t, "", scanner.Text())

	require.True(t, scanner.Scan())
	assert.Equal(t, "OK 0", scanner.Text())
	require.True(t, scanner.Scan())
	assert.Equal(t, "install success", scanner.Text())
	require.True(t, scanner.Scan())
	assert.Equal(t, "", scanner.Text())
}

func TestServeBatchStopsAtFirstError(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "test.sock")
	srv, err := Listen("unix:"+sock, func() *dispatch.Session {
		return dispatch.NewSession(app.New(nil), noopInstaller{})
	}, nil)
	require.NoError(t, err)
	defer srv.Close()

	go srv.Serve()

	conn, err := net.DialTimeout("unix", sock, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	fmt.Fprintf(conn, "install ; id x\n")

	scanner := bufio.NewScanner(conn)
	require.True(t, scanner.Scan())
	assert.Equal(t, "ERR -1", scanner.Text(), "install fails precondition (no id set yet)")
	for scanner.Scan() && scanner.Text() != "" {
	}

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	buf := make([]byte, 16)
	_, err = conn.Read(buf)
	assert.Error(t, err, "no reply for 'id x': the batch stopped after install's error")
}

func TestServeQuitClosesConnectionHandling(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "test.sock")
	srv, err := Listen("unix:"+sock, func() *dispatch.Session {
		return dispatch.NewSession(app.New(nil), noopInstaller{})
	}, nil)
	require.NoError(t, err)
	defer srv.Close()

	go srv.Serve()

	conn, err := net.DialTimeout("unix", sock, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	fmt.Fprintf(conn, "quit\n")
	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	buf := make([]byte, 16)
	_, err = conn.Read(buf)
	assert.Error(t, err, "server closes the connection without replying to quit")
}
