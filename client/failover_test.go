package client

import (
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meidoworks/nekoq-dnsreplica/config"
)

// fakeServer answers every connection with a fixed reply after reading the request.
func fakeServer(t *testing.T, reply string) (string, *[]string) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = ln.Close()
	})
	var (
		lock     sync.Mutex
		requests []string
	)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			buf := make([]byte, 1024)
			n, _ := conn.Read(buf)
			lock.Lock()
			requests = append(requests, string(buf[:n]))
			lock.Unlock()
			_, _ = io.WriteString(conn, reply)
			_ = conn.Close()
		}
	}()
	return ln.Addr().String(), &requests
}

func deadAddress(t *testing.T) string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func newTestClient(primary, secondary string) (*FailoverClient, *[]string) {
	c := config.DefaultClientConfig()
	c.Primary = primary
	c.Secondary = secondary
	c.RetryDelayMs = 10
	c.DialTimeoutMs = 500
	f := NewFailoverClient(c)
	var attempts []string
	f.OnAttempt = func(server string, attempt int, err error) {
		attempts = append(attempts, server)
	}
	return f, &attempts
}

func TestSendUsesPrimary(t *testing.T) {
	primary, requests := fakeServer(t, "DNS Response: A record for example.com -> 192.0.2.1")
	secondary, _ := fakeServer(t, "from secondary")
	f, attempts := newTestClient(primary, secondary)

	reply := f.Send(context.Background(), "example.com:A")
	assert.Equal(t, "DNS Response: A record for example.com -> 192.0.2.1", reply)
	assert.Equal(t, []string{"example.com:A"}, *requests)
	assert.Empty(t, *attempts)
}

func TestSendFailsOverToSecondary(t *testing.T) {
	primary := deadAddress(t)
	secondary, requests := fakeServer(t, "Record added: A record for example.com -> 192.0.2.1")
	f, attempts := newTestClient(primary, secondary)

	start := time.Now()
	reply := f.Send(context.Background(), "ADD:example.com:A:192.0.2.1")
	assert.Equal(t, "Record added: A record for example.com -> 192.0.2.1", reply)
	assert.Equal(t, []string{primary, primary, primary}, *attempts)
	assert.Equal(t, []string{"ADD:example.com:A:192.0.2.1"}, *requests)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestSendTreatsEmptyReplyAsFailure(t *testing.T) {
	primary, _ := fakeServer(t, "")
	secondary, _ := fakeServer(t, "Record not found.")
	f, attempts := newTestClient(primary, secondary)

	assert.Equal(t, "Record not found.", f.Send(context.Background(), "example.com:A"))
	assert.Len(t, *attempts, 3)
}

func TestSendReportsBothServersUnavailable(t *testing.T) {
	primary := deadAddress(t)
	secondary := deadAddress(t)
	f, attempts := newTestClient(primary, secondary)

	reply := f.Send(context.Background(), "DELETE:example.com:A")
	assert.True(t, strings.HasPrefix(reply, "[ERROR] Both servers are unavailable."), reply)
	assert.Contains(t, reply, primary)
	assert.Contains(t, reply, secondary)
	assert.Equal(t, []string{primary, primary, primary, secondary}, *attempts)
}

func TestSendStopsRetryingWhenCancelled(t *testing.T) {
	f, attempts := newTestClient(deadAddress(t), deadAddress(t))
	f.RetryDelay = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	reply := f.Send(ctx, "example.com:A")
	assert.True(t, strings.HasPrefix(reply, "[ERROR] Both servers are unavailable."))
	assert.Len(t, *attempts, 1)
}

func TestValidateQuery(t *testing.T) {
	cases := []struct {
		query string
		kind  QueryKind
		err   string
	}{
		{query: "quit", kind: QueryQuit},
		{query: " QUIT ", kind: QueryQuit},
		{query: "ADD:example.com:A:192.168.1.1", kind: QueryAdd},
		{query: "add:example.com:AAAA:2001:db8::1", kind: QueryAdd},
		{query: "UPDATE:example.com:A:10.0.0.1", kind: QueryUpdate},
		{query: "DELETE:example.com:A", kind: QueryDelete},
		{query: "example.com:A", kind: QueryQuery},
		{query: "ADD:example.com:A", err: "[ERROR] Malformed ADD query. Example: ADD:example.com:A:192.168.1.1"},
		{query: "UPDATE:example.com", err: "[ERROR] Malformed UPDATE query. Example: UPDATE:example.com:A:192.168.1.1"},
		{query: "DELETE:example.com", err: "[ERROR] Malformed DELETE query. Example: DELETE:example.com:A"},
		{query: "example.com", err: "[ERROR] Malformed query. Example: example.com:A"},
	}
	for _, c := range cases {
		kind, err := ValidateQuery(c.query)
		if c.err != "" {
			require.EqualError(t, err, c.err, c.query)
			continue
		}
		require.NoError(t, err, c.query)
		assert.Equal(t, c.kind, kind, c.query)
	}
}
