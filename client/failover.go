package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/meidoworks/nekoq-dnsreplica/config"
	"github.com/meidoworks/nekoq-dnsreplica/logging"
)

const (
	maxReplySize     = 64 * 1024
	defaultIOTimeout = 10 * time.Second
)

var ErrEmptyReply = errors.New("empty reply")

// FailoverClient sends text requests to the primary, retrying on connection
// failures, and falls back to the secondary once the retries are spent.
// Every request kind takes the same path.
type FailoverClient struct {
	Primary       string
	Secondary     string
	RetryAttempts int
	RetryDelay    time.Duration
	DialTimeout   time.Duration
	IOTimeout     time.Duration

	// OnAttempt, when set, is told about every failed attempt.
	OnAttempt func(server string, attempt int, err error)

	log *logrus.Entry
}

func NewFailoverClient(c config.ClientConfig) *FailoverClient {
	f := &FailoverClient{
		Primary:       c.Primary,
		Secondary:     c.Secondary,
		RetryAttempts: c.RetryAttempts,
		RetryDelay:    c.RetryDelay(),
		DialTimeout:   c.DialTimeout(),
		IOTimeout:     defaultIOTimeout,
		log:           logging.Component("client"),
	}
	if f.RetryAttempts <= 0 {
		f.RetryAttempts = 1
	}
	return f
}

// Send never fails: when neither server answers the reply is an error text
// naming both servers.
func (f *FailoverClient) Send(ctx context.Context, query string) string {
	for attempt := 1; attempt <= f.RetryAttempts; attempt++ {
		f.log.Info("[INFO] Sending query to Primary DNS Server...")
		reply, err := f.exchange(ctx, f.Primary, query)
		if err == nil {
			f.log.Info("[INFO] Query: ", query, " | Response: ", reply)
			return reply
		}
		f.failed(f.Primary, attempt, err)
		f.log.WithError(err).Warn(fmt.Sprintf("[WARN] Attempt %d: Failed to connect to Primary Server.", attempt))
		if attempt == f.RetryAttempts {
			break
		}
		f.log.Info("[INFO] Retrying in ", f.RetryDelay)
		select {
		case <-ctx.Done():
			return f.unavailable(query)
		case <-time.After(f.RetryDelay):
		}
	}

	f.log.Info("[INFO] Primary server failed. Trying Secondary DNS Server...")
	reply, err := f.exchange(ctx, f.Secondary, query)
	if err == nil {
		f.log.Info("[INFO] Query: ", query, " | Response: ", reply)
		return reply
	}
	f.failed(f.Secondary, 1, err)
	return f.unavailable(query)
}

func (f *FailoverClient) unavailable(query string) string {
	reply := fmt.Sprintf("[ERROR] Both servers are unavailable. Primary %s and secondary %s could not be reached.", f.Primary, f.Secondary)
	f.log.Error("[ERROR] Query: ", query, " | Response: Both servers unavailable.")
	return reply
}

func (f *FailoverClient) failed(server string, attempt int, err error) {
	if f.OnAttempt != nil {
		f.OnAttempt(server, attempt, err)
	}
}

// exchange runs one request on a fresh connection. The server closes the
// connection after its reply.
func (f *FailoverClient) exchange(ctx context.Context, server, query string) (string, error) {
	d := net.Dialer{Timeout: f.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", server)
	if err != nil {
		return "", err
	}
	defer func(conn net.Conn) {
		_ = conn.Close()
	}(conn)
	if f.IOTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(f.IOTimeout))
	}
	if _, err := conn.Write([]byte(query)); err != nil {
		return "", err
	}
	dat, err := io.ReadAll(io.LimitReader(conn, maxReplySize))
	if err != nil && len(dat) == 0 {
		return "", err
	}
	if len(dat) == 0 {
		return "", ErrEmptyReply
	}
	return string(dat), nil
}

// QuerySender delivers one text protocol query and returns the reply line.
type QuerySender interface {
	Send(ctx context.Context, query string) string
}

var (
	_ QuerySender = new(FailoverClient)
	_ QuerySender = new(HttpServiceClient)
)

type QueryKind int

const (
	QueryQuit QueryKind = iota + 1
	QueryAdd
	QueryUpdate
	QueryDelete
	QueryQuery
)

func (k QueryKind) String() string {
	switch k {
	case QueryQuit:
		return "QUIT"
	case QueryAdd:
		return "ADD"
	case QueryUpdate:
		return "UPDATE"
	case QueryDelete:
		return "DELETE"
	case QueryQuery:
		return "QUERY"
	default:
		return "UNKNOWN"
	}
}

// MalformedQueryError is shown to the user instead of sending the query.
type MalformedQueryError struct {
	Example string
	Kind    string
}

func (e *MalformedQueryError) Error() string {
	if e.Kind == "" {
		return "[ERROR] Malformed query. Example: " + e.Example
	}
	return "[ERROR] Malformed " + e.Kind + " query. Example: " + e.Example
}

// ValidateQuery checks the shape of user input before it is sent.
func ValidateQuery(query string) (QueryKind, error) {
	q := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case q == "QUIT":
		return QueryQuit, nil
	case strings.HasPrefix(q, "ADD:"):
		if len(strings.SplitN(q, ":", 4)) == 4 {
			return QueryAdd, nil
		}
		return 0, &MalformedQueryError{Kind: "ADD", Example: "ADD:example.com:A:192.168.1.1"}
	case strings.HasPrefix(q, "UPDATE:"):
		if len(strings.SplitN(q, ":", 4)) == 4 {
			return QueryUpdate, nil
		}
		return 0, &MalformedQueryError{Kind: "UPDATE", Example: "UPDATE:example.com:A:192.168.1.1"}
	case strings.HasPrefix(q, "DELETE:"):
		if len(strings.Split(q, ":")) == 3 {
			return QueryDelete, nil
		}
		return 0, &MalformedQueryError{Kind: "DELETE", Example: "DELETE:example.com:A"}
	default:
		if len(strings.Split(q, ":")) == 2 {
			return QueryQuery, nil
		}
		return 0, &MalformedQueryError{Example: "example.com:A"}
	}
}
