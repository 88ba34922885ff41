package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/meidoworks/nekoq-dnsreplica/internal/shared"
	"github.com/meidoworks/nekoq-dnsreplica/logging"
)

const (
	DefaultMaxRequestSize = 1024
	DefaultMaxConnections = 256

	lingerTimeout  = 200 * time.Millisecond
	maxLingerBytes = 64 * 1024
)

type TextServiceConfig struct {
	Addr           string
	MaxConnections int64
	MaxRequestSize int
	// ReadTimeout bounds the wait for the request bytes. Zero waits forever.
	ReadTimeout time.Duration
}

// TextService serves the line protocol: one request and one reply per
// connection, then the connection is closed.
type TextService struct {
	config  *TextServiceConfig
	records *RecordService
	sem     *semaphore.Weighted

	listener net.Listener
	wg       sync.WaitGroup

	log *logrus.Entry
}

func NewTextService(config *TextServiceConfig, records *RecordService) *TextService {
	if config.MaxConnections <= 0 {
		config.MaxConnections = DefaultMaxConnections
	}
	if config.MaxRequestSize <= 0 {
		config.MaxRequestSize = DefaultMaxRequestSize
	}
	return &TextService{
		config:  config,
		records: records,
		sem:     semaphore.NewWeighted(config.MaxConnections),
		log:     logging.Component("text").WithField("role", records.Role().String()),
	}
}

func (t *TextService) Startup() error {
	ln, err := net.Listen("tcp", t.config.Addr)
	if err != nil {
		return err
	}
	t.listener = ln
	t.log.Info("[INFO] DNS Server is listening on ", ln.Addr().String())
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.serve()
	}()
	return nil
}

func (t *TextService) Addr() net.Addr {
	return t.listener.Addr()
}

// Stop closes the listener. In-flight connections finish on their own.
func (t *TextService) Stop() error {
	if t.listener == nil {
		return nil
	}
	err := t.listener.Close()
	t.wg.Wait()
	return err
}

func (t *TextService) serve() {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			t.log.WithError(err).Warn("[WARN] Failed to accept connection")
			continue
		}
		t.records.metrics.ConnectionsTotal.Add(1)
		if !t.sem.TryAcquire(1) {
			t.records.metrics.ConnectionsRejected.Add(1)
			go t.reject(conn)
			continue
		}
		go func() {
			defer t.sem.Release(1)
			t.handleConn(conn)
		}()
	}
}

func (t *TextService) reject(conn net.Conn) {
	defer closeConn(conn)
	t.log.Warn("[WARN] Too many connections, rejecting ", conn.RemoteAddr())
	t.reply(conn, ReplyServerBusy)
	discardInput(conn)
}

func (t *TextService) handleConn(conn net.Conn) {
	log := t.log.WithField("client", conn.RemoteAddr().String())
	log.Debug("[DEBUG] Connection established")
	defer func() {
		closeConn(conn)
		log.Debug("[DEBUG] Connection closed")
	}()

	if t.config.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(t.config.ReadTimeout))
	}
	buf := make([]byte, t.config.MaxRequestSize+1)
	n, err := conn.Read(buf)
	if n == 0 {
		if err != nil {
			log.WithError(err).Debug("[DEBUG] Nothing read from connection")
		}
		return
	}
	if n > t.config.MaxRequestSize {
		t.reply(conn, FormatRequestTooLarge(t.config.MaxRequestSize))
		discardInput(conn)
		return
	}
	raw := strings.TrimRight(string(buf[:n]), "\r\n")
	t.reply(conn, t.Dispatch(context.Background(), raw))
}

func (t *TextService) reply(conn net.Conn, response string) {
	if _, err := conn.Write([]byte(response)); err != nil {
		t.log.WithError(err).Error("[ERROR] Failed to send reply")
	}
}

// Dispatch decodes one request and runs it against the record service,
// always producing a reply.
func (t *TextService) Dispatch(ctx context.Context, raw string) (response string) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("[ERROR] process request failed. information:", r)
			response = FormatInternalError(r)
		}
	}()

	req, err := DecodeRequest(raw)
	if err != nil {
		t.records.metrics.MalformedRequestsTotal.Add(1)
		var malformed *MalformedRequestError
		if errors.As(err, &malformed) {
			return malformed.Reply
		}
		return FormatInternalError(err)
	}

	switch req.Kind {
	case RequestAdd, RequestUpdate:
		if err := t.records.AddOrUpdate(ctx, req.Domain, req.RecordType, req.Value); err != nil {
			t.log.WithError(err).Error("[ERROR] Failed to write record: ", raw)
			if req.Kind == RequestUpdate {
				return fmt.Sprint("[ERROR] Failed to update record: ", err)
			}
			return fmt.Sprint("[ERROR] Failed to add record: ", err)
		}
		return FormatAddedReply(req.Domain, req.RecordType, req.Value)
	case RequestDelete:
		if err := t.records.Delete(ctx, req.Domain, req.RecordType); err != nil {
			t.log.WithError(err).Error("[ERROR] Failed to delete record: ", raw)
			return fmt.Sprint("[ERROR] Failed to delete record: ", err)
		}
		return FormatDeletedReply(req.Domain, req.RecordType)
	default:
		res, err := t.records.Query(ctx, req.Domain, req.RecordType)
		if errors.Is(err, shared.ErrStorageNotFound) {
			return ReplyNotFound
		}
		if err != nil {
			t.log.WithError(err).Error("[ERROR] Failed to query record: ", raw)
			return fmt.Sprint("[ERROR] Failed to query record: ", err)
		}
		return FormatQueryReply(res)
	}
}

// discardInput half-closes the connection and swallows unread request bytes,
// otherwise closing would reset the connection before the reply is read.
func discardInput(conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
	}
	_ = conn.SetReadDeadline(time.Now().Add(lingerTimeout))
	_, _ = io.Copy(io.Discard, io.LimitReader(conn, maxLingerBytes))
}

func closeConn(conn net.Conn) {
	_ = conn.Close()
}
