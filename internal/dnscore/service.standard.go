package dnscore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"

	"github.com/meidoworks/nekoq-dnsreplica/logging"
)

type DnsEndpoint struct {
	Storage DnsStorage
	Server  *dns.Server

	Addr string

	DebugPrintDnsRequest bool

	Handler DnsRecordHandler

	network string
	host    string
	bound   net.Addr
	log     *logrus.Entry
}

// NewDnsEndpoint takes an address like udp://127.0.0.1:5353.
func NewDnsEndpoint(addr string, storage DnsStorage, debug bool) (*DnsEndpoint, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "udp" && u.Scheme != "tcp" {
		return nil, ErrUnsupportedScheme
	}

	endpoint := new(DnsEndpoint)
	endpoint.Addr = addr
	endpoint.Storage = storage
	endpoint.network = u.Scheme
	endpoint.host = u.Host
	endpoint.Server = &dns.Server{
		Addr:    u.Host,
		Net:     u.Scheme,
		Handler: endpoint,
	}
	endpoint.DebugPrintDnsRequest = debug
	endpoint.Handler = NewRecordHandler(storage)
	endpoint.log = logging.Component("dns")

	return endpoint, nil
}

// Startup binds the socket and serves in the background.
func (d *DnsEndpoint) Startup() error {
	switch d.network {
	case "udp":
		pc, err := net.ListenPacket("udp", d.host)
		if err != nil {
			return err
		}
		d.Server.PacketConn = pc
		d.bound = pc.LocalAddr()
	default:
		ln, err := net.Listen("tcp", d.host)
		if err != nil {
			return err
		}
		d.Server.Listener = ln
		d.bound = ln.Addr()
	}
	go func() {
		if err := d.Server.ActivateAndServe(); err != nil {
			d.log.WithError(err).Error("[ERROR] dns endpoint stopped")
		}
	}()
	d.log.Info("[INFO] DNS endpoint is listening on ", d.network, "://", d.bound.String())
	return nil
}

// BoundAddr is the local socket address, valid after Startup.
func (d *DnsEndpoint) BoundAddr() string {
	if d.bound == nil {
		return d.host
	}
	return d.bound.String()
}

func (d *DnsEndpoint) Stop() error {
	if d.bound == nil {
		return nil
	}
	return d.Server.Shutdown()
}

func (d *DnsEndpoint) ServeDNS(w dns.ResponseWriter, r *dns.Msg) {
	defer func() {
		err := recover()
		if err != nil {
			d.log.Error("[ERROR] process dns request failed. information:", err)
		}
	}()

	reply := d.ProcessDnsMsg(r)
	if reply == nil {
		return
	}
	if err := w.WriteMsg(reply); err != nil {
		panic(err)
	}
}

func (d *DnsEndpoint) ProcessDnsMsg(r *dns.Msg) *dns.Msg {
	if r.Opcode != dns.OpcodeQuery {
		return new(dns.Msg).SetRcode(r, dns.RcodeNotImplemented)
	}
	if len(r.Question) != 1 {
		// treat question count != 1 as incorrectly-formatted message according to rfc9619
		reply := new(dns.Msg)
		return reply.SetRcodeFormatError(r)
	}

	ctx := NewRequestContext(context.Background())
	res, err := d.Handler.HandleQuestion(r, ctx)
	if d.DebugPrintDnsRequest {
		ctx.AddAnswerTrace(res, err)
		d.log.WithFields(ctx.Fields()).Debug("[DEBUG] dns request traced")
	}
	if errors.Is(err, ErrDoNotRespondResult) {
		return nil
	}
	if err != nil {
		d.log.WithError(err).Error(fmt.Sprint("[ERROR] dns question failed: ", r.Question[0].String()))
		return new(dns.Msg).SetRcode(r, dns.RcodeServerFailure)
	}
	return res
}
