package dnscore

import (
	"context"

	"github.com/miekg/dns"
)

type DnsRecordHandler interface {
	HandleQuestion(m *dns.Msg, ctx *RequestContext) (*dns.Msg, error)
}

// DnsStorage resolves a record value by domain and type mnemonic ("A", "TXT", ...).
type DnsStorage interface {
	ResolveRecord(ctx context.Context, domain, recordType string) (string, error)
}
