package dnscore

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/miekg/dns"

	"github.com/meidoworks/nekoq-dnsreplica/internal/shared"
)

type NotFoundHandler struct{}

func (NotFoundHandler) HandleQuestion(m *dns.Msg, ctx *RequestContext) (*dns.Msg, error) {
	ctx.AddTraceInfo("NotFoundHandler")
	reply := new(dns.Msg)
	return reply.SetRcode(m, dns.RcodeNameError), nil
}

// RecordHandler answers any record type from the storage. The stored value
// is used as the RDATA text of the answer.
type RecordHandler struct {
	DnsStorage

	NotFound DnsRecordHandler
	TTL      uint32
}

func NewRecordHandler(storage DnsStorage) DnsRecordHandler {
	return &RecordHandler{
		DnsStorage: storage,
		NotFound:   NotFoundHandler{},
		TTL:        DefaultResponseTTL,
	}
}

// QuestionIdentity maps a question to the stored (domain, type) pair.
func QuestionIdentity(q dns.Question) (string, string) {
	domain := strings.TrimSuffix(strings.ToLower(q.Name), ".")
	recordType, ok := dns.TypeToString[q.Qtype]
	if !ok {
		recordType = "TYPE" + strconv.Itoa(int(q.Qtype))
	}
	return domain, recordType
}

func (r *RecordHandler) HandleQuestion(m *dns.Msg, ctx *RequestContext) (*dns.Msg, error) {
	q := m.Question[0]
	domain, recordType := QuestionIdentity(q)
	ctx.AddTraceInfo("RecordHandler[" + domain + " " + recordType + "]")

	result, err := r.DnsStorage.ResolveRecord(ctx.Ctx, domain, recordType)
	if errors.Is(err, shared.ErrStorageNotFound) || errors.Is(err, shared.ErrInvalidArgument) {
		return r.NotFound.HandleQuestion(m, ctx)
	} else if err != nil {
		return nil, err
	}

	rr, err := r.answer(q, recordType, result)
	if err != nil {
		return nil, fmt.Errorf("stored value of %s %s is not valid rdata: %w", domain, recordType, err)
	}
	if rr == nil {
		return nil, fmt.Errorf("stored value of %s %s is empty", domain, recordType)
	}

	reply := new(dns.Msg)
	reply.SetReply(m)
	reply.Authoritative = true
	reply.Answer = append(reply.Answer, rr)
	return reply, nil
}

func (r *RecordHandler) answer(q dns.Question, recordType, value string) (dns.RR, error) {
	// a TXT value in zone syntax is taken as is, any other one is raw text
	if q.Qtype == dns.TypeTXT && !strings.HasPrefix(value, "\"") {
		return &dns.TXT{
			Hdr: dns.RR_Header{Name: dns.Fqdn(q.Name), Rrtype: dns.TypeTXT, Class: dns.ClassINET, Ttl: r.TTL},
			Txt: txtStrings(value),
		}, nil
	}
	return dns.NewRR(fmt.Sprintf("%s %d %s %s %s", dns.Fqdn(q.Name), r.TTL, dns.ClassToString[dns.ClassINET], recordType, value))
}

// txtStrings splits a raw value into character-strings of at most 255 bytes
// in the escaped form dns.TXT holds: \" and \\ for quote and backslash,
// \DDD for bytes outside printable ASCII.
func txtStrings(value string) []string {
	const maxLen = 255
	var out []string
	for len(value) > 0 || out == nil {
		n := min(len(value), maxLen)
		out = append(out, escapeTxt(value[:n]))
		value = value[n:]
	}
	return out
}

func escapeTxt(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c < ' ' || c > '~':
			fmt.Fprintf(&b, "\\%03d", c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
