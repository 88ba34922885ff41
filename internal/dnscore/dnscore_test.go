package dnscore

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meidoworks/nekoq-dnsreplica/internal/shared"
)

type mapStorage map[string]string

func (m mapStorage) ResolveRecord(_ context.Context, domain, recordType string) (string, error) {
	v, ok := m[shared.CacheKey(domain, recordType)]
	if !ok {
		return "", shared.ErrStorageNotFound
	}
	return v, nil
}

func newTestEndpoint(t *testing.T, storage DnsStorage) *DnsEndpoint {
	ep, err := NewDnsEndpoint("udp://127.0.0.1:0", storage, true)
	require.NoError(t, err)
	return ep
}

func question(name string, qtype uint16) *dns.Msg {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	return m
}

func TestQuestionIdentity(t *testing.T) {
	d, rt := QuestionIdentity(dns.Question{Name: "Example.COM.", Qtype: dns.TypeAAAA, Qclass: dns.ClassINET})
	assert.Equal(t, "example.com", d)
	assert.Equal(t, "AAAA", rt)
}

func TestProcessDnsMsgAnswers(t *testing.T) {
	ep := newTestEndpoint(t, mapStorage{
		"example.com:A":    "192.0.2.1",
		"example.com:AAAA": "2001:db8::1",
		"example.com:TXT":  "hello world",
	})

	res := ep.ProcessDnsMsg(question("example.com", dns.TypeA))
	require.Equal(t, dns.RcodeSuccess, res.Rcode)
	require.Len(t, res.Answer, 1)
	a, ok := res.Answer[0].(*dns.A)
	require.True(t, ok)
	assert.Equal(t, "192.0.2.1", a.A.String())
	assert.Equal(t, uint32(DefaultResponseTTL), a.Hdr.Ttl)

	res = ep.ProcessDnsMsg(question("EXAMPLE.com", dns.TypeAAAA))
	require.Len(t, res.Answer, 1)
	aaaa, ok := res.Answer[0].(*dns.AAAA)
	require.True(t, ok)
	assert.Equal(t, "2001:db8::1", aaaa.AAAA.String())

	res = ep.ProcessDnsMsg(question("example.com", dns.TypeTXT))
	require.Len(t, res.Answer, 1)
	txt, ok := res.Answer[0].(*dns.TXT)
	require.True(t, ok)
	assert.Equal(t, []string{"hello world"}, txt.Txt)
}

func TestTXTAnswerKeepsRawBytes(t *testing.T) {
	raw := "tab\there \u00e9 say \"hi\" \\o/"
	ep := newTestEndpoint(t, mapStorage{
		"raw.example:TXT":    raw,
		"long.example:TXT":   strings.Repeat("x", 300),
		"quoted.example:TXT": `"part one" "part two"`,
	})

	res := ep.ProcessDnsMsg(question("raw.example", dns.TypeTXT))
	require.Equal(t, dns.RcodeSuccess, res.Rcode)
	wire, err := res.Pack()
	require.NoError(t, err)
	assert.True(t, bytes.Contains(wire, []byte(raw)), "wire form must carry the stored bytes")

	var decoded dns.Msg
	require.NoError(t, decoded.Unpack(wire))
	require.Len(t, decoded.Answer, 1)
	txt := decoded.Answer[0].(*dns.TXT)
	assert.Equal(t, []string{`tab\009here \195\169 say \"hi\" \\o/`}, txt.Txt)

	res = ep.ProcessDnsMsg(question("long.example", dns.TypeTXT))
	require.Len(t, res.Answer, 1)
	long := res.Answer[0].(*dns.TXT)
	require.Len(t, long.Txt, 2)
	assert.Len(t, long.Txt[0], 255)
	assert.Len(t, long.Txt[1], 45)
	_, err = res.Pack()
	require.NoError(t, err)

	res = ep.ProcessDnsMsg(question("quoted.example", dns.TypeTXT))
	require.Len(t, res.Answer, 1)
	assert.Equal(t, []string{"part one", "part two"}, res.Answer[0].(*dns.TXT).Txt)
}

func TestProcessDnsMsgFailures(t *testing.T) {
	ep := newTestEndpoint(t, mapStorage{
		"broken.example:A": "not-an-ip",
	})

	res := ep.ProcessDnsMsg(question("missing.example", dns.TypeA))
	assert.Equal(t, dns.RcodeNameError, res.Rcode)

	res = ep.ProcessDnsMsg(question("broken.example", dns.TypeA))
	assert.Equal(t, dns.RcodeServerFailure, res.Rcode)

	m := question("a.example", dns.TypeA)
	m.Question = append(m.Question, dns.Question{Name: "b.example.", Qtype: dns.TypeA, Qclass: dns.ClassINET})
	res = ep.ProcessDnsMsg(m)
	assert.Equal(t, dns.RcodeFormatError, res.Rcode)
}

func TestDnsEndpointOverUdp(t *testing.T) {
	ep := newTestEndpoint(t, mapStorage{"example.com:A": "192.0.2.1"})
	require.NoError(t, ep.Startup())
	defer ep.Stop()

	c := new(dns.Client)
	res, _, err := c.Exchange(question("example.com", dns.TypeA), ep.BoundAddr())
	require.NoError(t, err)
	require.Len(t, res.Answer, 1)
	assert.Equal(t, "192.0.2.1", res.Answer[0].(*dns.A).A.String())

	res, _, err = c.Exchange(question("nothing.example", dns.TypeA), ep.BoundAddr())
	require.NoError(t, err)
	assert.Equal(t, dns.RcodeNameError, res.Rcode)
}

func TestNewDnsEndpointRejectsScheme(t *testing.T) {
	_, err := NewDnsEndpoint("http://127.0.0.1:53", mapStorage{}, false)
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestRequestContextTrace(t *testing.T) {
	ctx := NewRequestContext(context.Background())
	ctx.AddTraceInfo("RecordHandler[example.com A]")
	reply := new(dns.Msg).SetRcode(question("example.com", dns.TypeA), dns.RcodeNameError)
	ctx.AddAnswerTrace(reply, nil)

	fields := ctx.Fields()
	assert.Equal(t, "RecordHandler[example.com A] -> Rcode[NXDOMAIN]", fields["trace"])
	assert.NotEmpty(t, fields["elapsed"])
}
