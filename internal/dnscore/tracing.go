package dnscore

import (
	"context"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// RequestContext follows one DNS question through the handlers. The trace is
// only logged in debug mode.
type RequestContext struct {
	Ctx context.Context

	start      time.Time
	traceInfos []string
}

func NewRequestContext(ctx context.Context) *RequestContext {
	return &RequestContext{
		Ctx:        ctx,
		start:      time.Now(),
		traceInfos: make([]string, 0, 4),
	}
}

func (r *RequestContext) AddTraceInfo(info string) {
	r.traceInfos = append(r.traceInfos, info)
}

// AddAnswerTrace records the answers or the rcode of the reply.
func (r *RequestContext) AddAnswerTrace(reply *dns.Msg, err error) {
	switch {
	case err != nil:
		r.AddTraceInfo("Error[" + err.Error() + "]")
	case reply == nil:
		r.AddTraceInfo("NoReply")
	case len(reply.Answer) == 0:
		r.AddTraceInfo("Rcode[" + dns.RcodeToString[reply.Rcode] + "]")
	default:
		answers := make([]string, 0, len(reply.Answer))
		for _, v := range reply.Answer {
			answers = append(answers, v.String())
		}
		r.AddTraceInfo("Answer[" + strings.Join(answers, ",") + "]")
	}
}

func (r *RequestContext) Fields() logrus.Fields {
	return logrus.Fields{
		"trace":   strings.Join(r.traceInfos, " -> "),
		"elapsed": time.Since(r.start).String(),
	}
}
