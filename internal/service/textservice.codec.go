package service

import (
	"fmt"
	"strings"

	"github.com/meidoworks/nekoq-dnsreplica/internal/shared"
)

type RequestKind int

const (
	RequestQuery RequestKind = iota + 1
	RequestAdd
	RequestUpdate
	RequestDelete
)

const (
	prefixAdd    = "ADD:"
	prefixUpdate = "UPDATE:"
	prefixDelete = "DELETE:"
)

const (
	ReplyNotFound        = "Record not found."
	ReplyMalformedAdd    = "[ERROR] Malformed ADD query. Use the format: ADD:<domain>:<record_type>:<value>"
	ReplyMalformedUpdate = "[ERROR] Malformed UPDATE query. Use the format: UPDATE:<domain>:<record_type>:<value>"
	ReplyMalformedDelete = "[ERROR] Malformed DELETE query. Use the format: DELETE:<domain>:<record_type>"
	ReplyMalformedQuery  = "[ERROR] Malformed query. Use the format: <domain>:<record_type>"
	ReplyServerBusy      = "[ERROR] Server busy, please retry later."
)

type Request struct {
	Kind       RequestKind
	Domain     string
	RecordType string
	Value      string
}

// MalformedRequestError carries the reply describing the expected format.
type MalformedRequestError struct {
	Kind  RequestKind
	Reply string
}

func (e *MalformedRequestError) Error() string {
	return e.Reply
}

// DecodeRequest decodes one text request by its prefix:
//
//	ADD:<domain>:<type>:<value>
//	UPDATE:<domain>:<type>:<value>
//	DELETE:<domain>:<type>
//	<domain>:<type>
func DecodeRequest(raw string) (Request, error) {
	switch {
	case strings.HasPrefix(raw, prefixAdd):
		return decodeUpsert(RequestAdd, raw, ReplyMalformedAdd)
	case strings.HasPrefix(raw, prefixUpdate):
		return decodeUpsert(RequestUpdate, raw, ReplyMalformedUpdate)
	case strings.HasPrefix(raw, prefixDelete):
		parts := strings.Split(raw, ":")
		if len(parts) != 3 || shared.ValidateIdentity(parts[1], parts[2]) != nil {
			return Request{}, &MalformedRequestError{Kind: RequestDelete, Reply: ReplyMalformedDelete}
		}
		return Request{Kind: RequestDelete, Domain: parts[1], RecordType: parts[2]}, nil
	default:
		parts := strings.Split(raw, ":")
		if len(parts) != 2 || shared.ValidateIdentity(parts[0], parts[1]) != nil {
			return Request{}, &MalformedRequestError{Kind: RequestQuery, Reply: ReplyMalformedQuery}
		}
		return Request{Kind: RequestQuery, Domain: parts[0], RecordType: parts[1]}, nil
	}
}

// The value is everything after the third separator so AAAA values keep their colons.
func decodeUpsert(kind RequestKind, raw, malformed string) (Request, error) {
	parts := strings.SplitN(raw, ":", 4)
	if len(parts) != 4 || shared.ValidateIdentity(parts[1], parts[2]) != nil {
		return Request{}, &MalformedRequestError{Kind: kind, Reply: malformed}
	}
	return Request{Kind: kind, Domain: parts[1], RecordType: parts[2], Value: parts[3]}, nil
}

func (r Request) String() string {
	switch r.Kind {
	case RequestAdd:
		return prefixAdd + r.Domain + ":" + r.RecordType + ":" + r.Value
	case RequestUpdate:
		return prefixUpdate + r.Domain + ":" + r.RecordType + ":" + r.Value
	case RequestDelete:
		return prefixDelete + r.Domain + ":" + r.RecordType
	default:
		return r.Domain + ":" + r.RecordType
	}
}

func FormatQueryReply(res QueryResult) string {
	if res.FromCache {
		return fmt.Sprintf("DNS Response (from cache): %s record for %s -> %s", res.Record.RecordType, res.Record.Domain, res.Record.Value)
	}
	return fmt.Sprintf("DNS Response: %s record for %s -> %s", res.Record.RecordType, res.Record.Domain, res.Record.Value)
}

func FormatAddedReply(domain, recordType, value string) string {
	return fmt.Sprintf("Record added: %s record for %s -> %s", recordType, domain, value)
}

func FormatDeletedReply(domain, recordType string) string {
	return fmt.Sprintf("Record deleted: %s record for %s", recordType, domain)
}

func FormatRequestTooLarge(limit int) string {
	return fmt.Sprintf("[ERROR] Request too large. Max request size is %d bytes.", limit)
}

func FormatInternalError(err any) string {
	return fmt.Sprint("[ERROR] Internal server error: ", err)
}
