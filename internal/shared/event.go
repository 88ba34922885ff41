package shared

import (
	"strings"
)

type Action string

const (
	ActionAdd    Action = "ADD"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Event describes one accepted write. Its text form is shared by the
// replication channel and the pending backlog:
//
//	ADD:<domain>:<record_type>:<value>
//	UPDATE:<domain>:<record_type>:<value>
//	DELETE:<domain>:<record_type>
type Event struct {
	Action     Action
	Domain     string
	RecordType string
	Value      string
}

func NewUpsertEvent(r Record) Event {
	return Event{Action: ActionAdd, Domain: r.Domain, RecordType: r.RecordType, Value: r.Value}
}

func NewDeleteEvent(domain, recordType string) Event {
	return Event{Action: ActionDelete, Domain: domain, RecordType: recordType}
}

func (e Event) Record() Record {
	return Record{Domain: e.Domain, RecordType: e.RecordType, Value: e.Value}
}

func (e Event) String() string {
	switch e.Action {
	case ActionDelete:
		return strings.Join([]string{string(e.Action), e.Domain, e.RecordType}, keySeparator)
	default:
		return strings.Join([]string{string(e.Action), e.Domain, e.RecordType, e.Value}, keySeparator)
	}
}

// ParseEvent decodes the text form. The value is the remainder after the third
// separator, so values such as IPv6 addresses survive the round trip.
func ParseEvent(s string) (Event, error) {
	parts := strings.SplitN(s, keySeparator, 4)
	if len(parts) < 3 {
		return Event{}, ErrMalformedMessage
	}
	ev := Event{
		Action:     Action(parts[0]),
		Domain:     parts[1],
		RecordType: parts[2],
	}
	switch ev.Action {
	case ActionAdd, ActionUpdate:
		if len(parts) != 4 {
			return Event{}, ErrMalformedMessage
		}
		ev.Value = parts[3]
	case ActionDelete:
		if len(parts) != 3 {
			return Event{}, ErrMalformedMessage
		}
	default:
		return Event{}, ErrUnknownAction
	}
	if err := ValidateIdentity(ev.Domain, ev.RecordType); err != nil {
		return Event{}, ErrMalformedMessage
	}
	return ev, nil
}
