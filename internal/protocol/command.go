// Package protocol decodes "{officeId}:{command}" messages and renders the
// text lines the server sends back.
package protocol

import (
	"errors"
	"strconv"
	"strings"
)

var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrInvalidOfficeID  = errors.New("invalid office id")
)

type CommandKind int

const (
	CommandUnknown CommandKind = iota
	CommandNewTicket
	CommandNextTicket
	CommandQueueStatus
)

var commandNames = map[string]CommandKind{
	"newticket":   CommandNewTicket,
	"nextticket":  CommandNextTicket,
	"queuestatus": CommandQueueStatus,
}

func (k CommandKind) String() string {
	for name, kind := range commandNames {
		if kind == k {
			return name
		}
	}
	return "unknown"
}

// Command is a decoded client message. Raw keeps the original text so
// unknown commands can be echoed back.
type Command struct {
	Kind     CommandKind
	OfficeID int64
	Raw      string
}

// ParseCommand decodes raw. Fields after the command token are ignored and
// trailing empty fields do not count, so "3:" is malformed.
func ParseCommand(raw string) (Command, error) {
	fields := strings.Split(raw, ":")
	for len(fields) > 0 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}
	if len(fields) < 2 {
		return Command{Raw: raw}, ErrMalformedMessage
	}

	officeID, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil || officeID < 0 {
		return Command{Raw: raw}, ErrInvalidOfficeID
	}

	kind, ok := commandNames[strings.ToLower(strings.TrimSpace(fields[1]))]
	if !ok {
		kind = CommandUnknown
	}
	return Command{Kind: kind, OfficeID: officeID, Raw: raw}, nil
}

// Format renders the wire form of a known command.
func (c Command) Format() string {
	return strconv.FormatInt(c.OfficeID, 10) + ":" + c.Kind.String()
}
