// Package event defines the gateway wire model and the classifier that turns
// raw frames into typed message events.
package event

import (
	"bytes"
	"encoding/json"
	"strings"
)

// MessageType identifies the conversation category of a message event.
// The set is closed: routing decisions switch on these values and nothing else.
type MessageType int

const (
	// TypeUnknown is any category the bridge does not route. Events with an
	// unknown category are still stored, they just never reach a handler.
	TypeUnknown MessageType = iota
	// TypePrivate is a direct conversation with a single user
	TypePrivate
	// TypeGroup is a multi-user group conversation
	TypeGroup
)

// String returns the wire representation of the message type
func (t MessageType) String() string {
	switch t {
	case TypePrivate:
		return "private"
	case TypeGroup:
		return "group"
	default:
		return "unknown"
	}
}

// ParseMessageType maps a wire discriminator to a MessageType.
// Unrecognized values map to TypeUnknown with ok=false.
func ParseMessageType(s string) (MessageType, bool) {
	switch s {
	case "private":
		return TypePrivate, true
	case "group":
		return TypeGroup, true
	default:
		return TypeUnknown, false
	}
}

// TypedEvent is a classified message event ready for storage and dispatch.
// Sender stays as raw JSON: handlers that need profile fields decode it
// through DecodeProfile, everything else passes it along untouched.
type TypedEvent struct {
	ID        string
	Type      MessageType
	Sender    json.RawMessage
	GroupID   string
	GroupName string
	Segments  []ContentSegment

	// Raw is the original frame as received, stored verbatim
	Raw []byte
}

// IsGroup reports whether the event belongs to a group conversation
func (e *TypedEvent) IsGroup() bool {
	return e.Type == TypeGroup
}

// PlainText returns the human-readable rendering of all segments joined
// with single spaces, matching how records are logged and persisted.
func (e *TypedEvent) PlainText() string {
	if len(e.Segments) == 0 {
		return ""
	}
	parts := make([]string, 0, len(e.Segments))
	for _, seg := range e.Segments {
		parts = append(parts, seg.Display())
	}
	return strings.Join(parts, " ")
}

// AtTargets returns the user ids mentioned in the message, in order
func (e *TypedEvent) AtTargets() []string {
	var targets []string
	for _, seg := range e.Segments {
		if seg.Kind == SegmentAt && seg.Target != "" {
			targets = append(targets, seg.Target)
		}
	}
	return targets
}

// Profile is the decoded sender identity. The gateway sends more fields
// than these; unknown fields are ignored rather than rejected.
type Profile struct {
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname"`
	Card     string `json:"card"` // group-local display name, may be empty
}

// DecodeProfile decodes a raw sender blob leniently. Numeric and string
// user ids are both accepted since gateways disagree on the wire type.
func DecodeProfile(raw json.RawMessage) (*Profile, error) {
	var wire struct {
		UserID   flexID `json:"user_id"`
		Nickname string `json:"nickname"`
		Card     string `json:"card"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	return &Profile{
		UserID:   string(wire.UserID),
		Nickname: wire.Nickname,
		Card:     wire.Card,
	}, nil
}

// DisplayName returns the name to show for this sender. Group messages
// prefer the group-local card when present.
func (p *Profile) DisplayName(isGroup bool) string {
	if isGroup && p.Card != "" {
		return p.Card
	}
	return p.Nickname
}

// flexID accepts JSON strings and numbers and normalizes both to a string.
// Gateways send numeric ids, replayed fixtures often send strings.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}
