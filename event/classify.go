package event

import (
	"encoding/json"
	"fmt"

	"github.com/FredYakumo/zihuan-next/errors"
)

// Outcome reports what the classifier decided about a frame
type Outcome int

const (
	// OutcomeAccepted means a typed event was produced
	OutcomeAccepted Outcome = iota
	// OutcomeIgnored means the frame is not a message event, for example
	// a heartbeat or a lifecycle notice. Ignored frames are not errors.
	OutcomeIgnored
	// OutcomeRejected means the frame claimed to be a message event but
	// failed validation. The frame is dropped, the connection lives on.
	OutcomeRejected
)

// String returns the label used in logs and metrics
func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// rawEvent is the wire shape of a gateway frame. MessageType is a pointer
// so a frame without the field can be told apart from one with an empty value.
type rawEvent struct {
	MessageType *string         `json:"message_type"`
	MessageID   flexID          `json:"message_id"`
	Sender      json.RawMessage `json:"sender"`
	GroupID     flexID          `json:"group_id"`
	GroupName   string          `json:"group_name"`
	Message     []RawSegment    `json:"message"`
}

// Classify validates a raw gateway frame and produces a typed event.
//
// Frames without a message_type field are ignored: the gateway multiplexes
// heartbeats and lifecycle notices over the same socket and those are not
// message events. Frames with a message_type must carry a message id and a
// sender; anything less is rejected. An unrecognized message_type value is
// accepted as TypeUnknown so the event still reaches storage, it just will
// not be routed to a handler.
//
// A nil converter selects DefaultConverter. Converter errors reject the
// frame and never propagate further than that.
func Classify(data []byte, convert SegmentConverter) (*TypedEvent, Outcome, error) {
	var raw rawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, OutcomeRejected, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
			"Classifier", "Classify", "unmarshal frame")
	}

	if raw.MessageType == nil {
		return nil, OutcomeIgnored, nil
	}

	if raw.MessageID == "" {
		return nil, OutcomeRejected, errors.WrapInvalid(
			errors.ErrMissingMessageID,
			"Classifier", "Classify", "validate frame")
	}

	if isAbsentJSON(raw.Sender) {
		return nil, OutcomeRejected, errors.WrapInvalid(
			errors.ErrMissingSender,
			"Classifier", "Classify", "validate frame")
	}

	if convert == nil {
		convert = DefaultConverter
	}

	segments := make([]ContentSegment, 0, len(raw.Message))
	for _, rawSeg := range raw.Message {
		seg, err := convert(rawSeg)
		if err != nil {
			return nil, OutcomeRejected, errors.WrapInvalid(
				fmt.Errorf("%w: %v", errors.ErrSegmentConvert, err),
				"Classifier", "Classify", "convert segments")
		}
		segments = append(segments, seg)
	}

	msgType, _ := ParseMessageType(*raw.MessageType)

	return &TypedEvent{
		ID:        string(raw.MessageID),
		Type:      msgType,
		Sender:    raw.Sender,
		GroupID:   string(raw.GroupID),
		GroupName: raw.GroupName,
		Segments:  segments,
		Raw:       data,
	}, OutcomeAccepted, nil
}

// isAbsentJSON reports whether a raw JSON field is missing or null
func isAbsentJSON(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return true
	}
	return string(raw) == "null"
}
