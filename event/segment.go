package event

import (
	"encoding/json"
	"fmt"
)

// SegmentKind is the wire type of a message segment
type SegmentKind string

const (
	// SegmentText is plain text content
	SegmentText SegmentKind = "text"
	// SegmentImage is an image attachment
	SegmentImage SegmentKind = "image"
	// SegmentAt is a mention of another user
	SegmentAt SegmentKind = "at"
	// SegmentFace is a built-in emoticon
	SegmentFace SegmentKind = "face"
	// SegmentReply references an earlier message
	SegmentReply SegmentKind = "reply"
	// SegmentUnknown is any kind the converter does not recognize
	SegmentUnknown SegmentKind = "unknown"
)

// RawSegment is one entry of the wire-format message array
type RawSegment struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ContentSegment is a converted, normalized message segment
type ContentSegment struct {
	Kind   SegmentKind
	Text   string // text content for text segments, source URL for images
	Target string // mentioned user id, replied message id, or face id
}

// Display returns the human-readable rendering of the segment
func (s ContentSegment) Display() string {
	switch s.Kind {
	case SegmentText:
		return s.Text
	case SegmentImage:
		return "[image]"
	case SegmentAt:
		return "@" + s.Target
	case SegmentFace:
		return "[face]"
	case SegmentReply:
		return fmt.Sprintf("[reply:%s]", s.Target)
	default:
		return "[unsupported]"
	}
}

// SegmentConverter turns one raw wire segment into a content segment.
// Returning an error rejects the whole frame, so converters should map
// unrecognized kinds to SegmentUnknown instead of failing on them.
type SegmentConverter func(raw RawSegment) (ContentSegment, error)

// DefaultConverter handles the standard segment kinds. Unknown kinds
// become SegmentUnknown; malformed segment data is an error.
func DefaultConverter(raw RawSegment) (ContentSegment, error) {
	switch SegmentKind(raw.Type) {
	case SegmentText:
		var data struct {
			Text string `json:"text"`
		}
		if err := unmarshalSegmentData(raw, &data); err != nil {
			return ContentSegment{}, err
		}
		return ContentSegment{Kind: SegmentText, Text: data.Text}, nil

	case SegmentImage:
		var data struct {
			URL  string `json:"url"`
			File string `json:"file"`
		}
		if err := unmarshalSegmentData(raw, &data); err != nil {
			return ContentSegment{}, err
		}
		source := data.URL
		if source == "" {
			source = data.File
		}
		return ContentSegment{Kind: SegmentImage, Text: source}, nil

	case SegmentAt:
		var data struct {
			QQ flexID `json:"qq"`
		}
		if err := unmarshalSegmentData(raw, &data); err != nil {
			return ContentSegment{}, err
		}
		return ContentSegment{Kind: SegmentAt, Target: string(data.QQ)}, nil

	case SegmentFace:
		var data struct {
			ID flexID `json:"id"`
		}
		if err := unmarshalSegmentData(raw, &data); err != nil {
			return ContentSegment{}, err
		}
		return ContentSegment{Kind: SegmentFace, Target: string(data.ID)}, nil

	case SegmentReply:
		var data struct {
			ID flexID `json:"id"`
		}
		if err := unmarshalSegmentData(raw, &data); err != nil {
			return ContentSegment{}, err
		}
		return ContentSegment{Kind: SegmentReply, Target: string(data.ID)}, nil

	default:
		return ContentSegment{Kind: SegmentUnknown}, nil
	}
}

func unmarshalSegmentData(raw RawSegment, into any) error {
	if len(raw.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw.Data, into); err != nil {
		return fmt.Errorf("segment %q data: %w", raw.Type, err)
	}
	return nil
}
