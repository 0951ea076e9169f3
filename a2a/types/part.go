package types

import "encoding/json"

// PartKind discriminates the Part union on the wire via a "kind" field.
type PartKind string

// Closed set of Part variants.
const (
	PartKindText PartKind = "text"
	PartKindFile PartKind = "file"
	PartKindData PartKind = "data"
)

// Part is the discriminated union of message/artifact content. Exactly one
// concrete variant (TextPart, FilePart, DataPart) is active per Part value;
// Kind reports which. Callers switch on Kind and read the matching field, or
// use codec.DecodePart/EncodePart for the validating codec path.
type Part struct {
	Kind PartKind
	Text *TextPart
	File *FilePart
	Data *DataPart
}

// TextPart is a plain-text content part.
type TextPart struct {
	Text string `json:"text"`
}

// FilePart is a file content part. Exactly one of Bytes or URI must be set.
type FilePart struct {
	File FileContent `json:"file"`
}

// FileContent describes file bytes or a reference to them. It has no "kind"
// discriminator of its own: the codec selects between Bytes and URI by
// presence, per spec section 4.1.
type FileContent struct {
	// Bytes is inline base64-encoded file content (mutually exclusive with URI).
	Bytes []byte `json:"bytes,omitempty"`
	// URI is a reference to externally stored content (mutually exclusive with
	// Bytes).
	URI string `json:"uri,omitempty"`
	// Name is an optional file name.
	Name string `json:"name,omitempty"`
	// MIMEType is an optional MIME type.
	MIMEType string `json:"mimeType,omitempty"`
}

// Validate enforces FileContent's exactly-one-of invariant.
func (f FileContent) Validate() error {
	hasBytes := len(f.Bytes) > 0
	hasURI := f.URI != ""
	if hasBytes == hasURI {
		return errExactlyOneOf
	}
	return nil
}

// DataPart carries an arbitrary structured JSON payload.
type DataPart struct {
	Data json.RawMessage `json:"data"`
}

var errExactlyOneOf = dataErr("exactly one of file.bytes or file.uri is required")

type dataErr string

func (e dataErr) Error() string { return string(e) }

// MarshalJSON renders the active variant with "kind" as the first property,
// matching the wire shape produced by codec.EncodePart. Defined here (rather
// than left to reflection over Part's own fields) so that any value
// embedding a Part slice - Message.Parts, Artifact.Parts - serializes
// correctly through a plain json.Marshal, not only through the codec
// package's explicit encode path.
func (p Part) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case PartKindText:
		if p.Text == nil {
			return nil, dataErr("encoding part: kind is \"text\" but Text is nil")
		}
		return json.Marshal(struct {
			Kind PartKind `json:"kind"`
			Text string   `json:"text"`
		}{PartKindText, p.Text.Text})
	case PartKindFile:
		if p.File == nil {
			return nil, dataErr("encoding part: kind is \"file\" but File is nil")
		}
		return json.Marshal(struct {
			Kind PartKind    `json:"kind"`
			File FileContent `json:"file"`
		}{PartKindFile, p.File.File})
	case PartKindData:
		if p.Data == nil {
			return nil, dataErr("encoding part: kind is \"data\" but Data is nil")
		}
		return json.Marshal(struct {
			Kind PartKind        `json:"kind"`
			Data json.RawMessage `json:"data"`
		}{PartKindData, p.Data.Data})
	default:
		return nil, dataErr("encoding part: unknown kind \"" + string(p.Kind) + "\"")
	}
}

// UnmarshalJSON is the structural counterpart to MarshalJSON. It performs no
// schema validation beyond FileContent's exactly-one-of invariant; callers
// decoding untrusted wire input should instead use codec.DecodePart, which
// additionally runs JSON-schema validation on data parts.
func (p *Part) UnmarshalJSON(raw []byte) error {
	var env struct {
		Kind PartKind `json:"kind"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}
	switch env.Kind {
	case PartKindText:
		var v struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		*p = NewTextPart(v.Text)
	case PartKindFile:
		var v struct {
			File FileContent `json:"file"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		if err := v.File.Validate(); err != nil {
			return err
		}
		*p = NewFilePart(v.File)
	case PartKindData:
		var v struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		*p = NewDataPart(v.Data)
	default:
		return dataErr("decoding part: unknown kind \"" + string(env.Kind) + "\"")
	}
	return nil
}

// NewTextPart constructs a text Part.
func NewTextPart(text string) Part {
	return Part{Kind: PartKindText, Text: &TextPart{Text: text}}
}

// NewDataPart constructs a data Part.
func NewDataPart(data json.RawMessage) Part {
	return Part{Kind: PartKindData, Data: &DataPart{Data: data}}
}

// NewFilePart constructs a file Part.
func NewFilePart(file FileContent) Part {
	return Part{Kind: PartKindFile, File: &FilePart{File: file}}
}
