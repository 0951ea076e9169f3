// Package codec implements the A2A wire codec (spec component C1): it reads
// the "kind" discriminator on Part and Event JSON objects, dispatches to the
// concrete variant, and maps every failure to a typed *errs.Error so callers
// never need to re-classify a decoding failure.
package codec

import (
	"encoding/json"

	"github.com/a2aserver/a2a-core/a2a/errs"
	"github.com/a2aserver/a2a-core/a2a/types"
)

// wireEnvelope is the shape every discriminated union shares on the wire: a
// "kind" string plus the rest of the object, decoded again per-variant.
type wireEnvelope struct {
	Kind json.RawMessage `json:"kind"`
}

// discriminator extracts and validates the "kind" field of raw, returning the
// InvalidRequest error spec section 4.1 requires when it is missing, null,
// empty, or non-string.
func discriminator(raw json.RawMessage) (string, error) {
	var env wireEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", errs.InvalidRequest("decoding discriminator envelope: %v", err)
	}
	if len(env.Kind) == 0 || string(env.Kind) == "null" {
		return "", errs.InvalidRequest("missing \"kind\" discriminator")
	}
	var kind string
	if err := json.Unmarshal(env.Kind, &kind); err != nil {
		return "", errs.InvalidRequest("\"kind\" discriminator must be a string")
	}
	if kind == "" {
		return "", errs.InvalidRequest("\"kind\" discriminator must not be empty")
	}
	return kind, nil
}

// DecodePart decodes raw into a Part, dispatching on its "kind" field. A Data
// part is additionally validated against the JSON Schema registered under
// schemaName (typically the enclosing message's context ID); an empty
// schemaName or one with no registered schema skips validation.
func DecodePart(raw json.RawMessage, schemaName string) (types.Part, error) {
	kind, err := discriminator(raw)
	if err != nil {
		return types.Part{}, err
	}
	switch types.PartKind(kind) {
	case types.PartKindText:
		var v struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return types.Part{}, errs.InvalidRequest("decoding text part: %v", err)
		}
		return types.NewTextPart(v.Text), nil
	case types.PartKindFile:
		var v struct {
			File types.FileContent `json:"file"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return types.Part{}, errs.InvalidRequest("decoding file part: %v", err)
		}
		if err := v.File.Validate(); err != nil {
			return types.Part{}, errs.InvalidRequest("file part: %v", err)
		}
		return types.NewFilePart(v.File), nil
	case types.PartKindData:
		var v struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return types.Part{}, errs.InvalidRequest("decoding data part: %v", err)
		}
		part := types.NewDataPart(v.Data)
		if err := ValidatePart(part, schemaName); err != nil {
			return types.Part{}, errs.InvalidRequest("data part failed schema validation: %v", err)
		}
		return part, nil
	default:
		return types.Part{}, errs.InvalidRequest("unknown part kind %q", kind)
	}
}

// EncodePart serializes a Part with "kind" as the first property.
func EncodePart(p types.Part) (json.RawMessage, error) {
	switch p.Kind {
	case types.PartKindText:
		return marshalWithKind(string(p.Kind), p.Text)
	case types.PartKindFile:
		return marshalWithKind(string(p.Kind), p.File)
	case types.PartKindData:
		return marshalWithKind(string(p.Kind), p.Data)
	default:
		return nil, errs.Wrap(nil, "encoding part: unknown kind")
	}
}

// DecodeEvent decodes raw into an Event, dispatching on its "kind" field.
func DecodeEvent(raw json.RawMessage) (types.Event, error) {
	kind, err := discriminator(raw)
	if err != nil {
		return types.Event{}, err
	}
	var env struct {
		TaskID    string `json:"taskId"`
		ContextID string `json:"contextId"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return types.Event{}, errs.InvalidRequest("decoding event envelope: %v", err)
	}
	switch types.EventKind(kind) {
	case types.EventKindMessage:
		var v struct {
			Message types.Message `json:"message"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return types.Event{}, errs.InvalidRequest("decoding message event: %v", err)
		}
		return types.NewMessageEvent(env.TaskID, env.ContextID, v.Message), nil
	case types.EventKindTask:
		var v struct {
			Task types.Task `json:"task"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return types.Event{}, errs.InvalidRequest("decoding task event: %v", err)
		}
		return types.NewTaskEvent(v.Task), nil
	case types.EventKindStatusUpdate:
		var v struct {
			Status types.TaskStatus `json:"status"`
			Final  bool             `json:"final"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return types.Event{}, errs.InvalidRequest("decoding status-update event: %v", err)
		}
		return types.NewStatusUpdateEvent(env.TaskID, env.ContextID, v.Status, v.Final), nil
	case types.EventKindArtifactUpdate:
		var v types.ArtifactUpdateEvent
		if err := json.Unmarshal(raw, &v); err != nil {
			return types.Event{}, errs.InvalidRequest("decoding artifact-update event: %v", err)
		}
		return types.NewArtifactUpdateEvent(env.TaskID, env.ContextID, v.Artifact, v.Append, v.LastChunk), nil
	default:
		return types.Event{}, errs.InvalidRequest("unknown event kind %q", kind)
	}
}

// EncodeEvent serializes an Event with "kind" and "taskId" as the leading
// properties, followed by the active variant's fields.
func EncodeEvent(e types.Event) (json.RawMessage, error) {
	switch e.Kind {
	case types.EventKindMessage:
		return marshalEventEnvelope(e, struct {
			Message *types.Message `json:"message"`
		}{e.Message})
	case types.EventKindTask:
		return marshalEventEnvelope(e, struct {
			Task *types.Task `json:"task"`
		}{e.Task})
	case types.EventKindStatusUpdate:
		return marshalEventEnvelope(e, struct {
			Status types.TaskStatus `json:"status"`
			Final  bool             `json:"final"`
		}{e.Status.Status, e.Status.Final})
	case types.EventKindArtifactUpdate:
		return marshalEventEnvelope(e, struct {
			Artifact  types.Artifact `json:"artifact"`
			Append    bool           `json:"append,omitempty"`
			LastChunk bool           `json:"lastChunk,omitempty"`
		}{e.Artifact.Artifact, e.Artifact.Append, e.Artifact.LastChunk})
	default:
		return nil, errs.Wrap(nil, "encoding event: unknown kind")
	}
}

func marshalEventEnvelope(e types.Event, body any) (json.RawMessage, error) {
	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return nil, errs.Wrap(err, "marshaling event body")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(bodyJSON, &fields); err != nil {
		return nil, errs.Wrap(err, "flattening event body")
	}
	out := orderedObject{}
	out.set("kind", e.Kind)
	out.set("taskId", e.TaskID)
	if e.ContextID != "" {
		out.set("contextId", e.ContextID)
	}
	for k, v := range fields {
		out.setRaw(k, v)
	}
	return out.marshal()
}

func marshalWithKind(kind string, body any) (json.RawMessage, error) {
	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return nil, errs.Wrap(err, "marshaling part body")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(bodyJSON, &fields); err != nil {
		return nil, errs.Wrap(err, "flattening part body")
	}
	out := orderedObject{}
	out.set("kind", kind)
	for k, v := range fields {
		out.setRaw(k, v)
	}
	return out.marshal()
}
