package codec_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/a2aserver/a2a-core/a2a/codec"
	"github.com/a2aserver/a2a-core/a2a/types"
)

func newProperties() *gopter.Properties {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	return gopter.NewProperties(parameters)
}

// TestPartRoundTripText verifies EncodePart/DecodePart are inverse for every
// text Part, regardless of content.
func TestPartRoundTripText(t *testing.T) {
	properties := newProperties()
	properties.Property("text part survives encode/decode", prop.ForAll(
		func(text string) bool {
			original := types.NewTextPart(text)
			raw, err := codec.EncodePart(original)
			if err != nil {
				return false
			}
			decoded, err := codec.DecodePart(raw, "")
			if err != nil {
				return false
			}
			return decoded.Kind == types.PartKindText && decoded.Text != nil && decoded.Text.Text == text
		},
		gen.AnyString(),
	))
	properties.TestingRun(t)
}

// TestPartRoundTripFile verifies the file Part's bytes-variant and
// uri-variant both survive encode/decode unchanged.
func TestPartRoundTripFile(t *testing.T) {
	properties := newProperties()
	properties.Property("file part (bytes) survives encode/decode", prop.ForAll(
		func(data, name, mime string) bool {
			original := types.NewFilePart(types.FileContent{Bytes: []byte(data), Name: name, MIMEType: mime})
			raw, err := codec.EncodePart(original)
			if err != nil {
				return false
			}
			decoded, err := codec.DecodePart(raw, "")
			if err != nil {
				return false
			}
			return decoded.Kind == types.PartKindFile &&
				decoded.File != nil &&
				string(decoded.File.File.Bytes) == data &&
				decoded.File.File.Name == name &&
				decoded.File.File.MIMEType == mime
		},
		gen.AnyString().SuchThat(func(s string) bool { return s != "" }),
		gen.AnyString(),
		gen.AnyString(),
	))
	properties.TestingRun(t)
}

func TestPartRoundTripFileURI(t *testing.T) {
	properties := newProperties()
	properties.Property("file part (uri) survives encode/decode", prop.ForAll(
		func(uri string) bool {
			original := types.NewFilePart(types.FileContent{URI: uri})
			raw, err := codec.EncodePart(original)
			if err != nil {
				return false
			}
			decoded, err := codec.DecodePart(raw, "")
			if err != nil {
				return false
			}
			return decoded.Kind == types.PartKindFile && decoded.File != nil && decoded.File.File.URI == uri
		},
		gen.AnyString().SuchThat(func(s string) bool { return s != "" }),
	))
	properties.TestingRun(t)
}

// TestPartRoundTripData verifies the data Part survives encode/decode when no
// schema is registered under the schema name used.
func TestPartRoundTripData(t *testing.T) {
	properties := newProperties()
	properties.Property("data part survives encode/decode with no registered schema", prop.ForAll(
		func(msg string) bool {
			raw, err := json.Marshal(map[string]string{"msg": msg})
			if err != nil {
				return false
			}
			original := types.NewDataPart(raw)
			encoded, err := codec.EncodePart(original)
			if err != nil {
				return false
			}
			decoded, err := codec.DecodePart(encoded, "no-such-schema")
			if err != nil {
				return false
			}
			var got map[string]string
			if err := json.Unmarshal(decoded.Data.Data, &got); err != nil {
				return false
			}
			return decoded.Kind == types.PartKindData && got["msg"] == msg
		},
		gen.AnyString(),
	))
	properties.TestingRun(t)
}

// TestPartDataSchemaValidationIsWired confirms DecodePart actually enforces a
// registered schema rather than silently accepting every Data part.
func TestPartDataSchemaValidationIsWired(t *testing.T) {
	const schemaName = "roundtrip-test-schema"
	require.NoError(t, codec.RegisterDataSchema(schemaName, json.RawMessage(`{
		"type": "object",
		"required": ["msg"],
		"properties": {"msg": {"type": "string"}}
	}`)))
	t.Cleanup(func() { codec.UnregisterDataSchema(schemaName) })

	valid := types.NewDataPart(json.RawMessage(`{"msg": "hello"}`))
	raw, err := codec.EncodePart(valid)
	require.NoError(t, err)
	_, err = codec.DecodePart(raw, schemaName)
	require.NoError(t, err)

	invalid := types.NewDataPart(json.RawMessage(`{"other": 1}`))
	raw, err = codec.EncodePart(invalid)
	require.NoError(t, err)
	_, err = codec.DecodePart(raw, schemaName)
	require.Error(t, err)
}

// TestEventRoundTrip verifies EncodeEvent/DecodeEvent are inverse for every
// Event variant.
func TestEventRoundTrip(t *testing.T) {
	properties := newProperties()

	properties.Property("message event survives encode/decode", prop.ForAll(
		func(taskID, contextID, messageID, text string) bool {
			original := types.NewMessageEvent(taskID, contextID, types.Message{
				MessageID: messageID,
				Role:      types.RoleUser,
				Parts:     []types.Part{types.NewTextPart(text)},
			})
			raw, err := codec.EncodeEvent(original)
			if err != nil {
				return false
			}
			decoded, err := codec.DecodeEvent(raw)
			if err != nil {
				return false
			}
			return decoded.Kind == types.EventKindMessage &&
				decoded.TaskID == taskID &&
				decoded.ContextID == contextID &&
				decoded.Message != nil &&
				decoded.Message.MessageID == messageID &&
				len(decoded.Message.Parts) == 1 &&
				decoded.Message.Parts[0].Text != nil &&
				decoded.Message.Parts[0].Text.Text == text
		},
		gen.AnyString(), gen.AnyString(), gen.AnyString(), gen.AnyString(),
	))

	properties.Property("task event survives encode/decode", prop.ForAll(
		func(taskID, contextID string) bool {
			task := types.Task{
				ID:        taskID,
				ContextID: contextID,
				Status:    types.TaskStatus{State: types.TaskStateSubmitted, Timestamp: fixedTime},
			}
			original := types.NewTaskEvent(task)
			raw, err := codec.EncodeEvent(original)
			if err != nil {
				return false
			}
			decoded, err := codec.DecodeEvent(raw)
			if err != nil {
				return false
			}
			return decoded.Kind == types.EventKindTask &&
				decoded.Task != nil &&
				decoded.Task.ID == taskID &&
				decoded.Task.ContextID == contextID &&
				decoded.Task.Status.State == types.TaskStateSubmitted
		},
		gen.AnyString(), gen.AnyString(),
	))

	properties.Property("status-update event survives encode/decode", prop.ForAll(
		func(taskID, contextID string, final bool) bool {
			original := types.NewStatusUpdateEvent(taskID, contextID, types.TaskStatus{
				State:     types.TaskStateWorking,
				Timestamp: fixedTime,
			}, final)
			raw, err := codec.EncodeEvent(original)
			if err != nil {
				return false
			}
			decoded, err := codec.DecodeEvent(raw)
			if err != nil {
				return false
			}
			return decoded.Kind == types.EventKindStatusUpdate &&
				decoded.TaskID == taskID &&
				decoded.ContextID == contextID &&
				decoded.Status != nil &&
				decoded.Status.Status.State == types.TaskStateWorking &&
				decoded.Status.Final == final
		},
		gen.AnyString(), gen.AnyString(), gen.Bool(),
	))

	properties.Property("artifact-update event survives encode/decode", prop.ForAll(
		func(taskID, contextID, artifactID, text string, appendChunk, lastChunk bool) bool {
			artifact := types.Artifact{
				ArtifactID: artifactID,
				Parts:      []types.Part{types.NewTextPart(text)},
			}
			original := types.NewArtifactUpdateEvent(taskID, contextID, artifact, appendChunk, lastChunk)
			raw, err := codec.EncodeEvent(original)
			if err != nil {
				return false
			}
			decoded, err := codec.DecodeEvent(raw)
			if err != nil {
				return false
			}
			return decoded.Kind == types.EventKindArtifactUpdate &&
				decoded.TaskID == taskID &&
				decoded.ContextID == contextID &&
				decoded.Artifact != nil &&
				decoded.Artifact.Artifact.ArtifactID == artifactID &&
				decoded.Artifact.Append == appendChunk &&
				decoded.Artifact.LastChunk == lastChunk &&
				len(decoded.Artifact.Artifact.Parts) == 1 &&
				decoded.Artifact.Artifact.Parts[0].Text.Text == text
		},
		gen.AnyString(), gen.AnyString(), gen.AnyString(), gen.AnyString(), gen.Bool(), gen.Bool(),
	))

	properties.TestingRun(t)
}

var fixedTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
