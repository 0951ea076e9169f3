// Package store implements the Task Store (spec component C2): a durable
// key/value mapping from TaskId to Task, with filtered listing by context.
// Two backends are required by spec (memory, file); a Redis-backed backend
// is provided as a supplemental, distributed-deployment option (see
// SPEC_FULL.md section 4.2).
package store

import (
	"context"

	"github.com/a2aserver/a2a-core/a2a/types"
)

// TaskStore abstracts task persistence so the Task Manager can run against
// in-memory, file-backed, or distributed implementations interchangeably.
type TaskStore interface {
	// Get returns the task for id, or ok=false if no such task exists. Never
	// fails: absence is not an error at this layer (spec section 4.2).
	Get(ctx context.Context, id string) (task types.Task, ok bool, err error)
	// Set upserts task, replacing any prior record for its ID.
	Set(ctx context.Context, task types.Task) error
	// UpdateStatus atomically replaces the status of the task identified by
	// id. Fails with errs.TaskNotFound if id is unknown.
	UpdateStatus(ctx context.Context, id string, status types.TaskStatus) (types.Task, error)
	// AppendHistory atomically appends msg to the task's history. Fails with
	// errs.TaskNotFound if id is unknown.
	AppendHistory(ctx context.Context, id string, msg types.Message) (types.Task, error)
	// AppendOrReplaceArtifact atomically applies an artifact update, replacing
	// any existing artifact with the same ArtifactID unless appendChunk is
	// set, in which case the new parts are appended to the existing artifact's
	// parts. Fails with errs.TaskNotFound if id is unknown.
	AppendOrReplaceArtifact(ctx context.Context, id string, artifact types.Artifact, appendChunk bool) (types.Task, error)
	// List returns tasks matching filter. Backends that cannot cheaply
	// enumerate (for example, an unfiltered scan over a distributed cache) may
	// return an empty result; see the Redis backend's documented behavior.
	List(ctx context.Context, filter types.ListFilter) (types.ListResult, error)
}

// applyArtifact implements the replace-or-append-chunk merge rule shared by
// every backend (spec section 3's Artifacts invariant), so each backend only
// needs to supply the surrounding read-modify-write.
func applyArtifact(existing []types.Artifact, artifact types.Artifact, appendChunk bool) []types.Artifact {
	if !appendChunk {
		return upsertArtifact(existing, artifact)
	}
	for i, a := range existing {
		if a.ArtifactID == artifact.ArtifactID {
			merged := a
			merged.Parts = append(append([]types.Part(nil), a.Parts...), artifact.Parts...)
			if artifact.Name != "" {
				merged.Name = artifact.Name
			}
			if artifact.Description != "" {
				merged.Description = artifact.Description
			}
			out := append([]types.Artifact(nil), existing...)
			out[i] = merged
			return out
		}
	}
	// No prior chunk with this ArtifactID: first chunk creates it, per spec
	// section 9's open-question resolution.
	return append(append([]types.Artifact(nil), existing...), artifact)
}

func upsertArtifact(existing []types.Artifact, artifact types.Artifact) []types.Artifact {
	for i, a := range existing {
		if a.ArtifactID == artifact.ArtifactID {
			out := append([]types.Artifact(nil), existing...)
			out[i] = artifact
			return out
		}
	}
	return append(append([]types.Artifact(nil), existing...), artifact)
}
