// Package contextcompiler implements the pure, replay-addressable pipeline
// that turns a continuity's message history into a versioned,
// provider-agnostic context bundle artifact. Compiling is deterministic in
// its inputs (to_seq, strategy, budgets) but its output is content-addressed
// by the artifact store, so re-running with identical inputs is a no-op.
package contextcompiler

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rip-dev/rip/internal/artifact"
)

// BundleSchemaVersion is the artifact kind hint stamped on every compiled
// bundle: "rip.context_bundle.v1".
const BundleSchemaVersion = "rip.context_bundle.v1"

// Item kinds a bundle's items array can hold.
const (
	ItemTypeMessage    = "message"
	ItemTypeSummaryRef = "summary_ref"
)

// BundleItem is one entry of a compiled bundle, either a verbatim message or
// a reference to a compaction summary artifact. Summaries are never inlined
// into the bundle itself — a provider adapter resolves summary_ref items
// against the artifact store at send time, which keeps a bundle's own size
// independent of how long the summary text it points to happens to be.
type BundleItem struct {
	Type       string `json:"type"`
	MessageID  string `json:"message_id,omitempty"`
	Role       string `json:"role,omitempty"`
	Content    string `json:"content,omitempty"`
	ArtifactID string `json:"artifact_id,omitempty"`
	ToSeq      uint64 `json:"to_seq,omitempty"`
	Depth      int    `json:"depth,omitempty"`
}

// BundleSource identifies the exact log range a bundle was compiled from.
type BundleSource struct {
	ThreadID    string `json:"thread_id"`
	FromSeq     uint64 `json:"from_seq"`
	ToSeq       uint64 `json:"to_seq"`
	ToMessageID string `json:"to_message_id,omitempty"`
}

// BundleProvenance records who asked for this bundle and how it was chosen,
// so a replay can explain a run's context without re-deriving it.
type BundleProvenance struct {
	RunSessionID string `json:"run_session_id,omitempty"`
	ActorID      string `json:"actor_id"`
	Origin       string `json:"origin"`
	Strategy     string `json:"strategy"`
}

// Bundle is the provider-agnostic compiled context, the payload of a
// rip.context_bundle.v1 artifact.
type Bundle struct {
	Schema     string           `json:"schema"`
	Compiler   string           `json:"compiler"`
	Source     BundleSource     `json:"source"`
	Provenance BundleProvenance `json:"provenance"`
	Items      []BundleItem     `json:"items"`
}

const bundleSchemaJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["schema", "compiler", "source", "provenance", "items"],
	"properties": {
		"schema": {"type": "string", "const": "rip.context_bundle.v1"},
		"compiler": {"type": "string", "minLength": 1},
		"source": {
			"type": "object",
			"required": ["thread_id", "to_seq"],
			"properties": {
				"thread_id": {"type": "string", "minLength": 1},
				"from_seq": {"type": "integer", "minimum": 0},
				"to_seq": {"type": "integer", "minimum": 0},
				"to_message_id": {"type": "string"}
			}
		},
		"provenance": {
			"type": "object",
			"required": ["actor_id", "strategy"],
			"properties": {
				"run_session_id": {"type": "string"},
				"actor_id": {"type": "string", "minLength": 1},
				"origin": {"type": "string"},
				"strategy": {"type": "string", "minLength": 1}
			}
		},
		"items": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["type"],
				"properties": {
					"type": {"type": "string", "enum": ["message", "summary_ref"]},
					"message_id": {"type": "string"},
					"role": {"type": "string"},
					"content": {"type": "string"},
					"artifact_id": {"type": "string"},
					"to_seq": {"type": "integer", "minimum": 0},
					"depth": {"type": "integer", "minimum": 0}
				}
			}
		}
	}
}`

var bundleSchema *jsonschema.Schema

func init() {
	compiler := jsonschema.NewCompiler()
	var doc any
	if err := json.Unmarshal([]byte(bundleSchemaJSON), &doc); err != nil {
		panic(fmt.Sprintf("contextcompiler: invalid embedded schema: %v", err))
	}
	if err := compiler.AddResource("bundle.json", doc); err != nil {
		panic(fmt.Sprintf("contextcompiler: add schema resource: %v", err))
	}
	s, err := compiler.Compile("bundle.json")
	if err != nil {
		panic(fmt.Sprintf("contextcompiler: compile schema: %v", err))
	}
	bundleSchema = s
}

// Validate checks a bundle against the rip.context_bundle.v1 schema.
func Validate(b Bundle) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("contextcompiler: encode for validation: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("contextcompiler: decode for validation: %w", err)
	}
	if err := bundleSchema.Validate(doc); err != nil {
		return fmt.Errorf("contextcompiler: bundle failed schema validation: %w", err)
	}
	return nil
}

// Store persists a compiled bundle to the artifact store, returning its
// content-addressed id.
func Store(store *artifact.Store, b Bundle) (string, error) {
	if err := Validate(b); err != nil {
		return "", err
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("contextcompiler: encode bundle: %w", err)
	}
	id, err := store.Put(raw, BundleSchemaVersion)
	if err != nil {
		return "", fmt.Errorf("contextcompiler: store bundle: %w", err)
	}
	return id, nil
}

// Load fetches and decodes a previously stored bundle.
func Load(store *artifact.Store, id string) (Bundle, error) {
	raw, err := store.Get(id)
	if err != nil {
		return Bundle{}, fmt.Errorf("contextcompiler: load bundle: %w", err)
	}
	var b Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return Bundle{}, fmt.Errorf("contextcompiler: decode bundle: %w", err)
	}
	return b, nil
}
