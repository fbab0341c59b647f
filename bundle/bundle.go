package bundle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sartorproj/fluxcast/preprocess"
	"github.com/sartorproj/fluxcast/sarima"
)

var (
	// ErrNotFound is returned when no bundle is stored for an outlet.
	ErrNotFound = errors.New("bundle: not found")
	// ErrRunMismatch is returned when stored artifacts come from different
	// training runs.
	ErrRunMismatch = errors.New("bundle: artifacts from different training runs")
	// ErrIncomplete is returned when a bundle lacks one of its artifacts.
	ErrIncomplete = errors.New("bundle: incomplete")
)

// Artifact names, also used as file names (with a .json suffix) and hash
// fields.
const (
	ArtifactModel        = "model"
	ArtifactExogScaler   = "scaler_exog"
	ArtifactPCA          = "pca"
	ArtifactTargetScaler = "scaler_target"
)

var artifacts = []string{ArtifactModel, ArtifactExogScaler, ArtifactPCA, ArtifactTargetScaler}

// Bundle is a fitted model with the transforms it was trained with. All four
// artifacts carry the same run ID.
type Bundle struct {
	Outlet       string
	RunID        string
	TrainedAt    time.Time
	Model        *sarima.Model
	ExogScaler   *preprocess.StandardScaler
	PCA          *preprocess.PCA
	TargetScaler *preprocess.StandardScaler
}

// New creates a bundle with a fresh run ID.
func New(outlet string, model *sarima.Model, exog *preprocess.StandardScaler, pca *preprocess.PCA, target *preprocess.StandardScaler) *Bundle {
	return &Bundle{
		Outlet:       outlet,
		RunID:        uuid.NewString(),
		TrainedAt:    time.Now().UTC(),
		Model:        model,
		ExogScaler:   exog,
		PCA:          pca,
		TargetScaler: target,
	}
}

// WithModel returns a copy of b holding model, under the same run ID.
func (b *Bundle) WithModel(model *sarima.Model) *Bundle {
	c := *b
	c.Model = model
	return &c
}

// Validate checks that every artifact is present.
func (b *Bundle) Validate() error {
	switch {
	case b.Outlet == "":
		return fmt.Errorf("%w: no outlet", ErrIncomplete)
	case b.RunID == "":
		return fmt.Errorf("%w: no run ID", ErrIncomplete)
	case b.Model == nil || !b.Model.Fitted():
		return fmt.Errorf("%w: no fitted model", ErrIncomplete)
	case b.ExogScaler == nil || b.PCA == nil || b.TargetScaler == nil:
		return fmt.Errorf("%w: missing transform", ErrIncomplete)
	}
	return nil
}

// Store persists bundles per outlet. Saving replaces the whole bundle.
type Store interface {
	Save(ctx context.Context, b *Bundle) error
	Load(ctx context.Context, outlet string) (*Bundle, error)
	Delete(ctx context.Context, outlet string) error
}

type envelope struct {
	RunID     string          `json:"run_id"`
	TrainedAt time.Time       `json:"trained_at"`
	Payload   json.RawMessage `json:"payload"`
}

// encode serializes every artifact of b into its envelope.
func encode(b *Bundle) (map[string][]byte, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	payloads := map[string]interface{}{
		ArtifactModel:        b.Model,
		ArtifactExogScaler:   b.ExogScaler,
		ArtifactPCA:          b.PCA,
		ArtifactTargetScaler: b.TargetScaler,
	}
	out := make(map[string][]byte, len(payloads))
	for name, v := range payloads {
		payload, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("bundle: encode %s: %w", name, err)
		}
		data, err := json.Marshal(envelope{RunID: b.RunID, TrainedAt: b.TrainedAt, Payload: payload})
		if err != nil {
			return nil, err
		}
		out[name] = data
	}
	return out, nil
}

// decode rebuilds a bundle, refusing artifacts whose run IDs differ.
func decode(outlet string, data map[string][]byte) (*Bundle, error) {
	envs := make(map[string]envelope, len(artifacts))
	for _, name := range artifacts {
		raw, ok := data[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s has no %s", ErrIncomplete, outlet, name)
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("bundle: decode %s: %w", name, err)
		}
		envs[name] = env
	}

	runID := envs[ArtifactModel].RunID
	for _, name := range artifacts {
		if envs[name].RunID != runID {
			return nil, fmt.Errorf("%w: %s: %s=%q, %s=%q", ErrRunMismatch, outlet,
				ArtifactModel, runID, name, envs[name].RunID)
		}
	}

	b := &Bundle{
		Outlet:       outlet,
		RunID:        runID,
		TrainedAt:    envs[ArtifactModel].TrainedAt,
		Model:        &sarima.Model{},
		ExogScaler:   &preprocess.StandardScaler{},
		PCA:          &preprocess.PCA{},
		TargetScaler: &preprocess.StandardScaler{},
	}
	targets := map[string]interface{}{
		ArtifactModel:        b.Model,
		ArtifactExogScaler:   b.ExogScaler,
		ArtifactPCA:          b.PCA,
		ArtifactTargetScaler: b.TargetScaler,
	}
	for name, v := range targets {
		if err := json.Unmarshal(envs[name].Payload, v); err != nil {
			return nil, fmt.Errorf("bundle: decode %s: %w", name, err)
		}
	}
	return b, nil
}
