package sarima

import (
	"encoding/json"
	"fmt"
)

// state is the serialized form of a fitted model. The observations are kept
// so the model can forecast and be extended after loading.
type state struct {
	Order     Order       `json:"order"`
	ExogNames []string    `json:"exog_names"`
	Params    []float64   `json:"params"`
	Converged bool        `json:"converged"`
	Y         []float64   `json:"endog"`
	X         [][]float64 `json:"exog,omitempty"`
}

// MarshalJSON encodes a fitted model.
func (m *Model) MarshalJSON() ([]byte, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	return json.Marshal(state{
		Order:     m.Order,
		ExogNames: m.ExogNames,
		Params:    m.Params(),
		Converged: m.Converged,
		Y:         m.y,
		X:         m.x,
	})
}

// UnmarshalJSON restores a model encoded by MarshalJSON and recomputes its
// innovations and criteria.
func (m *Model) UnmarshalJSON(data []byte) error {
	var s state
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	restored := New(s.Order, s.ExogNames)
	if len(s.Params) != restored.paramLen() {
		return fmt.Errorf("sarima: %d parameters stored, order %s needs %d",
			len(s.Params), s.Order, restored.paramLen())
	}
	if err := restored.checkExog(s.X, len(s.Y)); err != nil {
		return err
	}
	if len(s.Y) < len(restored.poly) {
		return ErrInsufficientData
	}

	restored.setParams(s.Params)
	restored.Converged = s.Converged
	restored.y = s.Y
	restored.x = s.X
	restored.filter()
	restored.fitted = true

	*m = *restored
	return nil
}
