package plugin

import (
	"encoding/json"
	"fmt"

	"github.com/ayusman/jabcam/internal/punch"
	"github.com/ayusman/jabcam/internal/store"
)

// Binding runs Plugin/Action whenever Side lands a punch.
type Binding struct {
	Side   punch.HandSide  `json:"side"`
	Plugin string          `json:"plugin"`
	Action string          `json:"action"`
	Params json.RawMessage `json:"params,omitempty"`
}

// BindingSource looks up the bindings of a side.
type BindingSource interface {
	Bindings(side punch.HandSide) ([]Binding, error)
}

// StaticBindings is a fixed binding list, typically from the config file.
type StaticBindings []Binding

// Bindings returns the entries for side in list order.
func (s StaticBindings) Bindings(side punch.HandSide) ([]Binding, error) {
	var out []Binding
	for _, b := range s {
		if b.Side == side {
			out = append(out, b)
		}
	}
	return out, nil
}

// StoreBindings reads enabled bindings from the database.
type StoreBindings struct {
	Repo *store.BindingRepository
}

// Bindings returns the enabled stored bindings for side.
func (s StoreBindings) Bindings(side punch.HandSide) ([]Binding, error) {
	rows, err := s.Repo.ListEnabled(side.String())
	if err != nil {
		return nil, fmt.Errorf("list bindings: %w", err)
	}

	out := make([]Binding, 0, len(rows))
	for _, r := range rows {
		out = append(out, Binding{
			Side:   side,
			Plugin: r.PluginName,
			Action: r.ActionName,
			Params: r.Params,
		})
	}
	return out, nil
}
