// Package toml loads declarative process definitions from TOML documents.
package toml

import (
	_ "embed"
	"fmt"
	"os"

	bstoml "github.com/BurntSushi/toml"

	"github.com/gitdigital/loanflow/internal/domain"
)

//go:embed founder_loan_v1.toml
var defaultDefinition []byte

// document mirrors the on-disk shape before conversion to domain types.
type document struct {
	Name    string  `toml:"name"`
	Version int     `toml:"version"`
	Initial string  `toml:"initial"`
	States  []state `toml:"states"`
}

type state struct {
	ID          string       `toml:"id"`
	Transitions []transition `toml:"transitions"`
}

type transition struct {
	On      string   `toml:"on"`
	To      string   `toml:"to"`
	Actions []action `toml:"actions"`
}

type action struct {
	Trigger string `toml:"trigger"`
}

// LoadFile reads and validates a process definition from the given path.
func LoadFile(path string) (*domain.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading process definition: %w", err)
	}
	return load(data)
}

// LoadDefault returns the embedded founder-loan v1 definition.
func LoadDefault() (*domain.Definition, error) {
	return load(defaultDefinition)
}

func load(data []byte) (*domain.Definition, error) {
	var doc document
	if err := bstoml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing process definition: %w", err)
	}

	def := toDomain(doc)
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("validating process definition: %w", err)
	}

	return def, nil
}

func toDomain(doc document) *domain.Definition {
	def := &domain.Definition{
		Name:    doc.Name,
		Version: doc.Version,
		Initial: doc.Initial,
		States:  make([]domain.State, 0, len(doc.States)),
	}

	for _, s := range doc.States {
		ds := domain.State{ID: s.ID}
		for _, t := range s.Transitions {
			dt := domain.Transition{On: t.On, To: t.To}
			for _, a := range t.Actions {
				dt.Actions = append(dt.Actions, domain.Action{Trigger: a.Trigger})
			}
			ds.Transitions = append(ds.Transitions, dt)
		}
		def.States = append(def.States, ds)
	}

	return def
}
