package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Player is one record of the sportsdata.io Players feed. Only the fields the
// catalog table declares are mapped; the raw payload keeps everything else.
type Player struct {
	PlayerID  int    `json:"PlayerID"`
	FirstName string `json:"FirstName"`
	LastName  string `json:"LastName"`
	Team      string `json:"Team"`
	Position  string `json:"Position"`
	Points    int    `json:"Points"`
}

// Records is the fetched JSON array, element by element, exactly as received.
type Records []json.RawMessage

// Len reports the number of records.
func (r Records) Len() int { return len(r) }

// Empty reports whether there is nothing to load downstream.
func (r Records) Empty() bool { return len(r) == 0 }

// Marshal encodes the records back into a JSON array.
func (r Records) Marshal() ([]byte, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]json.RawMessage(r))
}

// Players decodes every record into a Player.
func (r Records) Players() ([]Player, error) {
	players := make([]Player, 0, len(r))
	for i, raw := range r {
		var p Player
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode record %d: %w", i, err)
		}
		players = append(players, p)
	}
	return players, nil
}

// Column is a catalog column definition.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TableDefinition describes an external table over a storage prefix.
type TableDefinition struct {
	Name     string   `json:"name"`
	Columns  []Column `json:"columns"`
	Location string   `json:"location"`
}

// QueryExecution is the handle returned when a query is submitted.
type QueryExecution struct {
	ID             string    `json:"id"`
	Database       string    `json:"database"`
	SQL            string    `json:"sql"`
	OutputLocation string    `json:"output_location"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// QueryStatus is the state of a submitted execution as reported by the query service.
type QueryStatus struct {
	ID          string     `json:"id"`
	State       string     `json:"state"`
	Reason      string     `json:"reason,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
