package jira

import (
	"encoding/json"
)

// SearchResponse is the top-level container for Jira search results.
type SearchResponse struct {
	StartAt    int        `json:"startAt"`
	MaxResults int        `json:"maxResults"`
	Total      int        `json:"total"`
	Issues     []IssueDTO `json:"issues"`
}

// IssueDTO represents a single issue in the Jira search response.
type IssueDTO struct {
	ID        string        `json:"id,omitempty"`
	Key       string        `json:"key"`
	Self      string        `json:"self,omitempty"`
	Fields    FieldsDTO     `json:"fields"`
	Changelog *ChangelogDTO `json:"changelog,omitempty"`
}

// NamedDTO is the common {id, name} shape of issue types, statuses and resolutions.
type NamedDTO struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// FieldsDTO contains the system fields we read by name. Every field of the
// payload, custom fields included, is also kept in Raw so configured
// attributes can be resolved by id.
type FieldsDTO struct {
	Summary        string    `json:"summary"`
	IssueType      NamedDTO  `json:"issuetype"`
	Status         NamedDTO  `json:"status"`
	Resolution     *NamedDTO `json:"resolution"`
	ResolutionDate string    `json:"resolutiondate,omitempty"`
	Created        string    `json:"created"`
	Updated        string    `json:"updated,omitempty"`

	Raw map[string]any `json:"-"`
}

type fieldsAlias FieldsDTO

// UnmarshalJSON decodes the typed fields and keeps the full payload in Raw.
func (f *FieldsDTO) UnmarshalJSON(data []byte) error {
	var typed fieldsAlias
	if err := json.Unmarshal(data, &typed); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = FieldsDTO(typed)
	f.Raw = raw
	return nil
}

// MarshalJSON writes the typed fields merged over Raw, so snapshots round-trip custom fields.
func (f FieldsDTO) MarshalJSON() ([]byte, error) {
	typed, err := json.Marshal(fieldsAlias(f))
	if err != nil {
		return nil, err
	}
	if len(f.Raw) == 0 {
		return typed, nil
	}

	merged := make(map[string]any, len(f.Raw))
	for k, v := range f.Raw {
		merged[k] = v
	}
	var overlay map[string]any
	if err := json.Unmarshal(typed, &overlay); err != nil {
		return nil, err
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// ChangelogDTO contains historical transitions.
type ChangelogDTO struct {
	Histories []HistoryDTO `json:"histories"`
}

// HistoryDTO is a single entry in the changelog.
type HistoryDTO struct {
	ID      string    `json:"id,omitempty"`
	Created string    `json:"created"`
	Items   []ItemDTO `json:"items"`
}

// ItemDTO is a single field change within a history entry.
type ItemDTO struct {
	Field      string `json:"field"`
	FieldID    string `json:"fieldId,omitempty"`
	ToString   string `json:"toString"`
	FromString string `json:"fromString"`
	To         string `json:"to,omitempty"`   // ID
	From       string `json:"from,omitempty"` // ID
}

// FieldDTO describes a field returned by /rest/api/2/field.
type FieldDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Custom bool   `json:"custom"`
}
