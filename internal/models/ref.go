package models

import (
	"bytes"
	"encoding/json"
)

// Ref is a cross-entity reference as the backend returns it: either a bare string
// (an id, or legacy free text) or a populated {_id, name} object.
type Ref struct {
	ID   string
	Name string
	Raw  string
}

// UnmarshalJSON accepts a string, null or a populated object.
func (r *Ref) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*r = Ref{}
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*r = Ref{Raw: s}
		return nil
	}
	var obj struct {
		ID          string `json:"_id"`
		Name        string `json:"name"`
		DisplayName string `json:"displayName"`
		FullName    string `json:"fullName"`
	}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return err
	}
	name := obj.Name
	if name == "" {
		name = obj.DisplayName
	}
	if name == "" {
		name = obj.FullName
	}
	*r = Ref{ID: obj.ID, Name: name}
	return nil
}

// MarshalJSON writes the reference back as the backend expects it on writes: a bare id.
func (r Ref) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Key())
}

// Key is the id when known, else the raw string.
func (r Ref) Key() string {
	if r.ID != "" {
		return r.ID
	}
	return r.Raw
}

// Display is the human label when known, else the raw string.
func (r Ref) Display() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Raw
}
