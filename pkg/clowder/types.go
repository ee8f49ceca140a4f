package clowder

import "fmt"

// Dataset is the subset of /api/datasets/{id} the extractor reads.
type Dataset struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// File describes one file listed in a dataset.
type File struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	DateCreated string `json:"date-created"`
	Size        string `json:"size,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// Agent identifies who authored a metadata entry.
type Agent struct {
	Type        string `json:"@type,omitempty"`
	Name        string `json:"name,omitempty"`
	ExtractorID string `json:"extractor_id,omitempty"`
}

// Metadata is one JSON-LD metadata document attached to a dataset.
type Metadata struct {
	Context   any            `json:"@context,omitempty"`
	Content   map[string]any `json:"content"`
	Agent     *Agent         `json:"agent,omitempty"`
	DatasetID string         `json:"dataset_id,omitempty"`
	CreatedAt string         `json:"created_at,omitempty"`
}

// AgentName returns the authoring agent name or "".
func (m Metadata) AgentName() string {
	if m.Agent == nil {
		return ""
	}
	return m.Agent.Name
}

// HasContentKey reports whether the content object carries key.
func (m Metadata) HasContentKey(key string) bool {
	if m.Content == nil {
		return false
	}
	_, ok := m.Content[key]
	return ok
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("clowder %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}
