package extractor

import "github.com/terraref/bin2tif/pkg/clowder"

const (
	filesCreatedKey = "files_created"
	artifactsKey    = "artifacts"
)

// CompletionRecord is the content of the metadata document marking a
// dataset as processed. Artifacts maps a target path to the id of its most
// recent upload; FilesCreated is every id ever uploaded, without repeats.
type CompletionRecord struct {
	FilesCreated []string
	Artifacts    map[string]string
}

func newCompletionRecord() *CompletionRecord {
	return &CompletionRecord{Artifacts: map[string]string{}}
}

// Add records an upload for path.
func (r *CompletionRecord) Add(path, fileID string) {
	r.Artifacts[path] = fileID
	r.appendID(fileID)
}

// Fold merges a prior record. Prior ids are kept ahead of new ones; a path
// already uploaded in this run keeps the new id.
func (r *CompletionRecord) Fold(prior CompletionRecord) {
	ids := make([]string, 0, len(prior.FilesCreated)+len(r.FilesCreated))
	ids = append(ids, prior.FilesCreated...)
	ids = append(ids, r.FilesCreated...)
	r.FilesCreated = nil
	for _, id := range ids {
		r.appendID(id)
	}
	for path, id := range prior.Artifacts {
		if _, ok := r.Artifacts[path]; !ok {
			r.Artifacts[path] = id
		}
	}
}

func (r *CompletionRecord) appendID(id string) {
	for _, existing := range r.FilesCreated {
		if existing == id {
			return
		}
	}
	r.FilesCreated = append(r.FilesCreated, id)
}

// Content renders the record as metadata content.
func (r *CompletionRecord) Content() map[string]any {
	files := r.FilesCreated
	if files == nil {
		files = []string{}
	}
	artifacts := make(map[string]any, len(r.Artifacts))
	for path, id := range r.Artifacts {
		artifacts[path] = id
	}
	return map[string]any{
		filesCreatedKey: files,
		artifactsKey:    artifacts,
	}
}

// recordFromMetadata reads a prior record, tolerating documents written
// before artifacts were tracked.
func recordFromMetadata(md clowder.Metadata) CompletionRecord {
	rec := CompletionRecord{Artifacts: map[string]string{}}
	if md.Content == nil {
		return rec
	}
	switch ids := md.Content[filesCreatedKey].(type) {
	case []any:
		for _, v := range ids {
			if s, ok := v.(string); ok && s != "" {
				rec.FilesCreated = append(rec.FilesCreated, s)
			}
		}
	case []string:
		rec.FilesCreated = append(rec.FilesCreated, ids...)
	}
	switch arts := md.Content[artifactsKey].(type) {
	case map[string]any:
		for path, v := range arts {
			if s, ok := v.(string); ok {
				rec.Artifacts[path] = s
			}
		}
	case map[string]string:
		for path, id := range arts {
			rec.Artifacts[path] = id
		}
	}
	return rec
}
