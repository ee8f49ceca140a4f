package terra

import (
	"strings"
	"time"

	"github.com/terraref/bin2tif/pkg/clowder"
)

const metadataContext = "https://clowder.ncsa.illinois.edu/contexts/metadata.jsonld"

var dateLayouts = []string{
	"Mon Jan 2 15:04:05 MST 2006",
	"Mon Jan _2 15:04:05 MST 2006",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// BuildMetadata wraps content in a JSON-LD document authored by extractor.
func BuildMetadata(host, extractor, datasetID string, content map[string]any) clowder.Metadata {
	return clowder.Metadata{
		Context: []any{metadataContext},
		Content: content,
		Agent: &clowder.Agent{
			Type:        "cat:extractor",
			ExtractorID: strings.TrimRight(host, "/") + "/api/extractors/" + extractor,
		},
		DatasetID: datasetID,
	}
}

// IsLatestFile reports whether triggering is the most recently created
// file among files. An empty triggering name always counts as latest.
// Files whose creation date cannot be parsed are ignored.
func IsLatestFile(triggering string, files []clowder.File) bool {
	if triggering == "" {
		return true
	}
	var (
		latestName string
		latestTime time.Time
	)
	for _, f := range files {
		created, ok := parseDate(f.DateCreated)
		if !ok {
			continue
		}
		if latestName == "" || created.After(latestTime) {
			latestName = f.Filename
			latestTime = created
		}
	}
	return latestName == triggering
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
