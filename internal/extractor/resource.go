package extractor

import (
	"strings"

	"github.com/terraref/bin2tif/pkg/clowder"
)

const (
	leftSuffix  = "_left.bin"
	rightSuffix = "_right.bin"
)

// CheckResult is the Eligibility Filter verdict.
type CheckResult int

const (
	CheckIgnore CheckResult = iota
	CheckDownload
	CheckProcess
)

func (r CheckResult) String() string {
	switch r {
	case CheckDownload:
		return "download"
	case CheckProcess:
		return "process"
	default:
		return "ignore"
	}
}

// MarshalText renders the verdict by name in JSON payloads.
func (r CheckResult) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Resource describes one dataset-level event.
type Resource struct {
	ID             string
	Name           string
	Files          []clowder.File
	LocalPaths     []string
	TriggeringFile string
	Host           string
}

// hasLocalPath reports whether path is one of the downloaded inputs.
func (r *Resource) hasLocalPath(path string) bool {
	for _, p := range r.LocalPaths {
		if p == path {
			return true
		}
	}
	return false
}

// stereoPair reports which of the two BIN captures are listed.
func stereoPair(files []clowder.File) (left, right bool) {
	for _, f := range files {
		switch {
		case strings.HasSuffix(f.Filename, leftSuffix):
			left = true
		case strings.HasSuffix(f.Filename, rightSuffix):
			right = true
		}
	}
	return left, right
}

// ExtractionEvent is the trigger payload delivered over Kafka or HTTP.
type ExtractionEvent struct {
	DatasetID string `json:"dataset_id"`
	FileID    string `json:"file_id,omitempty"`
	Filename  string `json:"filename,omitempty"`
	Host      string `json:"host,omitempty"`
	SecretKey string `json:"secret_key,omitempty"`
}
