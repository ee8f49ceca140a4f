package extractor

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDatasetLocked is returned when another run holds the dataset's output
// directory lock.
var ErrDatasetLocked = errors.New("dataset is being processed by another run")

// InputsMissingError reports which required local inputs were not found.
type InputsMissingError struct {
	Left     bool
	Right    bool
	Metadata bool
}

func (e *InputsMissingError) Error() string {
	var missing []string
	if e.Left {
		missing = append(missing, "left bin")
	}
	if e.Right {
		missing = append(missing, "right bin")
	}
	if e.Metadata {
		missing = append(missing, "metadata sidecar")
	}
	return "could not locate " + strings.Join(missing, ", ") + " among downloaded inputs"
}

// MetadataNotFoundError is returned when the sidecar holds no capture
// metadata entry.
type MetadataNotFoundError struct {
	Path string
}

func (e *MetadataNotFoundError) Error() string {
	return fmt.Sprintf("no lemnatec_measurement_metadata entry in %s", e.Path)
}
