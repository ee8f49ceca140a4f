package terra

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	// MeasurementKey marks the LemnaTec capture metadata entry.
	MeasurementKey = "lemnatec_measurement_metadata"
	// MetadataSuffix identifies the dataset metadata sidecar among local files.
	MetadataSuffix = "_dataset_metadata.json"
	// MaxImageDimension bounds the width and height read from metadata.
	MaxImageDimension = 1 << 16
)

// Metadata is capture metadata with lowercased keys.
type Metadata map[string]any

// Shape is the raw sensor geometry of one side.
type Shape struct {
	Width  int
	Height int
	Format string
}

// LoadJSON reads a metadata sidecar. The sidecar is a list of metadata
// documents; a single object is treated as a one-element list.
func LoadJSON(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata %s: %w", path, err)
	}
	var docs []map[string]any
	if err := json.Unmarshal(data, &docs); err == nil {
		return docs, nil
	}
	var single map[string]any
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("parse metadata %s: %w", path, err)
	}
	return []map[string]any{single}, nil
}

// FindMeasurementMetadata returns the lowercased content of the first
// document whose content holds MeasurementKey.
func FindMeasurementMetadata(docs []map[string]any) (Metadata, bool) {
	for _, doc := range docs {
		content, ok := doc["content"].(map[string]any)
		if !ok {
			continue
		}
		if _, ok := content[MeasurementKey]; !ok {
			continue
		}
		lowered, _ := LowerKeys(content).(map[string]any)
		return Metadata(lowered), true
	}
	return nil, false
}

// LowerKeys lowercases every map key recursively. Values are untouched.
func LowerKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[strings.ToLower(k)] = LowerKeys(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = LowerKeys(val)
		}
		return out
	default:
		return v
	}
}

// Section returns lemnatec_measurement_metadata.<name>.
func (m Metadata) Section(name string) (map[string]any, error) {
	root, ok := m[MeasurementKey].(map[string]any)
	if !ok {
		return nil, errors.New("metadata has no " + MeasurementKey + " object")
	}
	sec, ok := root[name].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("metadata has no %s section", name)
	}
	return sec, nil
}

// ImageShape reads the raw image width, height and Bayer format of side.
func ImageShape(md Metadata, side Side) (Shape, error) {
	sec, err := md.Section("sensor_variable_metadata")
	if err != nil {
		return Shape{}, err
	}
	format, err := stringField(sec, fmt.Sprintf("image format %s image", side))
	if err != nil {
		return Shape{}, err
	}
	switch strings.ToLower(format) {
	case "bayergr8", "bayerrg8":
	default:
		return Shape{}, fmt.Errorf("unsupported %s image format %q", side, format)
	}
	width, err := floatField(sec, fmt.Sprintf("width %s image [pixel]", side))
	if err != nil {
		return Shape{}, err
	}
	height, err := floatField(sec, fmt.Sprintf("height %s image [pixel]", side))
	if err != nil {
		return Shape{}, err
	}
	if width <= 0 || height <= 0 || width > MaxImageDimension || height > MaxImageDimension {
		return Shape{}, fmt.Errorf("invalid %s image shape %vx%v", side, width, height)
	}
	return Shape{Width: int(width), Height: int(height), Format: format}, nil
}

func stringField(sec map[string]any, key string) (string, error) {
	v, ok := sec[key]
	if !ok {
		return "", fmt.Errorf("metadata field %q missing", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("metadata field %q is not a string", key)
	}
	return strings.TrimSpace(s), nil
}

// floatField accepts JSON numbers and numeric strings.
func floatField(sec map[string]any, key string) (float64, error) {
	v, ok := sec[key]
	if !ok {
		return 0, fmt.Errorf("metadata field %q missing", key)
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("metadata field %q: %w", key, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("metadata field %q has type %T", key, v)
	}
}
