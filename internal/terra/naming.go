package terra

import (
	"path/filepath"
	"strings"
)

// Side selects the left or right stereo camera.
type Side string

const (
	Left  Side = "left"
	Right Side = "right"
)

// Format selects an output encoding.
type Format string

const (
	JPEG    Format = "jpg"
	GeoTIFF Format = "tif"
)

const (
	level = "L1"
	site  = "ua-mac"
)

// OutputSet holds the four target paths for one dataset.
type OutputSet struct {
	Dir      string
	LeftJPG  string
	LeftTIF  string
	RightJPG string
	RightTIF string
}

// Path returns the target for a side and format.
func (o OutputSet) Path(side Side, format Format) string {
	switch {
	case side == Left && format == JPEG:
		return o.LeftJPG
	case side == Left && format == GeoTIFF:
		return o.LeftTIF
	case side == Right && format == JPEG:
		return o.RightJPG
	default:
		return o.RightTIF
	}
}

// All lists the targets in processing order.
func (o OutputSet) All() []string {
	return []string{o.LeftJPG, o.LeftTIF, o.RightJPG, o.RightTIF}
}

// Outputs derives the output set from the output root and dataset name.
func Outputs(root, datasetName string) OutputSet {
	dir := OutputDirectory(root, datasetName)
	return OutputSet{
		Dir:      dir,
		LeftJPG:  filepath.Join(dir, OutputFilename(datasetName, JPEG, Left)),
		LeftTIF:  filepath.Join(dir, OutputFilename(datasetName, GeoTIFF, Left)),
		RightJPG: filepath.Join(dir, OutputFilename(datasetName, JPEG, Right)),
		RightTIF: filepath.Join(dir, OutputFilename(datasetName, GeoTIFF, Right)),
	}
}

// OutputDirectory maps "stereoTop - 2017-04-27__10-00-00-000" to
// <root>/2017-04-27/2017-04-27__10-00-00-000. Other names get
// <root>/<sanitized name>.
func OutputDirectory(root, datasetName string) string {
	_, timestamp, ok := splitDatasetName(datasetName)
	if !ok {
		return filepath.Join(root, sanitize(datasetName))
	}
	date, _, found := strings.Cut(timestamp, "__")
	if !found {
		return filepath.Join(root, timestamp)
	}
	return filepath.Join(root, date, timestamp)
}

// OutputFilename builds <sensor>_L1_ua-mac_<timestamp>_<side>.<ext>.
func OutputFilename(datasetName string, format Format, side Side) string {
	sensor, timestamp, ok := splitDatasetName(datasetName)
	if !ok {
		return sanitize(datasetName) + "_" + string(side) + "." + string(format)
	}
	return strings.Join([]string{sensor, level, site, timestamp, string(side)}, "_") + "." + string(format)
}

func splitDatasetName(name string) (sensor, timestamp string, ok bool) {
	sensor, timestamp, ok = strings.Cut(name, " - ")
	if !ok {
		return "", "", false
	}
	sensor = sanitize(sensor)
	timestamp = sanitize(timestamp)
	if sensor == "" || timestamp == "" {
		return "", "", false
	}
	return sensor, timestamp, true
}

func sanitize(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ', ':':
			return '_'
		}
		return r
	}, s)
}
