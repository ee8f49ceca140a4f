package extractor

import (
	"context"
	"image"

	"github.com/terraref/bin2tif/internal/terra"
)

// Converter is the decode and geotransform collaborator.
type Converter interface {
	LoadMetadata(path string) (terra.Metadata, error)
	ImageShape(md terra.Metadata, side terra.Side) (terra.Shape, error)
	GPSBounds(md terra.Metadata) (left, right terra.Bounds, err error)
	Decode(path string, shape terra.Shape) (image.Image, error)
	WriteJPEG(img image.Image, path string) error
	WriteGeoTIFF(ctx context.Context, img image.Image, bounds terra.Bounds, path string) error
}

type terraConverter struct {
	geotiff *terra.GeoTIFFWriter
}

// NewConverter returns the terra-backed Converter.
func NewConverter(gdalTranslate string) Converter {
	return &terraConverter{geotiff: terra.NewGeoTIFFWriter(gdalTranslate)}
}

func (c *terraConverter) LoadMetadata(path string) (terra.Metadata, error) {
	docs, err := terra.LoadJSON(path)
	if err != nil {
		return nil, err
	}
	md, ok := terra.FindMeasurementMetadata(docs)
	if !ok {
		return nil, &MetadataNotFoundError{Path: path}
	}
	return md, nil
}

func (c *terraConverter) ImageShape(md terra.Metadata, side terra.Side) (terra.Shape, error) {
	return terra.ImageShape(md, side)
}

func (c *terraConverter) GPSBounds(md terra.Metadata) (terra.Bounds, terra.Bounds, error) {
	return terra.GPSBounds(md)
}

func (c *terraConverter) Decode(path string, shape terra.Shape) (image.Image, error) {
	return terra.DecodeBayer(path, shape)
}

func (c *terraConverter) WriteJPEG(img image.Image, path string) error {
	return terra.WriteJPEG(img, path)
}

func (c *terraConverter) WriteGeoTIFF(ctx context.Context, img image.Image, bounds terra.Bounds, path string) error {
	return c.geotiff.Write(ctx, img, bounds, path)
}
