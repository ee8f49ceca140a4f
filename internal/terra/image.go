package terra

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"golang.org/x/image/tiff"
)

// DecodeBayer reads an 8-bit Bayer mosaic of the given shape and returns a
// colour image. Each 2x2 cell yields one RGB value shared by its pixels.
func DecodeBayer(path string, shape Shape) (*image.RGBA, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read raw image %s: %w", path, err)
	}
	w, h := shape.Width, shape.Height
	if w <= 0 || h <= 0 || h > len(raw)/w {
		return nil, fmt.Errorf("raw image %s: %d bytes cannot hold a %dx%d mosaic", path, len(raw), w, h)
	}

	// offsets of R and B within a 2x2 cell; G sits on the other diagonal.
	rx, ry, bx, by := 1, 0, 0, 1
	if strings.EqualFold(shape.Format, "bayerrg8") {
		rx, ry, bx, by = 0, 0, 1, 1
	}

	at := func(x, y int) uint8 {
		if x >= w {
			x = w - 1
		}
		if y >= h {
			y = h - 1
		}
		return raw[y*w+x]
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y += 2 {
		for x := 0; x < w; x += 2 {
			r := at(x+rx, y+ry)
			b := at(x+bx, y+by)
			g := uint8((uint16(at(x+1-rx, y+ry)) + uint16(at(x+1-bx, y+by))) / 2)
			c := color.RGBA{R: r, G: g, B: b, A: 0xff}
			for dy := 0; dy < 2 && y+dy < h; dy++ {
				for dx := 0; dx < 2 && x+dx < w; dx++ {
					img.SetRGBA(x+dx, y+dy, c)
				}
			}
		}
	}
	return img, nil
}

// WriteJPEG encodes img to path.
func WriteJPEG(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	buf := bufio.NewWriter(f)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: jpeg.DefaultQuality}); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode jpeg %s: %w", path, err)
	}
	if err := buf.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WriteTIFF encodes img to path without georeferencing.
func WriteTIFF(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	buf := bufio.NewWriter(f)
	if err := tiff.Encode(buf, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode tiff %s: %w", path, err)
	}
	if err := buf.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// CommandRunner executes an external program and returns combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// GeoTIFFWriter writes a plain TIFF and assigns EPSG:4326 corner
// coordinates with gdal_translate.
type GeoTIFFWriter struct {
	GDALTranslate string
	Run           CommandRunner
}

// NewGeoTIFFWriter returns a writer invoking the given gdal_translate binary.
func NewGeoTIFFWriter(gdalTranslate string) *GeoTIFFWriter {
	return &GeoTIFFWriter{GDALTranslate: gdalTranslate, Run: execRunner}
}

// Write creates a GeoTIFF at path covering bounds.
func (w *GeoTIFFWriter) Write(ctx context.Context, img image.Image, bounds Bounds, path string) error {
	if strings.TrimSpace(w.GDALTranslate) == "" {
		return fmt.Errorf("gdal_translate command not configured")
	}
	plain := path + ".plain.tif"
	if err := WriteTIFF(img, plain); err != nil {
		return err
	}
	defer os.Remove(plain)

	args := []string{
		"-q",
		"-of", "GTiff",
		"-a_srs", "EPSG:4326",
		"-a_ullr",
		formatCoord(bounds.LonMin), formatCoord(bounds.LatMax),
		formatCoord(bounds.LonMax), formatCoord(bounds.LatMin),
		plain, path,
	}
	run := w.Run
	if run == nil {
		run = execRunner
	}
	if out, err := run(ctx, w.GDALTranslate, args...); err != nil {
		return fmt.Errorf("gdal_translate %s: %w: %s", path, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 10, 64)
}
