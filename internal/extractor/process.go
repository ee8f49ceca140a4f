package extractor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/terraref/bin2tif/internal/fileutil"
	"github.com/terraref/bin2tif/internal/terra"
	"github.com/terraref/bin2tif/pkg/influx"
)

const lockFileName = ".bin2tif.lock"

// Result summarizes one Orchestrator run.
type Result struct {
	OutputDir    string    `json:"output_dir"`
	Created      int       `json:"created"`
	Bytes        int64     `json:"bytes"`
	Uploaded     []string  `json:"uploaded"`
	FilesCreated []string  `json:"files_created"`
	Start        time.Time `json:"started_at"`
	End          time.Time `json:"finished_at"`
}

type inputs struct {
	metadata string
	left     string
	right    string
}

func locateInputs(paths []string) (inputs, error) {
	var in inputs
	for _, p := range paths {
		switch {
		case strings.HasSuffix(p, terra.MetadataSuffix):
			in.metadata = p
		case strings.HasSuffix(p, leftSuffix):
			in.left = p
		case strings.HasSuffix(p, rightSuffix):
			in.right = p
		}
	}
	if in.metadata == "" || in.left == "" || in.right == "" {
		return in, &InputsMissingError{
			Left:     in.left == "",
			Right:    in.right == "",
			Metadata: in.metadata == "",
		}
	}
	return in, nil
}

// sideImage is one side's lazily decoded capture. A nil img means not yet
// decoded; it is decoded on first use and shared by both outputs.
type sideImage struct {
	side   terra.Side
	raw    string
	shape  terra.Shape
	bounds terra.Bounds
	img    image.Image
}

func (s *sideImage) get(conv Converter) (image.Image, error) {
	if s.img != nil {
		return s.img, nil
	}
	img, err := conv.Decode(s.raw, s.shape)
	if err != nil {
		return nil, fmt.Errorf("decode %s image: %w", s.side, err)
	}
	s.img = img
	return img, nil
}

func (s *sideImage) release() {
	s.img = nil
}

type run struct {
	res     *Resource
	record  *CompletionRecord
	created int
	bytes   int64
	logger  *zap.Logger
}

// ProcessMessage converts the downloaded captures, uploads new artifacts
// and replaces this extractor's completion record.
func (e *Extractor) ProcessMessage(ctx context.Context, res *Resource) (*Result, error) {
	start := e.now()
	logr := e.logger.With(zap.String("dataset_id", res.ID), zap.String("dataset", res.Name))

	out := terra.Outputs(e.outputDir, res.Name)
	logr.Info("output directory", zap.String("path", out.Dir))
	if err := os.MkdirAll(out.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	lock := flock.New(filepath.Join(out.Dir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock output directory: %w", err)
	}
	if !locked {
		return nil, ErrDatasetLocked
	}
	defer lock.Unlock() //nolint:errcheck

	in, err := locateInputs(res.LocalPaths)
	if err != nil {
		return nil, err
	}

	md, err := e.converter.LoadMetadata(in.metadata)
	if err != nil {
		return nil, err
	}

	logr.Info("determining image shapes")
	leftShape, err := e.converter.ImageShape(md, terra.Left)
	if err != nil {
		return nil, fmt.Errorf("left image shape: %w", err)
	}
	rightShape, err := e.converter.ImageShape(md, terra.Right)
	if err != nil {
		return nil, fmt.Errorf("right image shape: %w", err)
	}
	leftBounds, rightBounds, err := e.converter.GPSBounds(md)
	if err != nil {
		return nil, fmt.Errorf("gps bounds: %w", err)
	}

	r := &run{res: res, record: newCompletionRecord(), logger: logr}
	sides := []*sideImage{
		{side: terra.Left, raw: in.left, shape: leftShape, bounds: leftBounds},
		{side: terra.Right, raw: in.right, shape: rightShape, bounds: rightBounds},
	}
	for _, si := range sides {
		if err := e.produce(ctx, r, si, terra.JPEG, out.Path(si.side, terra.JPEG)); err != nil {
			return nil, err
		}
		if err := e.produce(ctx, r, si, terra.GeoTIFF, out.Path(si.side, terra.GeoTIFF)); err != nil {
			return nil, err
		}
		si.release()
	}

	uploaded := append([]string(nil), r.record.FilesCreated...)

	if err := e.replaceRecord(ctx, res, r.record); err != nil {
		return nil, err
	}

	end := e.now()
	result := &Result{
		OutputDir:    out.Dir,
		Created:      r.created,
		Bytes:        r.bytes,
		Uploaded:     uploaded,
		FilesCreated: append([]string(nil), r.record.FilesCreated...),
		Start:        start,
		End:          end,
	}

	if e.telemetry != nil {
		err := e.telemetry.LogRun(ctx, influx.Run{
			Extractor: e.name,
			Start:     start,
			End:       end,
			Created:   r.created,
			Bytes:     r.bytes,
		})
		if err != nil {
			logr.Warn("telemetry write failed", zap.Error(err))
		}
	}

	logr.Info("dataset processed",
		zap.Int("created", r.created),
		zap.Int64("bytes", r.bytes),
		zap.Int("uploaded", len(uploaded)),
		zap.Duration("elapsed", end.Sub(start)),
	)
	return result, nil
}

// produce creates one artifact unless it already exists and overwrite is
// off, then uploads it when it is not one of the event's own inputs.
func (e *Extractor) produce(ctx context.Context, r *run, si *sideImage, format terra.Format, target string) error {
	existed := fileutil.IsFile(target)
	if existed && !e.overwrite {
		r.logger.Debug("output exists; skipping", zap.String("path", target))
		return nil
	}

	r.logger.Info("creating output",
		zap.String("side", string(si.side)),
		zap.String("format", string(format)),
		zap.Bool("replaced", existed),
	)

	img, err := si.get(e.converter)
	if err != nil {
		return err
	}

	switch format {
	case terra.JPEG:
		if err := e.converter.WriteJPEG(img, target); err != nil {
			return fmt.Errorf("write %s jpeg: %w", si.side, err)
		}
	case terra.GeoTIFF:
		if err := e.writeGeoTIFF(ctx, img, si.bounds, target); err != nil {
			return fmt.Errorf("write %s geotiff: %w", si.side, err)
		}
	}

	if !r.res.hasLocalPath(target) {
		fileID, err := e.store.UploadToDataset(ctx, r.res.ID, target)
		if err != nil {
			return fmt.Errorf("upload %s: %w", filepath.Base(target), err)
		}
		r.record.Add(target, fileID)
		r.logger.Debug("uploaded output", zap.String("path", target), zap.String("file_id", fileID))
	}

	size, err := fileutil.Size(target)
	if err != nil {
		return fmt.Errorf("stat %s: %w", target, err)
	}
	r.created++
	r.bytes += size

	e.mirrorArtifact(ctx, r, target)
	return nil
}

// writeGeoTIFF writes into the scratch directory first to keep the encoder
// away from long output paths, then moves the file into place.
func (e *Extractor) writeGeoTIFF(ctx context.Context, img image.Image, bounds terra.Bounds, target string) error {
	scratch := e.scratchDir
	if scratch == "" {
		scratch = os.TempDir()
	}
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}
	tmp := filepath.Join(scratch, uuid.NewString()+".tif")

	if err := e.converter.WriteGeoTIFF(ctx, img, bounds, tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := fileutil.Move(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("move into place: %w", err)
	}
	return nil
}

func (e *Extractor) mirrorArtifact(ctx context.Context, r *run, path string) {
	if e.mirror == nil {
		return
	}
	key := filepath.Base(filepath.Dir(path)) + "/" + filepath.Base(path)
	err := e.mirror.PutFile(ctx, key, path, map[string]string{
		"dataset_id": r.res.ID,
		"extractor":  e.name,
	})
	if err != nil {
		r.logger.Warn("object store mirror failed", zap.String("key", key), zap.Error(err))
	}
}

// replaceRecord folds this extractor's prior records into rec, removes
// them, and uploads rec.
func (e *Extractor) replaceRecord(ctx context.Context, res *Resource, rec *CompletionRecord) error {
	prior, err := e.store.DownloadMetadata(ctx, res.ID, e.name)
	if err != nil {
		return fmt.Errorf("download prior records: %w", err)
	}

	found := false
	for _, m := range prior {
		if !e.authoredBySelf(m) {
			continue
		}
		rec.Fold(recordFromMetadata(m))
		found = true
	}
	if found {
		if err := e.store.RemoveMetadata(ctx, res.ID, e.name); err != nil {
			return fmt.Errorf("remove prior records: %w", err)
		}
	}

	md := terra.BuildMetadata(res.Host, e.name, res.ID, rec.Content())
	if err := e.store.UploadMetadata(ctx, res.ID, md); err != nil {
		return fmt.Errorf("upload completion record: %w", err)
	}
	return nil
}

// IsInputError reports whether err means the downloaded inputs were
// incomplete.
func IsInputError(err error) bool {
	var missing *InputsMissingError
	var noMeta *MetadataNotFoundError
	return errors.As(err, &missing) || errors.As(err, &noMeta)
}
