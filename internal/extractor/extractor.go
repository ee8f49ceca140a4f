// Package extractor converts stereo BIN captures in a Clowder dataset into
// JPEG previews and GeoTIFFs and records what it produced.
package extractor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/terraref/bin2tif/internal/fileutil"
	"github.com/terraref/bin2tif/internal/terra"
	"github.com/terraref/bin2tif/pkg/clowder"
	"github.com/terraref/bin2tif/pkg/influx"
	"github.com/terraref/bin2tif/pkg/storage/objectstore"
)

// Store is the subset of the Clowder API the extractor calls.
type Store interface {
	DownloadMetadata(ctx context.Context, datasetID, extractor string) ([]clowder.Metadata, error)
	UploadMetadata(ctx context.Context, datasetID string, md clowder.Metadata) error
	RemoveMetadata(ctx context.Context, datasetID, extractor string) error
	UploadToDataset(ctx context.Context, datasetID, path string) (string, error)
}

// Telemetry receives one summary per completed run.
type Telemetry interface {
	LogRun(ctx context.Context, run influx.Run) error
}

// Extractor holds the Eligibility Filter and the Conversion Orchestrator.
type Extractor struct {
	name       string
	outputDir  string
	scratchDir string
	overwrite  bool
	store      Store
	converter  Converter
	telemetry  Telemetry
	mirror     objectstore.Client
	logger     *zap.Logger
	now        func() time.Time
}

type Params struct {
	Name           string
	OutputDir      string
	ScratchDir     string
	ForceOverwrite bool
	Store          Store
	Converter      Converter
	Telemetry      Telemetry
	Mirror         objectstore.Client
	Logger         *zap.Logger
	Now            func() time.Time
}

// New constructs an Extractor. Telemetry and Mirror are optional.
func New(p Params) *Extractor {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	logr := p.Logger
	if logr == nil {
		logr = zap.NewNop()
	}
	return &Extractor{
		name:       p.Name,
		outputDir:  p.OutputDir,
		scratchDir: p.ScratchDir,
		overwrite:  p.ForceOverwrite,
		store:      p.Store,
		converter:  p.Converter,
		telemetry:  p.Telemetry,
		mirror:     p.Mirror,
		logger:     logr,
		now:        now,
	}
}

// Name returns the extractor identity used to author metadata.
func (e *Extractor) Name() string {
	return e.name
}

// WithStore returns a copy bound to another Clowder store.
func (e *Extractor) WithStore(store Store) *Extractor {
	cp := *e
	cp.store = store
	return &cp
}

// CheckMessage decides whether a dataset event should be processed.
func (e *Extractor) CheckMessage(ctx context.Context, res *Resource) (CheckResult, error) {
	logr := e.logger.With(zap.String("dataset_id", res.ID))

	if !terra.IsLatestFile(res.TriggeringFile, res.Files) {
		logr.Debug("skipping dataset; triggering file is not the latest", zap.String("file", res.TriggeringFile))
		return CheckIgnore, nil
	}

	foundLeft, foundRight := stereoPair(res.Files)
	if !foundLeft || !foundRight {
		logr.Debug("skipping dataset; stereo pair incomplete", zap.Bool("left", foundLeft), zap.Bool("right", foundRight))
		return CheckIgnore, nil
	}

	out := terra.Outputs(e.outputDir, res.Name)
	if !e.overwrite && allExist(out.All()) {
		logr.Info("skipping dataset; outputs found", zap.String("output_dir", out.Dir))
		return CheckIgnore, nil
	}

	md, err := e.store.DownloadMetadata(ctx, res.ID, "")
	if err != nil {
		return CheckIgnore, fmt.Errorf("download dataset metadata: %w", err)
	}

	foundMeta := false
	for _, m := range md {
		if !e.overwrite && e.authoredBySelf(m) {
			logr.Info("skipping dataset; metadata indicates it was already processed")
			return CheckIgnore, nil
		}
		if m.HasContentKey(terra.MeasurementKey) {
			foundMeta = true
		}
	}

	if !foundMeta {
		logr.Debug("skipping dataset; capture metadata not found")
		return CheckIgnore, nil
	}
	return CheckDownload, nil
}

// authoredBySelf matches the agent name suffix, falling back to the
// extractor id Clowder echoes back for documents posted by extractors.
func (e *Extractor) authoredBySelf(m clowder.Metadata) bool {
	if m.Agent == nil || e.name == "" {
		return false
	}
	if name := m.AgentName(); name != "" {
		return strings.HasSuffix(name, e.name)
	}
	return strings.HasSuffix(m.Agent.ExtractorID, e.name)
}

func allExist(paths []string) bool {
	for _, p := range paths {
		if !fileutil.IsFile(p) {
			return false
		}
	}
	return true
}
