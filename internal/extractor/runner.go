package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/terraref/bin2tif/internal/terra"
	"github.com/terraref/bin2tif/pkg/clowder"
	"github.com/terraref/bin2tif/pkg/tracing"
)

// ErrInvalidEvent is returned for events without a dataset id.
var ErrInvalidEvent = errors.New("extraction event has no dataset_id")

// Remote is the Clowder surface the Runner needs to build and download a
// Resource, on top of what the Extractor uses.
type Remote interface {
	Store
	GetDataset(ctx context.Context, datasetID string) (*clowder.Dataset, error)
	ListFiles(ctx context.Context, datasetID string) ([]clowder.File, error)
	DownloadFile(ctx context.Context, fileID, dst string) error
	Host() string
}

// RemoteFactory binds a Remote to the host and key carried by an event.
type RemoteFactory func(host, key string) Remote

// Publisher emits completion events.
type Publisher interface {
	PublishJSON(ctx context.Context, key string, payload any, headers map[string]string) error
}

// Outcome is what the host runtime did with one event.
type Outcome struct {
	Verdict CheckResult `json:"verdict"`
	Result  *Result     `json:"result,omitempty"`
}

// Runner plays the host runtime: it turns an event into a Resource, runs
// the filter, downloads inputs, and runs the orchestrator.
type Runner struct {
	extractor  *Extractor
	remote     RemoteFactory
	publisher  Publisher
	scratchDir string
	logger     *zap.Logger
	tracer     trace.Tracer
}

type RunnerParams struct {
	Extractor  *Extractor
	Remote     RemoteFactory
	Publisher  Publisher
	ScratchDir string
	Logger     *zap.Logger
}

// NewRunner constructs a Runner. Publisher is optional.
func NewRunner(p RunnerParams) *Runner {
	logr := p.Logger
	if logr == nil {
		logr = zap.NewNop()
	}
	return &Runner{
		extractor:  p.Extractor,
		remote:     p.Remote,
		publisher:  p.Publisher,
		scratchDir: p.ScratchDir,
		logger:     logr,
		tracer:     tracing.Tracer("github.com/terraref/bin2tif/internal/extractor"),
	}
}

// Check runs only the Eligibility Filter for an event.
func (r *Runner) Check(ctx context.Context, ev ExtractionEvent) (CheckResult, error) {
	_, ext, res, err := r.prepare(ctx, ev)
	if err != nil {
		return CheckIgnore, err
	}
	return ext.CheckMessage(ctx, res)
}

// Handle processes one event to completion.
func (r *Runner) Handle(ctx context.Context, ev ExtractionEvent) (*Outcome, error) {
	ctx, span := r.tracer.Start(ctx, "bin2tif.handle",
		trace.WithAttributes(attribute.String("clowder.dataset_id", ev.DatasetID)))
	defer span.End()

	outcome, err := r.handle(ctx, ev)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Error("extraction failed", zap.String("dataset_id", ev.DatasetID), zap.Error(err))
		return nil, err
	}
	span.SetAttributes(attribute.String("bin2tif.verdict", outcome.Verdict.String()))
	return outcome, nil
}

func (r *Runner) handle(ctx context.Context, ev ExtractionEvent) (*Outcome, error) {
	remote, ext, res, err := r.prepare(ctx, ev)
	if err != nil {
		return nil, err
	}

	checkCtx, checkSpan := r.tracer.Start(ctx, "bin2tif.check")
	verdict, err := ext.CheckMessage(checkCtx, res)
	checkSpan.End()
	if err != nil {
		return nil, err
	}
	if verdict == CheckIgnore {
		return &Outcome{Verdict: verdict}, nil
	}

	if r.scratchDir != "" {
		if err := os.MkdirAll(r.scratchDir, 0o755); err != nil {
			return nil, fmt.Errorf("create scratch directory: %w", err)
		}
	}
	workDir, err := os.MkdirTemp(r.scratchDir, "bin2tif-")
	if err != nil {
		return nil, fmt.Errorf("create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	if err := r.download(ctx, remote, res, workDir); err != nil {
		return nil, err
	}

	processCtx, processSpan := r.tracer.Start(ctx, "bin2tif.process")
	result, err := ext.ProcessMessage(processCtx, res)
	processSpan.End()
	if err != nil {
		return nil, err
	}

	r.publish(ctx, ext, res, result)
	return &Outcome{Verdict: verdict, Result: result}, nil
}

func (r *Runner) prepare(ctx context.Context, ev ExtractionEvent) (Remote, *Extractor, *Resource, error) {
	if strings.TrimSpace(ev.DatasetID) == "" {
		return nil, nil, nil, ErrInvalidEvent
	}
	remote := r.remote(ev.Host, ev.SecretKey)

	ds, err := remote.GetDataset(ctx, ev.DatasetID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("get dataset: %w", err)
	}
	files, err := remote.ListFiles(ctx, ev.DatasetID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list dataset files: %w", err)
	}

	res := &Resource{
		ID:             ds.ID,
		Name:           ds.Name,
		Files:          files,
		TriggeringFile: ev.Filename,
		Host:           ev.Host,
	}
	if res.ID == "" {
		res.ID = ev.DatasetID
	}
	if res.Host == "" {
		res.Host = remote.Host()
	}
	return remote, r.extractor.WithStore(remote), res, nil
}

// download fetches the stereo captures and writes the dataset metadata
// sidecar into workDir, filling res.LocalPaths.
func (r *Runner) download(ctx context.Context, remote Remote, res *Resource, workDir string) error {
	for _, f := range res.Files {
		if !strings.HasSuffix(f.Filename, leftSuffix) && !strings.HasSuffix(f.Filename, rightSuffix) {
			continue
		}
		dst := filepath.Join(workDir, filepath.Base(f.Filename))
		r.logger.Debug("downloading input", zap.String("file_id", f.ID), zap.String("path", dst))
		if err := remote.DownloadFile(ctx, f.ID, dst); err != nil {
			return fmt.Errorf("download %s: %w", f.Filename, err)
		}
		res.LocalPaths = append(res.LocalPaths, dst)
	}

	md, err := remote.DownloadMetadata(ctx, res.ID, "")
	if err != nil {
		return fmt.Errorf("download dataset metadata: %w", err)
	}
	payload, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("marshal dataset metadata: %w", err)
	}
	sidecar := filepath.Join(workDir, res.ID+terra.MetadataSuffix)
	if err := os.WriteFile(sidecar, payload, 0o644); err != nil {
		return fmt.Errorf("write metadata sidecar: %w", err)
	}
	res.LocalPaths = append(res.LocalPaths, sidecar)
	return nil
}

func (r *Runner) publish(ctx context.Context, ext *Extractor, res *Resource, result *Result) {
	if r.publisher == nil {
		return
	}
	event := ConversionEvent{
		ID:           uuid.NewString(),
		Extractor:    ext.Name(),
		DatasetID:    res.ID,
		DatasetName:  res.Name,
		OutputDir:    result.OutputDir,
		Uploaded:     result.Uploaded,
		FilesCreated: result.FilesCreated,
		Created:      result.Created,
		Bytes:        result.Bytes,
		StartedAt:    result.Start.UTC(),
		FinishedAt:   result.End.UTC(),
	}
	headers := map[string]string{
		"dataset_id": res.ID,
		"event_type": "bin2tif.completed",
	}
	if err := r.publisher.PublishJSON(ctx, res.ID, event, headers); err != nil {
		r.logger.Warn("publish completion event failed", zap.String("dataset_id", res.ID), zap.Error(err))
	}
}
