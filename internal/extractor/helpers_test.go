package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/terraref/bin2tif/internal/terra"
	"github.com/terraref/bin2tif/pkg/clowder"
	"github.com/terraref/bin2tif/pkg/influx"
)

const (
	testExtractor = "terra.stereo-rgb.bin2tif"
	testHost      = "http://clowder.test"
	testDataset   = "ds1"
	testName      = "stereoTop - 2017-04-27__10-00-00-000"
)

func measurementContent() map[string]any {
	return map[string]any{
		terra.MeasurementKey: map[string]any{
			"gantry_system_variable_metadata": map[string]any{
				"position x [m]": "100.0",
				"position y [m]": "10.0",
				"position z [m]": "2.0",
			},
			"sensor_fixed_metadata": map[string]any{
				"location in camera box x [m]":               "0.877",
				"location in camera box y [m]":               "2.276",
				"field of view at 2m in x- y- direction [m]": "[1.857 1.246]",
			},
			"sensor_variable_metadata": map[string]any{
				"image format left image":    "BayerGR8",
				"width left image [pixel]":   "4",
				"height left image [pixel]":  "2",
				"image format right image":   "BayerGR8",
				"width right image [pixel]":  "4",
				"height right image [pixel]": "2",
			},
		},
	}
}

// fakeStore emulates the Clowder dataset, file and metadata endpoints.
type fakeStore struct {
	mu          sync.Mutex
	dataset     clowder.Dataset
	files       []clowder.File
	blobs       map[string][]byte
	metadata    []clowder.Metadata
	nextID      int
	uploads     []string
	mdDownloads int
	mdUploads   int
	mdRemovals  int
	uploadErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		dataset: clowder.Dataset{ID: testDataset, Name: testName},
		files: []clowder.File{
			{ID: "f-left", Filename: "a_left.bin", DateCreated: "Thu Apr 27 10:05:12 CDT 2017"},
			{ID: "f-right", Filename: "a_right.bin", DateCreated: "Thu Apr 27 10:05:40 CDT 2017"},
		},
		blobs: map[string][]byte{
			"f-left":  make([]byte, 8),
			"f-right": make([]byte, 8),
		},
		metadata: []clowder.Metadata{
			{Content: measurementContent(), Agent: &clowder.Agent{Type: "cat:user", Name: testHost + "/api/users/1"}},
		},
	}
}

func (s *fakeStore) authored(m clowder.Metadata, extractor string) bool {
	return m.Agent != nil && strings.HasSuffix(m.Agent.Name, extractor)
}

func (s *fakeStore) DownloadMetadata(ctx context.Context, datasetID, extractor string) ([]clowder.Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mdDownloads++
	var out []clowder.Metadata
	for _, m := range s.metadata {
		if extractor != "" && !s.authored(m, extractor) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *fakeStore) UploadMetadata(ctx context.Context, datasetID string, md clowder.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mdUploads++
	// Clowder reports the extractor id back as the agent name; round-trip
	// through JSON so content looks like what the API returns.
	if md.Agent != nil && md.Agent.Name == "" {
		agent := *md.Agent
		agent.Name = agent.ExtractorID
		md.Agent = &agent
	}
	data, err := json.Marshal(md)
	if err != nil {
		return err
	}
	var decoded clowder.Metadata
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	s.metadata = append(s.metadata, decoded)
	return nil
}

func (s *fakeStore) RemoveMetadata(ctx context.Context, datasetID, extractor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mdRemovals++
	kept := s.metadata[:0]
	for _, m := range s.metadata {
		if s.authored(m, extractor) {
			continue
		}
		kept = append(kept, m)
	}
	s.metadata = kept
	return nil
}

func (s *fakeStore) UploadToDataset(ctx context.Context, datasetID, path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	s.nextID++
	s.uploads = append(s.uploads, path)
	return fmt.Sprintf("file-%d", s.nextID), nil
}

func (s *fakeStore) GetDataset(ctx context.Context, datasetID string) (*clowder.Dataset, error) {
	ds := s.dataset
	return &ds, nil
}

func (s *fakeStore) ListFiles(ctx context.Context, datasetID string) ([]clowder.File, error) {
	return append([]clowder.File(nil), s.files...), nil
}

func (s *fakeStore) DownloadFile(ctx context.Context, fileID, dst string) error {
	blob, ok := s.blobs[fileID]
	if !ok {
		return fmt.Errorf("no blob %s", fileID)
	}
	return os.WriteFile(dst, blob, 0o644)
}

func (s *fakeStore) Host() string {
	return testHost
}

func (s *fakeStore) completionRecords() []clowder.Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []clowder.Metadata
	for _, m := range s.metadata {
		if s.authored(m, testExtractor) {
			out = append(out, m)
		}
	}
	return out
}

// fakeConverter uses the real metadata helpers and fake codecs.
type fakeConverter struct {
	Converter
	decodes    map[string]int
	geotiffErr error
}

func newFakeConverter() *fakeConverter {
	return &fakeConverter{Converter: NewConverter("gdal_translate"), decodes: map[string]int{}}
}

func (c *fakeConverter) Decode(path string, shape terra.Shape) (image.Image, error) {
	c.decodes[filepath.Base(path)]++
	return image.NewRGBA(image.Rect(0, 0, shape.Width, shape.Height)), nil
}

func (c *fakeConverter) WriteJPEG(img image.Image, path string) error {
	return os.WriteFile(path, []byte("jpeg"), 0o644)
}

func (c *fakeConverter) WriteGeoTIFF(ctx context.Context, img image.Image, bounds terra.Bounds, path string) error {
	if c.geotiffErr != nil {
		_ = os.WriteFile(path, []byte("partial"), 0o644)
		return c.geotiffErr
	}
	if !(bounds.LatMin < bounds.LatMax) {
		return fmt.Errorf("unordered bounds %+v", bounds)
	}
	return os.WriteFile(path, []byte("geotiff"), 0o644)
}

type fakeTelemetry struct {
	runs []influx.Run
}

func (f *fakeTelemetry) LogRun(ctx context.Context, run influx.Run) error {
	f.runs = append(f.runs, run)
	return nil
}

type fixture struct {
	t         *testing.T
	outputDir string
	scratch   string
	inputDir  string
	store     *fakeStore
	conv      *fakeConverter
	telemetry *fakeTelemetry
	logs      *observer.ObservedLogs
	res       *Resource
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		t:         t,
		outputDir: filepath.Join(root, "out"),
		scratch:   filepath.Join(root, "scratch"),
		inputDir:  filepath.Join(root, "in"),
		store:     newFakeStore(),
		conv:      newFakeConverter(),
		telemetry: &fakeTelemetry{},
	}
	if err := os.MkdirAll(f.inputDir, 0o755); err != nil {
		t.Fatalf("mkdir inputs: %v", err)
	}

	left := filepath.Join(f.inputDir, "a_left.bin")
	right := filepath.Join(f.inputDir, "a_right.bin")
	sidecar := filepath.Join(f.inputDir, testDataset+terra.MetadataSuffix)
	for _, p := range []string{left, right} {
		if err := os.WriteFile(p, make([]byte, 8), 0o644); err != nil {
			t.Fatalf("write input: %v", err)
		}
	}
	f.writeSidecar(sidecar, []map[string]any{
		{"content": map[string]any{"unrelated": true}},
		{"content": measurementContent()},
	})

	f.res = &Resource{
		ID:         testDataset,
		Name:       testName,
		Files:      append([]clowder.File(nil), f.store.files...),
		LocalPaths: []string{left, right, sidecar},
		Host:       testHost,
	}
	return f
}

func (f *fixture) writeSidecar(path string, docs []map[string]any) {
	f.t.Helper()
	data, err := json.Marshal(docs)
	if err != nil {
		f.t.Fatalf("marshal sidecar: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		f.t.Fatalf("write sidecar: %v", err)
	}
}

func (f *fixture) extractor(overwrite bool) *Extractor {
	core, logs := observer.New(zapcore.DebugLevel)
	f.logs = logs
	clock := time.Date(2017, 4, 27, 12, 0, 0, 0, time.UTC)
	return New(Params{
		Name:           testExtractor,
		OutputDir:      f.outputDir,
		ScratchDir:     f.scratch,
		ForceOverwrite: overwrite,
		Store:          f.store,
		Converter:      f.conv,
		Telemetry:      f.telemetry,
		Logger:         zap.New(core),
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	})
}

func (f *fixture) outputs() terra.OutputSet {
	return terra.Outputs(f.outputDir, testName)
}

func (f *fixture) touch(paths ...string) {
	f.t.Helper()
	for _, p := range paths {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			f.t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte("existing"), 0o644); err != nil {
			f.t.Fatalf("touch %s: %v", p, err)
		}
	}
}

func (f *fixture) addPriorRecord(ids ...string) {
	rec := newCompletionRecord()
	for i, id := range ids {
		rec.Add(fmt.Sprintf("/old/%d", i), id)
	}
	f.store.metadata = append(f.store.metadata, clowder.Metadata{
		Content: rec.Content(),
		Agent:   &clowder.Agent{Type: "cat:extractor", Name: testHost + "/api/extractors/" + testExtractor},
	})
}

func contentIDs(t *testing.T, md clowder.Metadata) []string {
	t.Helper()
	return recordFromMetadata(md).FilesCreated
}
