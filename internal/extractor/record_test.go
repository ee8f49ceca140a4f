package extractor

import (
	"reflect"
	"testing"

	"github.com/terraref/bin2tif/pkg/clowder"
)

func TestCompletionRecordFold(t *testing.T) {
	rec := newCompletionRecord()
	rec.Add("/out/a_left.jpg", "new-1")
	rec.Add("/out/a_left.tif", "old-2")

	rec.Fold(CompletionRecord{
		FilesCreated: []string{"old-1", "old-2"},
		Artifacts: map[string]string{
			"/out/a_left.jpg":  "old-1",
			"/out/a_right.jpg": "old-2",
		},
	})

	if want := []string{"old-1", "old-2", "new-1"}; !reflect.DeepEqual(rec.FilesCreated, want) {
		t.Fatalf("FilesCreated = %v, want %v", rec.FilesCreated, want)
	}
	want := map[string]string{
		"/out/a_left.jpg":  "new-1",
		"/out/a_left.tif":  "old-2",
		"/out/a_right.jpg": "old-2",
	}
	if !reflect.DeepEqual(rec.Artifacts, want) {
		t.Fatalf("Artifacts = %v, want %v", rec.Artifacts, want)
	}
}

func TestCompletionRecordAddDedups(t *testing.T) {
	rec := newCompletionRecord()
	rec.Add("/a", "1")
	rec.Add("/b", "1")
	if len(rec.FilesCreated) != 1 {
		t.Fatalf("FilesCreated = %v", rec.FilesCreated)
	}
}

func TestCompletionRecordContentEmpty(t *testing.T) {
	content := newCompletionRecord().Content()
	files, ok := content[filesCreatedKey].([]string)
	if !ok || files == nil || len(files) != 0 {
		t.Fatalf("files_created = %#v, want empty list", content[filesCreatedKey])
	}
}

func TestRecordFromMetadata(t *testing.T) {
	cases := []struct {
		name      string
		content   map[string]any
		wantIDs   []string
		wantPaths int
	}{
		{name: "nil content"},
		{
			name:    "legacy ids only",
			content: map[string]any{filesCreatedKey: []any{"a", "", 7, "b"}},
			wantIDs: []string{"a", "b"},
		},
		{
			name: "with artifacts",
			content: map[string]any{
				filesCreatedKey: []string{"a"},
				artifactsKey:    map[string]any{"/out/x.tif": "a", "/out/y.tif": 3},
			},
			wantIDs:   []string{"a"},
			wantPaths: 1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := recordFromMetadata(clowder.Metadata{Content: tc.content})
			if !reflect.DeepEqual(rec.FilesCreated, tc.wantIDs) {
				t.Fatalf("FilesCreated = %v, want %v", rec.FilesCreated, tc.wantIDs)
			}
			if len(rec.Artifacts) != tc.wantPaths {
				t.Fatalf("Artifacts = %v, want %d paths", rec.Artifacts, tc.wantPaths)
			}
		})
	}
}
