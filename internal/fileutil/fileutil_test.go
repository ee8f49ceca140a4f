package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMoveReplacesDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tmp.tif")
	dst := filepath.Join(dir, "out", "final.tif")
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(src, []byte("new"), 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}
	if err := os.WriteFile(dst, []byte("old"), 0o644); err != nil {
		t.Fatalf("write dst: %v", err)
	}

	if err := Move(src, dst); err != nil {
		t.Fatalf("Move returned error: %v", err)
	}
	if IsFile(src) {
		t.Fatal("expected source to be gone")
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "new" {
		t.Fatalf("unexpected destination content %q (%v)", data, err)
	}
}

func TestMoveMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := Move(filepath.Join(dir, "absent"), filepath.Join(dir, "dst")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestIsFileAndSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	if IsFile(path) {
		t.Fatal("missing path reported as file")
	}
	if IsFile(dir) {
		t.Fatal("directory reported as file")
	}
	if err := os.WriteFile(path, []byte("12345"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !IsFile(path) {
		t.Fatal("expected regular file")
	}
	size, err := Size(path)
	if err != nil || size != 5 {
		t.Fatalf("size = %d (%v)", size, err)
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a")
	dst := filepath.Join(dir, "b")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile returned error: %v", err)
	}
	data, _ := os.ReadFile(dst)
	if string(data) != "payload" {
		t.Fatalf("dst = %q", data)
	}
}

func TestCopyFileTruncatesDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.tif")
	dst := filepath.Join(dir, "dst.tif")
	if err := os.WriteFile(src, []byte("pixels"), 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}
	if err := os.WriteFile(dst, []byte("stale contents"), 0o644); err != nil {
		t.Fatalf("write dst: %v", err)
	}

	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile returned error: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "pixels" {
		t.Fatalf("unexpected destination content %q (%v)", data, err)
	}
	if !IsFile(src) {
		t.Fatal("CopyFile removed the source")
	}
}

func TestCopyFileMissingDestinationDir(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.tif")
	if err := os.WriteFile(src, []byte("pixels"), 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}
	if err := CopyFile(src, filepath.Join(dir, "missing", "dst.tif")); err == nil {
		t.Fatal("expected error for missing destination directory")
	}
}
