package kprep

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"lukechampine.com/blake3"
)

func TestHashFileMatchesBlake3(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.zip")
	content := []byte("toolchain archive bytes")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := hashFile(path)
	if err != nil {
		t.Fatalf("hashFile: %v", err)
	}

	sum := blake3.Sum256(content)
	if want := fmt.Sprintf("%x", sum); got != want {
		t.Errorf("hashFile = %s, want %s", got, want)
	}
}

func TestHashFileMissing(t *testing.T) {
	if _, err := hashFile(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("hashing a missing file must error")
	}
}

func TestInstallMarkerRoundTrip(t *testing.T) {
	dir := t.TempDir()

	if _, ok := readInstallMarker(dir); ok {
		t.Fatal("marker reported present in empty dir")
	}

	if err := writeInstallMarker(dir, "cafebabe"); err != nil {
		t.Fatalf("writeInstallMarker: %v", err)
	}

	hash, ok := readInstallMarker(dir)
	if !ok {
		t.Fatal("marker not found after write")
	}
	if hash != "cafebabe" {
		t.Errorf("marker hash = %q, want cafebabe", hash)
	}
}
