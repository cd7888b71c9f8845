package kprep

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/pgzip"
)

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestUnzipGoExtractsTree(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "ndk.zip")
	writeZip(t, src, map[string]string{
		"android-ndk-r25c/source.properties":                 "Pkg.Revision = 25.2.9519653\n",
		"android-ndk-r25c/toolchains/llvm/prebuilt/bin/clang": "#!/bin/false\n",
	})

	dest := filepath.Join(dir, "out")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := unzipGo(src, dest); err != nil {
		t.Fatalf("unzipGo: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dest, "android-ndk-r25c", "source.properties"))
	if err != nil {
		t.Fatalf("extracted file missing: %v", err)
	}
	if string(data) != "Pkg.Revision = 25.2.9519653\n" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestUnzipGoRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "evil.zip")
	writeZip(t, src, map[string]string{"../evil.txt": "owned"})

	dest := filepath.Join(dir, "out")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := unzipGo(src, dest); err == nil {
		t.Fatal("zip-slip entry must be rejected")
	}
	if _, err := os.Stat(filepath.Join(dir, "evil.txt")); !os.IsNotExist(err) {
		t.Error("traversal target must not be written")
	}
}

func writeTarGz(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	gz := pgzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		hdr := &tar.Header{
			Name:    name,
			Mode:    0o644,
			Size:    int64(len(content)),
			ModTime: time.Now(),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestExtractArchiveTarGz(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "toolchain.tar.gz")
	writeTarGz(t, src, map[string]string{
		"toolchain/bin/cc": "binary",
	})

	dest := filepath.Join(dir, "out")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := extractArchive(src, dest); err != nil {
		t.Fatalf("extractArchive: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dest, "toolchain", "bin", "cc"))
	if err != nil {
		t.Fatalf("extracted file missing: %v", err)
	}
	if string(data) != "binary" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestExtractTarUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "toolchain.rar")
	if err := os.WriteFile(src, []byte("not an archive"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := extractTar(src, dir); err == nil {
		t.Fatal("unsupported archive format must error")
	}
}
