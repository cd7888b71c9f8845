package kprep

import (
	"fmt"
	"os"
	"path/filepath"
)

// ToolchainDescriptor names everything knowable about one toolchain release.
// All fields derive from the single version constant.
type ToolchainDescriptor struct {
	Version string // e.g. android-ndk-r25c
	Archive string // archive filename
	URL     string // full download URL
	Dir     string // install directory under the working directory
}

func newToolchainDescriptor(workDir string) ToolchainDescriptor {
	archive := NDKVersion + "-linux.zip"
	return ToolchainDescriptor{
		Version: NDKVersion,
		Archive: archive,
		URL:     DownloadBase + "/" + archive,
		Dir:     filepath.Join(workDir, NDKVersion),
	}
}

// toolchainFetcher installs a toolchain release idempotently. The download
// and extraction steps are injectable so the skip/reinstall logic is
// testable without network access.
type toolchainFetcher struct {
	download downloadFunc
	extract  func(src, dest string) error
	workDir  string
}

func newToolchainFetcher(workDir string) *toolchainFetcher {
	return &toolchainFetcher{
		download: downloadFile,
		extract:  extractArchive,
		workDir:  workDir,
	}
}

// Ensure makes tc.Dir a complete toolchain installation. A valid install
// marker means a previous run finished and nothing is downloaded. A
// directory without the marker is a partial prior extraction: it is removed
// and the toolchain fetched again.
func (tf *toolchainFetcher) Ensure(tc ToolchainDescriptor) error {
	if _, ok := readInstallMarker(tc.Dir); ok {
		colArrow.Print("-> ")
		colSuccess.Printf("Toolchain %s already installed at %s\n", tc.Version, tc.Dir)
		return nil
	}

	if fi, err := os.Stat(tc.Dir); err == nil && fi.IsDir() {
		cPrintf(colWarn, "Removing incomplete toolchain directory %s\n", tc.Dir)
		if err := os.RemoveAll(tc.Dir); err != nil {
			return fmt.Errorf("failed to remove incomplete toolchain dir %s: %w", tc.Dir, err)
		}
	}

	archivePath := filepath.Join(tf.workDir, tc.Archive)

	colArrow.Print("-> ")
	colSuccess.Printf("Fetching toolchain: %s\n", tc.Archive)
	if err := tf.download(tc.URL, archivePath); err != nil {
		return fmt.Errorf("download of %s failed (a partial file may remain at %s): %w",
			tc.URL, archivePath, err)
	}

	archiveHash, err := hashFile(archivePath)
	if err != nil {
		return err
	}

	colArrow.Print("-> ")
	colSuccess.Printf("Extracting %s\n", tc.Archive)

	// Interrupting extraction leaves a partial tree; hold the critical flag
	// so a single Ctrl+C does not tear it down mid-write.
	isCriticalAtomic.Store(1)
	defer isCriticalAtomic.Store(0)

	if err := tf.extract(archivePath, tf.workDir); err != nil {
		return fmt.Errorf("extraction of %s failed (a partial tree may remain under %s): %w",
			archivePath, tc.Dir, err)
	}

	if err := writeInstallMarker(tc.Dir, archiveHash); err != nil {
		return err
	}

	if err := os.Remove(archivePath); err != nil {
		return fmt.Errorf("failed to remove archive %s: %w", archivePath, err)
	}
	return nil
}
