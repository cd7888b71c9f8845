package kprep

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"lukechampine.com/blake3"
)

// markerName is the completeness marker written inside an installed
// toolchain directory. It records the BLAKE3 hash of the archive that was
// unpacked; a directory without it is a partial prior run.
const markerName = ".kprep-ok"

func hashFile(path string) (string, error) {
	// Try system b3sum first
	if _, err := exec.LookPath("b3sum"); err == nil {
		cmd := exec.Command("b3sum", "--no-names", path)
		var out bytes.Buffer
		cmd.Stdout = &out
		if err := cmd.Run(); err == nil {
			if sum := strings.TrimSpace(out.String()); sum != "" {
				return sum, nil
			}
		}
	}

	// Fallback: internal Go BLAKE3 (32-byte output, no key)
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for hashing: %w", path, err)
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func writeInstallMarker(dir, archiveHash string) error {
	path := filepath.Join(dir, markerName)
	if err := os.WriteFile(path, []byte(archiveHash+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write install marker %s: %w", path, err)
	}
	return nil
}

// readInstallMarker returns the recorded archive hash and whether the marker
// exists.
func readInstallMarker(dir string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(dir, markerName))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}
