package kprep

import (
	"io"
	"os/exec"
)

// requiredPackages is the fixed set of pacman packages an Android kernel
// build needs. Order is preserved through the audit so the report and the
// batch install stay readable.
var requiredPackages = []string{
	"base-devel",
	"bc",
	"bison",
	"ccache",
	"cpio",
	"flex",
	"gcc",
	"git",
	"libelf",
	"lz4",
	"openssl",
	"pahole",
	"perl",
	"python",
	"rsync",
	"tar",
	"unzip",
	"wget",
	"zlib",
}

// PackageQuery reports whether a package is installed according to the local
// package database.
type PackageQuery interface {
	Installed(name string) bool
}

// PackageInstaller installs a batch of packages in one invocation.
type PackageInstaller interface {
	Install(names []string) error
}

// pacman queries the local sync database and installs through the root
// executor. Queries need no privileges.
type pacman struct {
	user commandRunner
	root commandRunner
}

func (p *pacman) Installed(name string) bool {
	cmd := exec.Command("pacman", "-Qi", name)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	// Any query failure counts as "not installed"; --needed at install time
	// makes a false negative harmless.
	return p.user.Run(cmd) == nil
}

func (p *pacman) Install(names []string) error {
	args := append([]string{"-S", "--needed", "--noconfirm"}, names...)
	cmd := exec.Command("pacman", args...)
	return p.root.Run(cmd)
}

// auditPackages partitions required into present and missing, preserving the
// original order and skipping duplicate entries. No side effects.
func auditPackages(q PackageQuery, required []string) (present, missing []string) {
	seen := make(map[string]bool, len(required))
	for _, name := range required {
		if seen[name] {
			continue
		}
		seen[name] = true
		if q.Installed(name) {
			present = append(present, name)
		} else {
			missing = append(missing, name)
		}
	}
	return present, missing
}

// installMissing runs the batch install for the missing set, or reports that
// there is nothing to do. Installer failure is fatal to the workflow.
func installMissing(inst PackageInstaller, missing []string) error {
	if len(missing) == 0 {
		colArrow.Print("-> ")
		colSuccess.Println("All required packages already installed, nothing to do")
		return nil
	}

	colArrow.Print("-> ")
	colSuccess.Printf("Installing %d missing package(s)\n", len(missing))
	for _, name := range missing {
		cPrintf(colNote, "   %s\n", name)
	}

	// Package installation must not be torn down half-way by Ctrl+C.
	isCriticalAtomic.Store(1)
	defer isCriticalAtomic.Store(0)

	return inst.Install(missing)
}
