package kprep

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Fixed architecture constants for arm64 Android kernel builds.
const (
	targetArch   = "arm64"
	subArch      = "arm64"
	clangTriple  = "aarch64-linux-gnu-"
	crossCompile = "aarch64-linux-gnu-"
	prebuiltBin  = "toolchains/llvm/prebuilt/linux-x86_64/bin"
)

// BuildIdentity is the user/host/timestamp embedded into kernel build
// metadata. The timestamp is captured once at process start and never
// recomputed.
type BuildIdentity struct {
	User      string
	Host      string
	Timestamp string
}

type envVar struct {
	Name  string
	Value string
}

// buildEnv computes the ordered kernel-build variable set. It is a pure
// function of the toolchain descriptor, the build identity and the caller's
// current PATH.
func buildEnv(tc ToolchainDescriptor, id BuildIdentity, currentPath string) []envVar {
	ndkHome, err := filepath.Abs(tc.Dir)
	if err != nil {
		ndkHome = tc.Dir
	}
	binDir := filepath.Join(ndkHome, prebuiltBin)

	return []envVar{
		{"NDK_HOME", ndkHome},
		{"PATH", binDir + ":" + currentPath},
		{"ARCH", targetArch},
		{"SUBARCH", subArch},
		{"CLANG_TRIPLE", clangTriple},
		{"CROSS_COMPILE", crossCompile},
		{"KBUILD_BUILD_USER", id.User},
		{"KBUILD_BUILD_HOST", id.Host},
		{"KBUILD_BUILD_TIMESTAMP", id.Timestamp},
	}
}

// applyEnv exports every entry into the current process. Later stages and
// the final summary read the environment, not the original inputs, so this
// runs before any consumer. The parent shell never sees these values;
// permanence needs the persisted block plus a shell reload.
func applyEnv(vars []envVar) error {
	for _, v := range vars {
		if err := os.Setenv(v.Name, v.Value); err != nil {
			return fmt.Errorf("failed to set %s: %w", v.Name, err)
		}
	}
	return nil
}

// exportBlock renders the fixed-format persistence block: a blank line, a
// comment line, then one double-quoted export per variable in order. PATH is
// written in terms of $NDK_HOME and $PATH so it expands at source time.
func exportBlock(vars []envVar) string {
	var b strings.Builder
	b.WriteString("\n# Android kernel build environment (added by kprep)\n")
	for _, v := range vars {
		value := v.Value
		if v.Name == "PATH" {
			value = "$NDK_HOME/" + prebuiltBin + ":$PATH"
		}
		fmt.Fprintf(&b, "export %s=%q\n", v.Name, value)
	}
	return b.String()
}

// persistEnv appends the export block to the shell start-up file. Append
// creates the file if missing. A write failure is fatal to the workflow.
func persistEnv(vars []envVar, target string) error {
	f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", target, err)
	}
	defer f.Close()

	if _, err := f.WriteString(exportBlock(vars)); err != nil {
		return fmt.Errorf("failed to append to %s: %w", target, err)
	}
	return nil
}

// shellStartupFile picks the persistence target from the invoking shell's
// name, defaulting to ~/.bashrc.
func shellStartupFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	switch filepath.Base(os.Getenv("SHELL")) {
	case "zsh":
		return filepath.Join(home, ".zshrc")
	default:
		return filepath.Join(home, ".bashrc")
	}
}
