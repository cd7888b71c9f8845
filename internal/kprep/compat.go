package kprep

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
)

// compatResolver makes sure the legacy terminfo library that old kernel
// build scripts link against is available. On Arch it only exists in the
// AUR, so a missing library may first require bootstrapping an AUR helper
// from its build recipe.
type compatResolver struct {
	user     commandRunner                 // clone, makepkg, helper install (all refuse root)
	lookPath func(string) (string, error)  // PATH probe for the helper binary
	ldCache  func() ([]byte, error)        // `ldconfig -p` output
	tmpDir   string                        // parent for the throwaway clone dir
}

func newCompatResolver(user commandRunner) *compatResolver {
	return &compatResolver{
		user:     user,
		lookPath: exec.LookPath,
		ldCache: func() ([]byte, error) {
			return exec.Command("ldconfig", "-p").Output()
		},
		tmpDir: os.TempDir(),
	}
}

func (r *compatResolver) libPresent() bool {
	out, err := r.ldCache()
	if err != nil {
		// Treat an unreadable linker cache the same as "library absent".
		debugf("ldconfig -p failed: %v\n", err)
		return false
	}
	return bytes.Contains(out, []byte(CompatLib))
}

func (r *compatResolver) helperPresent() bool {
	_, err := r.lookPath(HelperName)
	return err == nil
}

// Ensure is a no-op when the compatibility library is already in the linker
// cache. Otherwise it bootstraps the AUR helper if needed, then installs the
// compatibility package through it. Any step failing is fatal; there is no
// rollback of partially completed installs.
func (r *compatResolver) Ensure() error {
	if r.libPresent() {
		colArrow.Print("-> ")
		colSuccess.Printf("%s already present\n", CompatLib)
		return nil
	}

	if !r.helperPresent() {
		colArrow.Print("-> ")
		colSuccess.Printf("%s not found, bootstrapping from AUR\n", HelperName)
		if err := r.bootstrapHelper(); err != nil {
			return fmt.Errorf("failed to bootstrap %s: %w", HelperName, err)
		}
	}

	colArrow.Print("-> ")
	colSuccess.Printf("Installing %s via %s\n", CompatPkg, HelperName)
	cmd := exec.Command(HelperName, "-S", "--noconfirm", CompatPkg)
	if err := r.user.Run(cmd); err != nil {
		return fmt.Errorf("%s failed to install %s: %w", HelperName, CompatPkg, err)
	}
	return nil
}

// bootstrapHelper clones the helper's build recipe, builds and installs it
// with makepkg, and removes the clone directory on every exit path.
func (r *compatResolver) bootstrapHelper() error {
	cloneDir, err := os.MkdirTemp(r.tmpDir, "kprep-"+HelperName+"-")
	if err != nil {
		return fmt.Errorf("failed to create clone directory: %w", err)
	}
	defer os.RemoveAll(cloneDir)

	clone := exec.Command("git", "clone", HelperRepo, cloneDir)
	if err := r.user.Run(clone); err != nil {
		return fmt.Errorf("git clone %s failed: %w", HelperRepo, err)
	}

	// makepkg -si pulls build deps and installs the result via its own sudo,
	// so it needs the TTY.
	build := exec.Command("makepkg", "-si", "--noconfirm")
	build.Dir = cloneDir
	if err := r.user.Run(build); err != nil {
		return fmt.Errorf("makepkg failed in %s: %w", cloneDir, err)
	}
	return nil
}
