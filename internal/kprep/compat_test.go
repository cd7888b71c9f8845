package kprep

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// runnerFunc adapts a closure to commandRunner, exposing argv and cmd.Dir.
type runnerFunc func(argv []string, dir string) error

func (f runnerFunc) Run(cmd *exec.Cmd) error {
	return f(append([]string(nil), cmd.Args...), cmd.Dir)
}

func testResolver(t *testing.T, runner *fakeRunner, libPresent, helperPresent bool) *compatResolver {
	t.Helper()
	initConfig(&Config{Values: map[string]string{}})

	ldOut := "\tlibc.so.6 (libc6,AArch64) => /usr/lib/libc.so.6\n"
	if libPresent {
		ldOut += "\t" + CompatLib + " (libc6,AArch64) => /usr/lib/" + CompatLib + "\n"
	}

	return &compatResolver{
		user: runner,
		lookPath: func(name string) (string, error) {
			if helperPresent {
				return "/usr/bin/" + name, nil
			}
			return "", errors.New("not found")
		},
		ldCache: func() ([]byte, error) { return []byte(ldOut), nil },
		tmpDir:  t.TempDir(),
	}
}

func leftoverClones(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestCompatResolverNoopWhenLibPresent(t *testing.T) {
	runner := &fakeRunner{}
	r := testResolver(t, runner, true, false)

	if err := r.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if len(runner.calls) != 0 {
		t.Errorf("expected zero install actions, got %v", runner.calls)
	}
}

func TestCompatResolverUsesExistingHelper(t *testing.T) {
	runner := &fakeRunner{}
	r := testResolver(t, runner, false, true)

	if err := r.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	if len(runner.calls) != 1 {
		t.Fatalf("expected exactly one command, got %v", runner.calls)
	}
	argv := runner.calls[0]
	if argv[0] != HelperName || argv[len(argv)-1] != CompatPkg {
		t.Errorf("unexpected install argv %v", argv)
	}
}

func TestCompatResolverBootstrapsHelper(t *testing.T) {
	runner := &fakeRunner{}
	r := testResolver(t, runner, false, false)

	if err := r.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	if len(runner.calls) != 3 {
		t.Fatalf("expected clone, makepkg, install; got %v", runner.calls)
	}
	if runner.calls[0][0] != "git" || runner.calls[0][1] != "clone" {
		t.Errorf("first command should be git clone, got %v", runner.calls[0])
	}
	if runner.calls[1][0] != "makepkg" {
		t.Errorf("second command should be makepkg, got %v", runner.calls[1])
	}
	if runner.calls[2][0] != HelperName {
		t.Errorf("third command should be the helper install, got %v", runner.calls[2])
	}
	if left := leftoverClones(t, r.tmpDir); len(left) != 0 {
		t.Errorf("clone directory not cleaned up: %v", left)
	}
}

func TestCompatResolverCleansCloneOnBuildFailure(t *testing.T) {
	runner := &fakeRunner{failOn: []string{"makepkg"}}
	r := testResolver(t, runner, false, false)

	if err := r.Ensure(); err == nil {
		t.Fatal("expected makepkg failure to propagate")
	}
	if left := leftoverClones(t, r.tmpDir); len(left) != 0 {
		t.Errorf("clone directory must be removed on failure, found %v", left)
	}
}

func TestCompatResolverCleansCloneWhenCompatInstallFails(t *testing.T) {
	initConfig(&Config{Values: map[string]string{}})
	runner := &fakeRunner{failOn: []string{HelperName}}
	r := testResolver(t, runner, false, false)

	err := r.Ensure()
	if err == nil {
		t.Fatal("expected compat install failure to propagate")
	}
	if !strings.Contains(err.Error(), CompatPkg) {
		t.Errorf("error should name the compat package: %v", err)
	}
	if left := leftoverClones(t, r.tmpDir); len(left) != 0 {
		t.Errorf("clone directory must be removed, found %v", left)
	}
}

func TestCompatResolverMakepkgRunsInCloneDir(t *testing.T) {
	var buildDir string
	runner := &fakeRunner{}
	r := testResolver(t, runner, false, false)

	// Wrap the runner to capture cmd.Dir for makepkg before cleanup removes it.
	r.user = runnerFunc(func(argv []string, dir string) error {
		runner.calls = append(runner.calls, argv)
		if argv[0] == "makepkg" {
			buildDir = dir
		}
		return nil
	})

	if err := r.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if buildDir == "" {
		t.Fatal("makepkg never ran")
	}
	if filepath.Dir(buildDir) != r.tmpDir {
		t.Errorf("makepkg ran in %s, want a directory under %s", buildDir, r.tmpDir)
	}
}
