package kprep

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
)

// printHelp prints the commands table
func printHelp() {
	colSuccess.Println("Usage: kprep [command]")
	colSuccess.Println("Run with no command to provision the build environment")
	fmt.Println()
	color.Info.Println("Available Commands:")

	type cmdInfo struct {
		Cmd  string
		Desc string
	}
	cmds := []cmdInfo{
		{"(none)", "Run the full provisioning workflow"},
		{"check", "Audit required packages without installing"},
		{"env", "Print the environment block a full run would export"},
		{"version, --version", "Version information"},
		{"help", "Show this help"},
	}

	maxLen := 0
	for _, c := range cmds {
		if len(c.Cmd) > maxLen {
			maxLen = len(c.Cmd)
		}
	}
	columnWidth := maxLen + 4

	for _, c := range cmds {
		fmt.Print("  ")
		color.Bold.Print(c.Cmd)
		pad := columnWidth - len(c.Cmd)
		if pad < 1 {
			pad = 1
		}
		fmt.Print(strings.Repeat(" ", pad))
		color.Info.Println(c.Desc)
	}
	fmt.Println()
}

// Main is the CLI entrypoint for kprep.
func Main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		for {
			select {
			case sig := <-sigs:
				if isCriticalAtomic.Load() == 1 {
					// --- CRITICAL PHASE: block 1st signal, force exit on 2nd ---
					colArrow.Print("\n-> ")
					colError.Printf("Critical operation in progress (install/extract). Press Ctrl+C AGAIN to force exit NOW.\n")
					select {
					case <-sigs:
						colArrow.Print("\n-> ")
						colError.Printf("Forced immediate exit.")
						os.Exit(130)
					case <-time.After(5 * time.Second):
						continue
					case <-ctx.Done():
						return
					}
				} else {
					// --- NON-CRITICAL PHASE: graceful cancellation ---
					colArrow.Print("\n-> ")
					color.Danger.Printf("Received %v. Cancelling process gracefully\n", sig)
					cancel()
					time.Sleep(100 * time.Millisecond)
					select {
					case <-sigs:
						colArrow.Print("\n-> ")
						color.Danger.Printf("Second interrupt received. Forcing immediate exit.")
						os.Exit(130)
					case <-time.After(2 * time.Second):
						colArrow.Print("\n-> ")
						color.Danger.Printf("Graceful shutdown timeout. Exiting.")
						os.Exit(0)
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if ctx.Err() != nil {
		return
	}

	cfg, err := loadConfig(ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not read %s: %v\n", ConfigFile, err)
	}
	initConfig(cfg)

	UserExec = &Executor{Context: ctx, ShouldRunAsRoot: false}
	RootExec = &Executor{Context: ctx, ShouldRunAsRoot: true}

	command := ""
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "":
		if err := runProvision(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			// Propagate the failing tool's exit status when we have one.
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
				os.Exit(exitErr.ExitCode())
			}
			os.Exit(1)
		}
	case "check":
		pm := &pacman{user: UserExec, root: RootExec}
		present, missing := auditPackages(pm, requiredPackages)
		printAuditReport(present, missing)
	case "env":
		tc := newToolchainDescriptor(WorkDir)
		id := BuildIdentity{
			User:      os.Getenv("USER"),
			Host:      hostName(),
			Timestamp: kbuildTimestamp(time.Now()),
		}
		fmt.Print(exportBlock(buildEnv(tc, id, os.Getenv("PATH"))))
	case "version", "--version":
		colSuccess.Printf("kprep %s (%s) built %s\n", version, arch, buildDate)
	case "help", "-h", "--help":
		printHelp()
	default:
		fmt.Println("Unknown command:", command)
		printHelp()
		os.Exit(1)
	}
}

func hostName() string {
	h, err := os.Hostname()
	if err != nil {
		return ""
	}
	return h
}

// kbuildTimestamp renders the timestamp the way `date` does, which is what
// kernel build metadata conventionally carries.
func kbuildTimestamp(t time.Time) string {
	return t.Format("Mon Jan 2 15:04:05 MST 2006")
}

func printAuditReport(present, missing []string) {
	colArrow.Print("-> ")
	colSuccess.Printf("Package audit: %d present, %d missing\n", len(present), len(missing))
	for _, name := range present {
		cPrintf(colInfo, "   [ok]      %s\n", name)
	}
	for _, name := range missing {
		cPrintf(colWarn, "   [missing] %s\n", name)
	}
}

// runProvision executes the stages in fixed order: identity, package audit
// and install, compatibility library, toolchain, environment export.
func runProvision(ctx context.Context) error {
	// Captured once; reused everywhere the timestamp is referenced.
	startedAt := time.Now()

	colArrow.Print("-> ")
	colSuccess.Println("Preparing Android kernel build environment")

	// Stage 1: build identity
	id := BuildIdentity{
		User:      promptLine(colNote, "Build user"),
		Host:      promptLine(colNote, "Build host"),
		Timestamp: kbuildTimestamp(startedAt),
	}

	// Stage 2+3: package audit and install
	pm := &pacman{user: UserExec, root: RootExec}
	present, missing := auditPackages(pm, requiredPackages)
	printAuditReport(present, missing)
	if err := installMissing(pm, missing); err != nil {
		return fmt.Errorf("package installation failed: %w", err)
	}

	// Stage 4: compatibility library
	helperExec := &Executor{Context: ctx, ShouldRunAsRoot: false, Interactive: true}
	if err := newCompatResolver(helperExec).Ensure(); err != nil {
		return err
	}

	// Stage 5: toolchain
	tc := newToolchainDescriptor(WorkDir)
	if err := newToolchainFetcher(WorkDir).Ensure(tc); err != nil {
		return err
	}

	// Stage 6: environment export
	vars := buildEnv(tc, id, os.Getenv("PATH"))
	if err := applyEnv(vars); err != nil {
		return err
	}

	fmt.Println()
	colArrow.Print("-> ")
	colSuccess.Println("Exported environment:")
	for _, v := range vars {
		if v.Name == "PATH" {
			cPrintf(colInfo, "   %s=%s...\n", v.Name, strings.SplitN(os.Getenv("PATH"), ":", 2)[0])
			continue
		}
		cPrintf(colInfo, "   %s=%s\n", v.Name, os.Getenv(v.Name))
	}

	target := shellStartupFile()
	if askForConfirmation(colNote, "Append these exports to %s?", target) {
		if err := persistEnv(vars, target); err != nil {
			return err
		}
		colArrow.Print("-> ")
		colSuccess.Printf("Wrote exports to %s. Run 'source %s' or open a new shell to pick them up.\n", target, target)
	} else {
		cPrintln(colNote, "Skipping persistence. The variables above only apply to processes started from this run.")
	}

	colArrow.Print("-> ")
	colSuccess.Println("Environment ready. You can now run your kernel make command.")
	return nil
}
