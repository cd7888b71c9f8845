package kprep

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/gookit/color"
)

// GLOBAL STATE
// We use a value of 1 for critical and 0 for non-critical/default.
var isCriticalAtomic atomic.Int32

// Global variables
var (
	WorkDir      string
	NDKVersion   string
	DownloadBase string
	HelperName   string
	HelperRepo   string
	CompatPkg    string
	CompatLib    string
	Debug        bool
	ConfigFile   = "/etc/kprep.conf"
	version      = "dev" // default version; overridden at build time
	arch         = runtime.GOARCH
	buildDate    = "unknown" // overridden at build time
	// Global executors (declared, to be assigned in Main)
	UserExec *Executor
	RootExec *Executor
)

// color helpers
var (
	colInfo    = color.Info // style provided by gookit/color
	colWarn    = color.Warn
	colError   = color.Error
	colSuccess = color.HEX("#1976D2")
	colArrow   = color.HEX("#FFEB3B")
	colNote    = color.Tag("notice")
)

// colorPrinter is the surface shared by *color.Theme and *color.Style.
type colorPrinter interface {
	Printf(format string, a ...any)
	Println(a ...any)
}

// cPrintf prints with the given style, or plain when p is nil.
func cPrintf(p colorPrinter, format string, a ...any) {
	if p == nil {
		fmt.Printf(format, a...)
		return
	}
	p.Printf(format, a...)
}

// cPrintln prints a colored line, or plain when p is nil.
func cPrintln(p colorPrinter, a ...any) {
	if p == nil {
		fmt.Println(a...)
		return
	}
	p.Println(a...)
}

func debugf(format string, args ...any) {
	if Debug {
		fmt.Printf(format, args...)
	}
}
