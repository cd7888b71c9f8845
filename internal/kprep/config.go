package kprep

import (
	"bufio"
	"os"
	"strings"
)

// Config struct
type Config struct {
	Values map[string]string
}

// Load /etc/kprep.conf and apply defaults
func loadConfig(path string) (*Config, error) {
	cfg := &Config{Values: make(map[string]string)}

	// Attempt to read the file
	file, err := os.Open(path)
	if err == nil {
		defer file.Close()
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.TrimSpace(parts[1])
			val = strings.Trim(val, `"'`)
			cfg.Values[key] = val
		}
		if err := scanner.Err(); err != nil {
			return cfg, err
		}
	}

	mergeEnvOverrides(cfg)
	return cfg, nil
}

// Merge KPREP_* env overrides
func mergeEnvOverrides(cfg *Config) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "KPREP_") {
			parts := strings.SplitN(env, "=", 2)
			if len(parts) == 2 {
				cfg.Values[parts[0]] = parts[1]
			}
		}
	}
}

func initConfig(cfg *Config) {
	WorkDir = cfg.Values["KPREP_WORKDIR"]
	if WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			wd = "."
		}
		WorkDir = wd
	}

	NDKVersion = cfg.Values["KPREP_NDK_VERSION"]
	if NDKVersion == "" {
		NDKVersion = "android-ndk-r25c"
	}

	DownloadBase = cfg.Values["KPREP_NDK_MIRROR"]
	if DownloadBase == "" {
		DownloadBase = "https://dl.google.com/android/repository"
	}

	HelperName = cfg.Values["KPREP_AUR_HELPER"]
	if HelperName == "" {
		HelperName = "yay"
	}

	HelperRepo = cfg.Values["KPREP_AUR_HELPER_REPO"]
	if HelperRepo == "" {
		HelperRepo = "https://aur.archlinux.org/" + HelperName + ".git"
	}

	CompatPkg = cfg.Values["KPREP_COMPAT_PKG"]
	if CompatPkg == "" {
		CompatPkg = "ncurses5-compat-libs"
	}

	CompatLib = cfg.Values["KPREP_COMPAT_LIB"]
	if CompatLib == "" {
		CompatLib = "libtinfo.so.5"
	}

	Debug = cfg.Values["KPREP_DEBUG"] == "1"
}
