// Package native loads VST3 bundles through the platform dynamic
// linker and adapts their COM-style class factories to the host's
// interfaces. Everything cgo lives here; the rest of the host is pure
// Go against the vst3 package.
package native

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

var errInvalidBundle = errors.New("native: invalid bundle")

// binaryPath resolves the loadable binary inside a bundle directory.
// Bundles keep their binary under a platform subdirectory of Contents;
// a bare file with a .vst3 extension is accepted as the binary itself,
// which single-file plugins still use.
func binaryPath(bundlePath string) (string, error) {
	info, err := os.Stat(bundlePath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errInvalidBundle, err)
	}
	if !info.IsDir() {
		return bundlePath, nil
	}
	return binaryPathIn(bundlePath, runtime.GOOS, runtime.GOARCH)
}

func binaryPathIn(bundlePath, goos, goarch string) (string, error) {
	base := strings.TrimSuffix(filepath.Base(bundlePath), filepath.Ext(bundlePath))
	var candidates []string
	switch goos {
	case "darwin":
		candidates = []string{filepath.Join(bundlePath, "Contents", "MacOS", base)}
	case "windows":
		candidates = []string{
			filepath.Join(bundlePath, "Contents", archDir(goarch)+"-win", base+".vst3"),
		}
	default:
		candidates = []string{
			filepath.Join(bundlePath, "Contents", archDir(goarch)+"-linux", base+".so"),
		}
	}
	for _, c := range candidates {
		if st, err := os.Stat(c); err == nil && !st.IsDir() {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: no binary for %s/%s under %s", errInvalidBundle, goos, goarch, bundlePath)
}

func archDir(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "386":
		return "i386"
	case "arm64":
		return "aarch64"
	default:
		return goarch
	}
}
