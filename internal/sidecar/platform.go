package sidecar

import (
	"fmt"
	"runtime"
)

// Environment variable names the sidecar reads at startup.
const (
	EnvPlatform = "TAURI_PLATFORM"
	EnvFamily   = "TAURI_FAMILY"
	EnvDebug    = "GODEBUG"
	EnvMode     = "GIN_MODE"
)

// Platform returns the platform identifier passed to the sidecar.
func Platform() string {
	if runtime.GOOS == "darwin" {
		return "macos"
	}
	return runtime.GOOS
}

// Family returns the OS family identifier passed to the sidecar.
func Family() string {
	if runtime.GOOS == "windows" {
		return "windows"
	}
	return "unix"
}

// TargetTriple returns the bundler-style target triple used as the sidecar
// file name suffix, e.g. "aarch64-apple-darwin".
func TargetTriple() string {
	return targetTriple(runtime.GOOS, runtime.GOARCH)
}

func targetTriple(goos, goarch string) string {
	arch := goarch
	switch goarch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	case "386":
		arch = "i686"
	case "arm":
		arch = "armv7"
	}

	switch goos {
	case "darwin":
		return arch + "-apple-darwin"
	case "windows":
		return arch + "-pc-windows-msvc"
	case "linux":
		if goarch == "arm" {
			return arch + "-unknown-linux-gnueabihf"
		}
		return arch + "-unknown-linux-gnu"
	default:
		return fmt.Sprintf("%s-unknown-%s", arch, goos)
	}
}

// exeSuffix is appended to executable names on Windows.
func exeSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}
