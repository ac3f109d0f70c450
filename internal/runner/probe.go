package runner

import (
	"errors"
	"runtime"
	"sync"
)

// ErrUnavailable is returned by For when a backend cannot run on this
// platform. It means skip, not failure.
var ErrUnavailable = errors.New("backend unavailable on this platform")

var probe = sync.OnceValue(func() map[Kind]bool {
	return map[Kind]bool{
		WazeroCompiler:    wazeroCompilerSupported(),
		Wasmer:            wasmerAvailable(),
		WazeroInterpreter: true,
	}
})

func wazeroCompilerSupported() bool {
	switch runtime.GOARCH {
	case "amd64", "arm64":
	default:
		return false
	}
	switch runtime.GOOS {
	case "linux", "darwin", "windows", "freebsd":
		return true
	}
	return false
}

// Available reports whether kind can run on this platform.
func Available(kind Kind) bool {
	return probe()[kind]
}

// PlatformExcluded returns the kinds unavailable on this platform, in
// priority order.
func PlatformExcluded() []Kind {
	var out []Kind
	for _, k := range Kinds() {
		if !Available(k) {
			out = append(out, k)
		}
	}
	return out
}
