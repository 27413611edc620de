// Package dispatch probes, once per process, which backend family
// (vector/accelerated or the scalar reference) the running CPU supports
// for the hot operations (DCT, color transform, MED, RCT, squeeze,
// block-variance, quantize). The result is a tag reported by Selected and
// logged by the encoder; the hot operations are not routed through it
// (internal/blockdct picks its DCT path by build tag). GPU backends are
// not probed here.
package dispatch

import (
	"runtime"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/cpu"
)

// Backend names the implementation family chosen for hot operations on
// this process.
type Backend int

const (
	BackendScalar Backend = iota
	BackendSSE2
	BackendAVX2
	BackendNEON
	BackendAccelerate
)

func (b Backend) String() string {
	switch b {
	case BackendScalar:
		return "scalar"
	case BackendSSE2:
		return "sse2"
	case BackendAVX2:
		return "avx2"
	case BackendNEON:
		return "neon"
	case BackendAccelerate:
		return "accelerate"
	default:
		return "unknown"
	}
}

// selected is computed once at package init and exposed via Selected.
var selected = probeAndLog()

func probeAndLog() Backend {
	b := probe()
	log.Debug().Str("backend", b.String()).Str("arch", runtime.GOARCH).Msg("dispatch: hardware backend selected")
	return b
}

// Selected returns the backend chosen for this process, in priority order
// Accelerate-style vector library > NEON > AVX2 > SSE2 > scalar.
func Selected() Backend {
	return selected
}

func probe() Backend {
	switch runtime.GOOS {
	case "darwin":
		if runtime.GOARCH == "arm64" {
			// Apple Silicon always exposes NEON via the Accelerate
			// framework's vectorized paths; treat it as the top tier.
			return BackendAccelerate
		}
	}
	if runtime.GOARCH == "arm64" {
		return BackendNEON
	}
	if runtime.GOARCH == "amd64" {
		if cpu.X86.HasAVX2 {
			return BackendAVX2
		}
		if cpu.X86.HasSSE2 {
			return BackendSSE2
		}
	}
	return BackendScalar
}

// UsesSIMD reports whether the selected backend is anything but the
// scalar reference.
func UsesSIMD() bool {
	return selected != BackendScalar
}
