// Package envcfg snapshots the environment-variable knobs named in spec §6
// once at startup, via github.com/kelseyhightower/envconfig — no library
// package outside this one calls os.Getenv; only the cmd/ binaries read
// their own flag defaults from the environment (Design Notes, "Global
// mutable state").
package envcfg

import "github.com/kelseyhightower/envconfig"

// Snapshot holds the environment knobs, read once at kmscore.Open() time.
// kmscore.Open acts on DeviceBlacklist and ForceGLAllocation; no package
// reads the other fields.
type Snapshot struct {
	ForceLegacyAPI         bool   `envconfig:"FORCE_LEGACY_API" default:"false"`
	ForceLegacyCursor      bool   `envconfig:"FORCE_LEGACY_CURSOR" default:"false"`
	ForceGLAllocation      bool   `envconfig:"FORCE_GL_ALLOCATION" default:"false"`
	RenderModeSelfFBCount  int    `envconfig:"RENDER_MODE_ITSELF_FB_COUNT" default:"2"`
	RenderModePrimeFBCount int    `envconfig:"RENDER_MODE_PRIME_FB_COUNT" default:"2"`
	RenderModeDumbFBCount  int    `envconfig:"RENDER_MODE_DUMB_FB_COUNT" default:"2"`
	RenderModeCPUFBCount   int    `envconfig:"RENDER_MODE_CPU_FB_COUNT" default:"2"`
	EnableWritebackConns   bool   `envconfig:"ENABLE_WRITEBACK_CONNECTORS" default:"false"`
	DisableCustomScanout   bool   `envconfig:"DISABLE_CUSTOM_SCANOUT" default:"false"`
	DisableCursor          bool   `envconfig:"DISABLE_CURSOR" default:"false"`
	DeviceBlacklist        string `envconfig:"DEVICE_BLACKLIST" default:""`
}

// Load reads the snapshot from the process environment under the given
// prefix (conventionally "KMSCORE").
func Load(prefix string) (Snapshot, error) {
	var s Snapshot
	if err := envconfig.Process(prefix, &s); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// IsBlacklisted reports whether devicePath appears in DeviceBlacklist, a
// comma-separated list of DRM device node paths.
func (s Snapshot) IsBlacklisted(devicePath string) bool {
	for _, entry := range splitNonEmpty(s.DeviceBlacklist, ',') {
		if entry == devicePath {
			return true
		}
	}
	return false
}

func splitNonEmpty(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
