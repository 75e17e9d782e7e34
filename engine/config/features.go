package config

import (
	"fmt"
	"sort"
	"strings"
)

// Shading selects the opaque shading technique.
type Shading string

const (
	// ShadingForward shades every draw in a single pass into the color target.
	ShadingForward Shading = "forward"

	// ShadingDeferred writes a G-buffer first and lights it in a full-screen pass.
	ShadingDeferred Shading = "deferred"
)

// Shader macro names produced by Features.Macros.
const (
	MacroNormalMap        = "NORMAL_MAP"
	MacroShadowMap        = "SHADOW_MAP"
	MacroShadowPCF        = "SHADOW_PCF"
	MacroInstancing       = "INSTANCING"
	MacroToneMapping      = "TONE_MAPPING"
	MacroEarlyZ           = "EARLY_Z"
	MacroOcclusionCulling = "OCCLUSION_CULLING"
	MacroDeferred         = "DEFERRED"
)

// Features is the flat set of rendering feature flags.
// Every flag maps to zero or more shader macros and gates the construction of its pass.
type Features struct {
	NormalMapping    bool    `toml:"normal_mapping"`
	ShadowMapping    bool    `toml:"shadow_mapping"`
	SoftShadows      bool    `toml:"soft_shadows"`
	Instancing       bool    `toml:"instancing"`
	StaticBatching   bool    `toml:"static_batching"`
	ToneMapping      bool    `toml:"tone_mapping"`
	EarlyZ           bool    `toml:"early_z"`
	OcclusionCulling bool    `toml:"occlusion_culling"`
	Shading          Shading `toml:"shading"`
}

// DefaultFeatures returns the flag set used by a fresh configuration.
func DefaultFeatures() Features {
	return Features{
		NormalMapping:  true,
		ShadowMapping:  true,
		SoftShadows:    true,
		Instancing:     true,
		StaticBatching: true,
		ToneMapping:    true,
		EarlyZ:         true,
		Shading:        ShadingForward,
	}
}

// Normalize resolves flag dependencies.
// Occlusion culling reads the early depth buffer so it forces EarlyZ on, soft shadows are meaningless
// without shadow maps, and an unknown shading value falls back to forward.
//
// Returns:
//   - Features: the normalized copy
func (f Features) Normalize() Features {
	if f.OcclusionCulling {
		f.EarlyZ = true
	}
	if !f.ShadowMapping {
		f.SoftShadows = false
	}
	if f.Shading != ShadingDeferred {
		f.Shading = ShadingForward
	}
	return f
}

// Macros returns the shader macro set for these flags.
// Flags that are off contribute nothing, so "#if NAME" tests are false for them.
//
// Returns:
//   - map[string]string: macro name to value, all values are "1"
func (f Features) Macros() map[string]string {
	f = f.Normalize()
	m := make(map[string]string)
	set := func(on bool, name string) {
		if on {
			m[name] = "1"
		}
	}
	set(f.NormalMapping, MacroNormalMap)
	set(f.ShadowMapping, MacroShadowMap)
	set(f.SoftShadows, MacroShadowPCF)
	set(f.Instancing, MacroInstancing)
	set(f.ToneMapping, MacroToneMapping)
	set(f.EarlyZ, MacroEarlyZ)
	set(f.OcclusionCulling, MacroOcclusionCulling)
	set(f.Shading == ShadingDeferred, MacroDeferred)
	return m
}

// String renders the enabled flags in a stable order, for logging.
func (f Features) String() string {
	macros := f.Macros()
	names := make([]string, 0, len(macros))
	for k := range macros {
		names = append(names, k)
	}
	sort.Strings(names)
	return fmt.Sprintf("shading=%s [%s]", f.Normalize().Shading, strings.Join(names, " "))
}
