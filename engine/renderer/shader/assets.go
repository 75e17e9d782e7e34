package shader

import (
	"embed"
	"io/fs"
)

// Paths of the built-in pass shaders within Assets.
const (
	PathDepth            = "passes/depth.wgsl"
	PathHiZ              = "passes/hiz.wgsl"
	PathForward          = "passes/forward.wgsl"
	PathGBuffer          = "passes/gbuffer.wgsl"
	PathDeferredLighting = "passes/deferred_lighting.wgsl"
	PathComposition      = "passes/composition.wgsl"
)

// Pass-local macros layered over the feature macros to select a variant of a shared source.
const (
	// MacroShadowPass selects the light view-projection binding of PathDepth.
	MacroShadowPass = "SHADOW_PASS"

	// MacroHiZCopy selects the depth-to-mip-0 copy of PathHiZ.
	MacroHiZCopy = "HIZ_COPY"
)

//go:embed assets
var embedded embed.FS

// Assets is the built-in shader tree rooted at the assets directory.
var Assets fs.FS = mustSub(embedded, "assets")

// PassPaths lists every built-in pass shader.
func PassPaths() []string {
	return []string{PathDepth, PathHiZ, PathForward, PathGBuffer, PathDeferredLighting, PathComposition}
}

// WithMacro returns a copy of macros with name set to "1".
func WithMacro(macros map[string]string, name string) map[string]string {
	out := make(map[string]string, len(macros)+1)
	for k, v := range macros {
		out[k] = v
	}
	out[name] = "1"
	return out
}

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
