//go:build mage

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/config"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/logger"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/shader"
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Viewer builds the oxyview binary into bin/.
func (Build) Viewer() error {
	_, err := executeCmd("go", withArgs("build", "-o", "bin/oxyview", "./cmd/oxyview"), withStream())
	return err
}

// Shaders preprocesses every pass shader under every feature combination.
// Set OXY_SHADERS to check an on-disk shader tree instead of the embedded one.
func (Build) Shaders() error {
	fsys := shader.Assets
	if dir := os.Getenv("OXY_SHADERS"); dir != "" {
		fsys = os.DirFS(dir)
	}
	log := logger.New(logger.Options{Prefix: "mage", Level: "warn"})
	lib := shader.NewLibrary(fsys, shader.WithLogger(log), shader.WithPreloadWorkers(8))
	defer lib.Close()

	ctx := context.Background()
	seen := make(map[string]bool)
	for _, f := range featureCombinations() {
		macros := f.Macros()
		key := shader.VariantKey("", macros)
		if seen[key] {
			continue
		}
		seen[key] = true

		if err := lib.Preload(ctx, shader.PassPaths(), macros); err != nil {
			return fmt.Errorf("features %s: %w", f, err)
		}
		if err := lib.Preload(ctx, []string{shader.PathDepth}, shader.WithMacro(macros, shader.MacroShadowPass)); err != nil {
			return fmt.Errorf("features %s shadow pass: %w", f, err)
		}
		if err := lib.Preload(ctx, []string{shader.PathHiZ}, shader.WithMacro(macros, shader.MacroHiZCopy)); err != nil {
			return fmt.Errorf("features %s hi-z copy: %w", f, err)
		}
	}
	fmt.Printf("%d feature sets, %d shader variants ok\n", len(seen), lib.Len())
	return nil
}

// featureCombinations enumerates every flag assignment under both shading models.
func featureCombinations() []config.Features {
	var out []config.Features
	for bits := 0; bits < 1<<8; bits++ {
		for _, shading := range []config.Shading{config.ShadingForward, config.ShadingDeferred} {
			on := func(i int) bool { return bits&(1<<i) != 0 }
			out = append(out, config.Features{
				NormalMapping:    on(0),
				ShadowMapping:    on(1),
				SoftShadows:      on(2),
				Instancing:       on(3),
				StaticBatching:   on(4),
				ToneMapping:      on(5),
				EarlyZ:           on(6),
				OcclusionCulling: on(7),
				Shading:          shading,
			})
		}
	}
	return out
}
