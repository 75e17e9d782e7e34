// Command oxyview renders a glTF scene, or a grid of instanced cubes, through the multi-pass pipeline.
//
// Keys 1-8 toggle normal mapping, shadows, soft shadows, instancing, static batching, tone mapping,
// early depth and occlusion culling. G switches forward and deferred shading, 0 restores the defaults,
// F toggles the profiler. Drag to orbit and scroll to zoom.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/Carmen-Shannon/oxy-pipeline/engine"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/camera"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/config"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/light"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/loader"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/logger"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/model"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/scene"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/window"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

func main() {
	configPath := flag.String("config", config.DefaultFile, "settings file")
	modelPath := flag.String("model", "", "glTF or GLB file to view")
	cubes := flag.Int("cubes", 100, "instanced cubes shown when no model is given")
	shaderDir := flag.String("shaders", "", "on-disk shader root; enables hot reload")
	profile := flag.Bool("profile", false, "log frame statistics every second")
	flag.Parse()

	if err := run(*configPath, *modelPath, *shaderDir, *cubes, *profile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, modelPath, shaderDir string, cubes int, profile bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if shaderDir != "" {
		cfg.Shaders.Dir = shaderDir
		cfg.Shaders.HotReload = true
	}
	log := logger.New(logger.Options{Prefix: "oxyview", Level: cfg.Log.Level})

	win, err := window.NewWindow(window.WithTitle("oxyview"), window.WithSize(1600, 900))
	if err != nil {
		return err
	}

	items, err := sceneItems(modelPath, cubes, log)
	if err != nil {
		win.Close()
		return err
	}

	cam := camera.NewCamera(
		camera.WithPosition(0, 12, 24),
		camera.WithTarget(0, 1, 0),
		camera.WithProjection(camera.Perspective{FovY: mgl32.DegToRad(50), Near: 0.1, Far: 500}),
	)
	sun := light.NewLight(light.LightTypeDirectional,
		light.WithDirection(-0.4, -1, -0.3),
		light.WithColor(1, 0.95, 0.85),
		light.WithIntensity(3),
		light.WithCastsShadows(true),
		light.WithShadowFrustum(30, 0.1, 120),
	)
	sc := scene.NewScene("oxyview", cam,
		scene.WithItems(items...),
		scene.WithLights(
			sun,
			light.NewLight(light.LightTypePoint, light.WithPosition(-6, 4, 4), light.WithColor(0.2, 0.4, 1), light.WithIntensity(4), light.WithRange(15)),
			light.NewLight(light.LightTypePoint, light.WithPosition(6, 4, -4), light.WithColor(1, 0.5, 0.1), light.WithIntensity(4), light.WithRange(15)),
		),
		scene.WithAmbientColor(0.6, 0.65, 0.8, 0.08),
	)

	eng := engine.NewEngine(
		engine.WithWindow(win),
		engine.WithScene(sc),
		engine.WithConfig(cfg),
		engine.WithConfigPath(configPath),
		engine.WithLogger(log),
		engine.WithProfiling(profile),
	)

	// The sun circles slowly so shadow stability is visible.
	var angle float32
	eng.SetRenderCallback(func(dt float32) {
		angle += dt * 0.1
		sun.SetDirection(math32.Cos(angle)*0.5, -1, math32.Sin(angle)*0.5)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return eng.Run(ctx)
}

// sceneItems loads modelPath, or builds a cube grid, and adds a ground plane.
func sceneItems(modelPath string, cubes int, log logger.Logger) ([]renderer.DrawItem, error) {
	ground := model.NewModel(
		model.Plane("ground", 40),
		model.NewMaterial("ground", model.WithBaseColor(0.45, 0.45, 0.42, 1), model.WithMetallicRoughness(0, 0.9)),
	)
	items := []renderer.DrawItem{ground}

	if modelPath != "" {
		models, err := loader.NewLoader(loader.WithLogger(log), loader.WithMaxTextureSize(2048)).Load(modelPath)
		if err != nil {
			return nil, err
		}
		for _, m := range models {
			items = append(items, m)
		}
		return items, nil
	}

	cube := model.NewModel(
		model.Cube("cube", 1),
		model.NewMaterial("cube", model.WithBaseColor(0.8, 0.25, 0.2, 1), model.WithMetallicRoughness(0.1, 0.4)),
		model.WithPosition(0, 0.5, 0),
		model.WithGrid(cubes, 2.5),
	)
	return append(items, cube), nil
}
