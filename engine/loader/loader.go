// Package loader imports static glTF 2.0 and GLB scenes into models ready for the renderer.
package loader

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/logger"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	fsys       fs.FS
	log        logger.Logger
	maxTexture int

	modelCache map[string][]model.Model
}

// Loader defines the public-facing interface for loading and caching 3D models.
type Loader interface {
	// Load imports a .gltf or .glb file and caches the result by path.
	// Each mesh primitive becomes one model. Every node that references the mesh adds one
	// instance carrying the node's world transform.
	//
	// Parameters:
	//   - name: the path of the model file
	//
	// Returns:
	//   - []model.Model: the loaded models
	//   - error: error if reading or parsing fails
	Load(name string) ([]model.Model, error)

	// Get returns the cached models for a path without loading.
	//
	// Parameters:
	//   - name: the path used when the file was loaded
	//
	// Returns:
	//   - []model.Model: the cached models
	//   - bool: whether the path is cached
	Get(name string) ([]model.Model, bool)

	// Paths returns every cached path.
	//
	// Returns:
	//   - []string: the cached paths
	Paths() []string

	// Unload drops a path from the cache and releases the GPU resources of its models.
	//
	// Parameters:
	//   - name: the path to unload
	Unload(name string)
}

var _ Loader = &loader{}

// NewLoader creates a Loader. Without WithFS, paths are read from the host filesystem.
//
// Parameters:
//   - options: optional builder options
//
// Returns:
//   - Loader: the new loader
func NewLoader(options ...LoaderBuilderOption) Loader {
	l := &loader{
		log:        logger.Nop(),
		modelCache: make(map[string][]model.Model),
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

func (l *loader) Load(name string) ([]model.Model, error) {
	l.mu.RLock()
	cached, ok := l.modelCache[name]
	l.mu.RUnlock()
	if ok {
		return cached, nil
	}

	ext := strings.ToLower(path.Ext(name))
	if ext != ".gltf" && ext != ".glb" {
		return nil, fmt.Errorf("unsupported model format %q", ext)
	}

	fsys, fname, err := l.resolve(name)
	if err != nil {
		return nil, err
	}
	f, err := parseGLTFFile(fsys, fname)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", name, err)
	}
	models, err := l.buildModels(f, strings.TrimSuffix(path.Base(fname), path.Ext(fname)))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", name, err)
	}
	l.log.Infof("loaded %s: %d models", name, len(models))

	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.modelCache[name]; ok {
		return existing, nil
	}
	l.modelCache[name] = models
	return models, nil
}

// resolve maps a path to a filesystem and a name valid within it.
func (l *loader) resolve(name string) (fs.FS, string, error) {
	if l.fsys != nil {
		return l.fsys, path.Clean(filepath.ToSlash(name)), nil
	}
	abs, err := filepath.Abs(name)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve %s: %w", name, err)
	}
	return os.DirFS(filepath.Dir(abs)), filepath.Base(abs), nil
}

func (l *loader) Get(name string) ([]model.Model, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	models, ok := l.modelCache[name]
	return models, ok
}

func (l *loader) Paths() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	paths := make([]string, 0, len(l.modelCache))
	for p := range l.modelCache {
		paths = append(paths, p)
	}
	return paths
}

func (l *loader) Unload(name string) {
	l.mu.Lock()
	models, ok := l.modelCache[name]
	delete(l.modelCache, name)
	l.mu.Unlock()
	if !ok {
		return
	}
	for _, m := range models {
		m.Mesh().Release()
		m.Material().Release()
	}
}

// primitiveKey identifies one primitive of one glTF mesh.
type primitiveKey struct {
	mesh, primitive int
}

// buildModels walks the default scene, gathering world transforms per mesh, and creates one
// model per primitive with those transforms as instances.
func (l *loader) buildModels(f *gltfFile, base string) ([]model.Model, error) {
	instances := make(map[int][]mgl32.Mat4)
	var order []int
	var walk func(node int, parent mgl32.Mat4, depth int) error
	walk = func(node int, parent mgl32.Mat4, depth int) error {
		if node < 0 || node >= len(f.doc.Nodes) {
			return fmt.Errorf("node index %d out of range", node)
		}
		if depth > len(f.doc.Nodes) {
			return fmt.Errorf("node hierarchy has a cycle at node %d", node)
		}
		n := &f.doc.Nodes[node]
		world := parent.Mul4(nodeMatrix(n))
		if n.Mesh != nil {
			if _, seen := instances[*n.Mesh]; !seen {
				order = append(order, *n.Mesh)
			}
			instances[*n.Mesh] = append(instances[*n.Mesh], world)
		}
		for _, child := range n.Children {
			if err := walk(child, world, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	for _, root := range f.rootNodes() {
		if err := walk(root, mgl32.Ident4(), 0); err != nil {
			return nil, err
		}
	}

	materials := make(map[int]model.Material)
	var models []model.Model
	for _, meshIndex := range order {
		if meshIndex < 0 || meshIndex >= len(f.doc.Meshes) {
			return nil, fmt.Errorf("mesh index %d out of range", meshIndex)
		}
		gm := &f.doc.Meshes[meshIndex]
		for p := range gm.Primitives {
			prim := &gm.Primitives[p]
			key := primitiveKey{meshIndex, p}
			vertices, indices, err := f.extractPrimitive(prim)
			if err != nil {
				l.log.Warnf("skipping %s mesh %d primitive %d: %v", base, key.mesh, key.primitive, err)
				continue
			}
			mat, err := l.material(f, prim.Material, materials)
			if err != nil {
				return nil, err
			}

			label := fmt.Sprintf("%s.%s.%d", base, meshName(gm, meshIndex), p)
			models = append(models, model.NewModel(
				model.NewMesh(label, vertices, indices),
				mat,
				model.WithName(label),
				model.WithInstances(instances[meshIndex]...),
			))
		}
	}
	return models, nil
}

// material returns the shared material for a glTF material index, creating it on first use.
func (l *loader) material(f *gltfFile, index *int, cache map[int]model.Material) (model.Material, error) {
	key := -1
	if index != nil {
		key = *index
	}
	if m, ok := cache[key]; ok {
		return m, nil
	}
	var m model.Material
	if key < 0 {
		m = model.NewMaterial("default", model.WithMetallicRoughness(0, 1))
	} else {
		imported, err := f.extractMaterial(key)
		if err != nil {
			return nil, err
		}
		for _, t := range []**common.ImportedTexture{&imported.DiffuseTexture, &imported.NormalTexture} {
			if *t != nil {
				(*t).MaxSize = l.maxTexture
			}
		}
		m = model.NewMaterialFromImported(*imported)
	}
	cache[key] = m
	return m, nil
}

// rootNodes returns the nodes of the default scene, or every parentless node when the file has no scenes.
func (f *gltfFile) rootNodes() []int {
	if len(f.doc.Scenes) > 0 {
		scene := 0
		if f.doc.Scene != nil && *f.doc.Scene >= 0 && *f.doc.Scene < len(f.doc.Scenes) {
			scene = *f.doc.Scene
		}
		return f.doc.Scenes[scene].Nodes
	}
	isChild := make([]bool, len(f.doc.Nodes))
	for _, n := range f.doc.Nodes {
		for _, c := range n.Children {
			if c >= 0 && c < len(isChild) {
				isChild[c] = true
			}
		}
	}
	var roots []int
	for i, child := range isChild {
		if !child {
			roots = append(roots, i)
		}
	}
	return roots
}

func meshName(m *gltfMesh, index int) string {
	if m.Name != "" {
		return m.Name
	}
	return fmt.Sprintf("mesh%d", index)
}
