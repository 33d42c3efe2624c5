// Package exporter drives the full export pipeline: validate the model,
// split it into submeshes, optimize triangle order, optionally bake
// world-space transforms and write the mesh, material and scene artifacts.
package exporter

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Faultbox/meshpack/pkg/mesh"
	"github.com/Faultbox/meshpack/pkg/model"
	"github.com/Faultbox/meshpack/pkg/scene"
	"github.com/Faultbox/meshpack/pkg/vcache"
)

// Options selects what the exporter produces and how.
type Options struct {
	OutDir      string // Destination directory, created if missing
	WorldSpace  bool   // Bake node transforms into vertex data
	PerSurface  bool   // One mesh file per surface instead of one combined file
	VertexCache bool   // Reorder triangles for post-transform cache reuse
	FlipU       bool
	FlipV       bool
}

// Exporter writes every artifact derived from one model.
type Exporter struct {
	opts Options
	opt  vcache.Optimizer
	log  *zap.Logger
}

// New builds an exporter. A nil logger disables logging.
func New(opts Options, log *zap.Logger) *Exporter {
	if log == nil {
		log = zap.NewNop()
	}
	var opt vcache.Optimizer = vcache.Passthrough{}
	if opts.VertexCache {
		opt = vcache.Forsyth{}
	}
	return &Exporter{opts: opts, opt: opt, log: log}
}

// Export runs the pipeline and writes mesh files, one material document per
// material and the scene description. Artifact writes are independent: a
// failed document is logged and the remaining artifacts are still attempted,
// with the first error reported.
func (e *Exporter) Export(m *model.Model) error {
	if err := model.Validate(m); err != nil {
		return fmt.Errorf("validating model %q: %w", m.Name, err)
	}

	var flips []model.UVTransform
	if e.opts.FlipU {
		flips = append(flips, model.FlipU)
	}
	if e.opts.FlipV {
		flips = append(flips, model.FlipV)
	}
	m.TransformUVs(flips...)

	if e.opts.OutDir != "" {
		if err := os.MkdirAll(e.opts.OutDir, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	subs, err := mesh.Split(m)
	if err != nil {
		return fmt.Errorf("splitting model %q: %w", m.Name, err)
	}
	e.log.Info("model split",
		zap.String("model", m.Name),
		zap.Int("surfaces", len(subs)),
		zap.Int("vertices", len(m.Vertices)),
		zap.Int("triangles", len(m.Triangles)),
		zap.Stringer("attributes", m.Attributes))

	for i := range subs {
		sub := &subs[i]
		sub.Vertices, sub.Indices, err = e.opt.Optimize(sub.Vertices, sub.Indices)
		if err != nil {
			return fmt.Errorf("optimizing submesh %q: %w", sub.Name, err)
		}
		if e.opts.WorldSpace {
			if err := mesh.BakeWorldSpace(sub, m); err != nil {
				return fmt.Errorf("baking submesh %q: %w", sub.Name, err)
			}
		}
	}

	refs, firstErr := e.writeMeshes(m, subs)

	for i := range m.Materials {
		mat := &m.Materials[i]
		path := filepath.Join(e.opts.OutDir, mat.Name+".material")
		if err := scene.ExportMaterial(path, mat, m); err != nil {
			e.log.Error("material export failed", zap.String("material", mat.Name), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		e.log.Debug("material written", zap.String("path", path))
	}

	scenePath := filepath.Join(e.opts.OutDir, "Scene.xml")
	if err := scene.ExportScene(scenePath, m, refs); err != nil {
		e.log.Error("scene export failed", zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	} else {
		e.log.Info("scene written", zap.String("path", scenePath))
	}

	return firstErr
}

// writeMeshes serializes the submeshes and returns the reference tables the
// scene description needs. In combined mode every surface lands in one
// <model>.mesh; in per-surface mode each surface gets its own file with
// offsets rebased to zero.
func (e *Exporter) writeMeshes(m *model.Model, subs []mesh.Submesh) (scene.Refs, error) {
	refs := scene.Refs{
		Mesh:     make(map[int32]scene.MeshRef, len(subs)),
		Material: make(map[int32]string, len(subs)),
	}
	var firstErr error

	record := func(surfaceID int32, ref scene.MeshRef, materialID int32) {
		refs.Mesh[surfaceID] = ref
		if materialID != model.NoID && int(materialID) < len(m.Materials) {
			refs.Material[surfaceID] = m.Materials[materialID].Name + ".material"
		}
	}

	if !e.opts.PerSurface {
		name := m.Name + ".mesh"
		path := filepath.Join(e.opts.OutDir, name)
		if err := mesh.WriteFile(path, m.Attributes, subs); err != nil {
			e.log.Error("mesh write failed", zap.String("path", path), zap.Error(err))
			return refs, err
		}
		e.log.Info("mesh written", zap.String("path", path), zap.Int("submeshes", len(subs)))

		for i := range subs {
			record(m.Surfaces[i].ID, scene.MeshRef{File: name, Submesh: i}, subs[i].MaterialID)
		}
		return refs, nil
	}

	for i := range subs {
		sub := subs[i]
		sub.BaseVertex = 0
		sub.FirstIndex = 0

		name := sub.Name + ".mesh"
		path := filepath.Join(e.opts.OutDir, name)
		if err := mesh.WriteFile(path, m.Attributes, []mesh.Submesh{sub}); err != nil {
			e.log.Error("mesh write failed", zap.String("path", path), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		e.log.Debug("mesh written", zap.String("path", path))

		record(m.Surfaces[i].ID, scene.MeshRef{File: name, Submesh: 0}, sub.MaterialID)
	}
	return refs, firstErr
}
