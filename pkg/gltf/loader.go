// Package gltf ingests glTF 2.0 documents (.gltf and .glb) into the
// pipeline's model graph. The loader flattens each mesh primitive into one
// surface, keeps the source node hierarchy and maps PBR material inputs onto
// the fixed texture slot set.
package gltf

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/meshpack/pkg/model"
)

// Load errors.
var (
	ErrNoScene      = errors.New("document has no scene")
	ErrNoPosition   = errors.New("primitive has no POSITION attribute")
	ErrNoIndices    = errors.New("primitive is not indexed")
	ErrNonTriangles = errors.New("primitive mode is not triangles")
)

// Load reads a glTF or binary glTF asset from disk and converts it. The model
// name is the file name without its extension.
func Load(path string) (*model.Model, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return LoadDocument(doc, name)
}

// LoadDocument converts an already-decoded document. Node ids mirror the
// document's node indices; synthetic nodes (extra-primitive holders, a
// synthesized root when the scene has several) are appended after them.
func LoadDocument(doc *gltf.Document, name string) (*model.Model, error) {
	l := &loader{
		doc:    doc,
		nextID: int32(len(doc.Nodes)),
		m:      &model.Model{Name: name, RootNodeID: model.NoID},
	}

	if err := l.convertMaterials(); err != nil {
		return nil, err
	}

	roots, err := sceneRoots(doc)
	if err != nil {
		return nil, err
	}
	rootIDs := make([]int32, 0, len(roots))
	for _, r := range roots {
		id, err := l.convertNode(r, model.NoID)
		if err != nil {
			return nil, err
		}
		rootIDs = append(rootIDs, id)
	}

	if len(rootIDs) == 1 {
		l.m.RootNodeID = rootIDs[0]
	} else {
		// Several scene roots: hang them under one synthesized node so the
		// model keeps a single tree.
		root := model.Node{
			ID: l.nextID, Name: name, ParentID: model.NoID,
			ChildIDs: rootIDs,
			Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1},
			SurfaceID: model.NoID,
		}
		l.nextID++
		for _, id := range rootIDs {
			l.m.NodeByID(id).ParentID = root.ID
		}
		l.m.Nodes = append(l.m.Nodes, root)
		l.m.RootNodeID = root.ID
	}
	return l.m, nil
}

type loader struct {
	doc    *gltf.Document
	m      *model.Model
	nextID int32
}

func sceneRoots(doc *gltf.Document) ([]uint32, error) {
	idx := 0
	if doc.Scene != nil {
		idx = int(*doc.Scene)
	}
	if idx >= len(doc.Scenes) || len(doc.Scenes[idx].Nodes) == 0 {
		return nil, ErrNoScene
	}
	return doc.Scenes[idx].Nodes, nil
}

func (l *loader) convertNode(idx uint32, parentID int32) (int32, error) {
	if int(idx) >= len(l.doc.Nodes) {
		return 0, fmt.Errorf("node index %d out of range", idx)
	}
	src := l.doc.Nodes[idx]

	n := model.Node{
		ID:        int32(idx),
		Name:      src.Name,
		ParentID:  parentID,
		SurfaceID: model.NoID,
	}
	if n.Name == "" {
		n.Name = fmt.Sprintf("node_%d", idx)
	}
	n.Translation, n.Rotation, n.Scale = nodeTransform(src)

	l.m.Nodes = append(l.m.Nodes, n)
	at := len(l.m.Nodes) - 1

	if src.Mesh != nil {
		if err := l.convertMesh(*src.Mesh, at); err != nil {
			return 0, err
		}
	}

	for _, child := range src.Children {
		childID, err := l.convertNode(child, n.ID)
		if err != nil {
			return 0, err
		}
		l.m.Nodes[at].ChildIDs = append(l.m.Nodes[at].ChildIDs, childID)
	}
	return n.ID, nil
}

// nodeTransform extracts the local TRS. A matrix-specified node is decomposed
// assuming no shear; nodes built in memory may carry zero-valued rotation and
// scale fields, which stand in for the format defaults.
func nodeTransform(n *gltf.Node) (mgl32.Vec3, mgl32.Quat, mgl32.Vec3) {
	if m := n.MatrixOrDefault(); m != gltf.DefaultMatrix {
		return decomposeMatrix(m)
	}

	t := mgl32.Vec3{n.Translation[0], n.Translation[1], n.Translation[2]}
	r := mgl32.Quat{W: n.Rotation[3], V: mgl32.Vec3{n.Rotation[0], n.Rotation[1], n.Rotation[2]}}
	if n.Rotation == ([4]float32{}) {
		r = mgl32.QuatIdent()
	}
	s := mgl32.Vec3{n.Scale[0], n.Scale[1], n.Scale[2]}
	if n.Scale == ([3]float32{}) {
		s = mgl32.Vec3{1, 1, 1}
	}
	return t, r, s
}

func decomposeMatrix(raw [16]float32) (mgl32.Vec3, mgl32.Quat, mgl32.Vec3) {
	m := mgl32.Mat4(raw) // column-major on both sides

	t := m.Col(3).Vec3()
	s := mgl32.Vec3{m.Col(0).Vec3().Len(), m.Col(1).Vec3().Len(), m.Col(2).Vec3().Len()}

	rot := mgl32.Mat3FromCols(
		m.Col(0).Vec3().Mul(1/s[0]),
		m.Col(1).Vec3().Mul(1/s[1]),
		m.Col(2).Vec3().Mul(1/s[2]),
	)
	return t, mgl32.Mat4ToQuat(rot.Mat4()), s
}

// convertMesh turns each primitive of the mesh into one surface. The first
// primitive attaches to the owning node; every further primitive gets a
// synthetic identity-transform child node, keeping the node-per-surface shape
// the exporter relies on.
func (l *loader) convertMesh(meshIdx uint32, nodeAt int) error {
	if int(meshIdx) >= len(l.doc.Meshes) {
		return fmt.Errorf("mesh index %d out of range", meshIdx)
	}
	mesh := l.doc.Meshes[meshIdx]
	owner := &l.m.Nodes[nodeAt]

	baseName := mesh.Name
	if baseName == "" {
		baseName = owner.Name
	}

	for i, prim := range mesh.Primitives {
		name := baseName
		if i > 0 {
			name = fmt.Sprintf("%s_%d", baseName, i)
		}
		surfaceID, err := l.convertPrimitive(prim, name, owner.ID)
		if err != nil {
			return fmt.Errorf("mesh %q primitive %d: %w", baseName, i, err)
		}

		if i == 0 {
			l.m.Nodes[nodeAt].SurfaceID = surfaceID
			continue
		}
		child := model.Node{
			ID: l.nextID, Name: name, ParentID: l.m.Nodes[nodeAt].ID,
			Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1},
			SurfaceID: surfaceID,
		}
		l.nextID++
		l.m.Nodes = append(l.m.Nodes, child)
		l.m.Nodes[nodeAt].ChildIDs = append(l.m.Nodes[nodeAt].ChildIDs, child.ID)
	}
	return nil
}

func (l *loader) convertPrimitive(p *gltf.Primitive, name string, ownerID int32) (int32, error) {
	if p.Mode != gltf.PrimitiveTriangles {
		return 0, fmt.Errorf("%w: mode %d", ErrNonTriangles, p.Mode)
	}
	if p.Indices == nil {
		return 0, ErrNoIndices
	}
	posAcc, ok := p.Attributes["POSITION"]
	if !ok {
		return 0, ErrNoPosition
	}

	positions, err := modeler.ReadPosition(l.doc, l.doc.Accessors[posAcc], nil)
	if err != nil {
		return 0, fmt.Errorf("reading positions: %w", err)
	}

	base := int32(len(l.m.Vertices))
	verts := make([]model.Vertex, len(positions))
	var bounds model.Bounds
	for i, pos := range positions {
		verts[i].Position = mgl32.Vec3(pos)
		if i == 0 {
			bounds = model.Bounds{Min: verts[i].Position, Max: verts[i].Position}
		} else {
			bounds.Extend(verts[i].Position)
		}
	}
	l.m.Attributes |= model.AttrPosition

	if err := l.readAttributes(p, verts); err != nil {
		return 0, err
	}
	l.m.Vertices = append(l.m.Vertices, verts...)

	indices, err := modeler.ReadIndices(l.doc, l.doc.Accessors[*p.Indices], nil)
	if err != nil {
		return 0, fmt.Errorf("reading indices: %w", err)
	}

	surfaceID := int32(len(l.m.Surfaces))
	materialID := model.NoID
	if p.Material != nil {
		materialID = int32(*p.Material)
		if _, skinned := p.Attributes["JOINTS_0"]; skinned {
			l.markSkinned(materialID)
		}
	}

	for i := 0; i+2 < len(indices); i += 3 {
		l.m.Triangles = append(l.m.Triangles, model.Triangle{
			Verts: [3]int32{
				base + int32(indices[i]),
				base + int32(indices[i+1]),
				base + int32(indices[i+2]),
			},
			SurfaceID:  surfaceID,
			MaterialID: materialID,
		})
	}

	l.m.Surfaces = append(l.m.Surfaces, model.Surface{
		ID:             surfaceID,
		Name:           name,
		SkeletonRootID: ownerID,
		Bounds:         bounds,
	})
	return surfaceID, nil
}

// readAttributes fills the optional vertex fields and widens the model's
// attribute mask for each one present.
func (l *loader) readAttributes(p *gltf.Primitive, verts []model.Vertex) error {
	if acc, ok := p.Attributes["NORMAL"]; ok {
		normals, err := modeler.ReadNormal(l.doc, l.doc.Accessors[acc], nil)
		if err != nil {
			return fmt.Errorf("reading normals: %w", err)
		}
		for i := range verts {
			verts[i].Normal = mgl32.Vec3(normals[i])
		}
		l.m.Attributes |= model.AttrNormal
	}

	// Tangent handedness (the w component) is not representable in the packed
	// vertex layout; only the direction survives.
	if acc, ok := p.Attributes["TANGENT"]; ok {
		tangents, err := modeler.ReadTangent(l.doc, l.doc.Accessors[acc], nil)
		if err != nil {
			return fmt.Errorf("reading tangents: %w", err)
		}
		for i := range verts {
			verts[i].Binormal = mgl32.Vec3{tangents[i][0], tangents[i][1], tangents[i][2]}
		}
		l.m.Attributes |= model.AttrBinormal
	}

	if acc, ok := p.Attributes["COLOR_0"]; ok {
		colors, err := modeler.ReadColor(l.doc, l.doc.Accessors[acc], nil)
		if err != nil {
			return fmt.Errorf("reading colors: %w", err)
		}
		for i := range verts {
			verts[i].Color = mgl32.Vec4{
				float32(colors[i][0]) / 255,
				float32(colors[i][1]) / 255,
				float32(colors[i][2]) / 255,
				float32(colors[i][3]) / 255,
			}
		}
		l.m.Attributes |= model.AttrColor
	}

	if acc, ok := p.Attributes["TEXCOORD_0"]; ok {
		uvs, err := modeler.ReadTextureCoord(l.doc, l.doc.Accessors[acc], nil)
		if err != nil {
			return fmt.Errorf("reading uv0: %w", err)
		}
		for i := range verts {
			verts[i].UV0 = mgl32.Vec2(uvs[i])
		}
		l.m.Attributes |= model.AttrUV0
	}

	if acc, ok := p.Attributes["TEXCOORD_1"]; ok {
		uvs, err := modeler.ReadTextureCoord(l.doc, l.doc.Accessors[acc], nil)
		if err != nil {
			return fmt.Errorf("reading uv1: %w", err)
		}
		for i := range verts {
			verts[i].UV1 = mgl32.Vec2(uvs[i])
		}
		l.m.Attributes |= model.AttrUV1
	}

	if acc, ok := p.Attributes["JOINTS_0"]; ok {
		joints, err := modeler.ReadJoints(l.doc, l.doc.Accessors[acc], nil)
		if err != nil {
			return fmt.Errorf("reading joints: %w", err)
		}
		for i := range verts {
			for j := 0; j < 4; j++ {
				verts[i].JointIndices[j] = float32(joints[i][j])
			}
		}
		l.m.Attributes |= model.AttrJointIndices
	}

	if acc, ok := p.Attributes["WEIGHTS_0"]; ok {
		weights, err := modeler.ReadWeights(l.doc, l.doc.Accessors[acc], nil)
		if err != nil {
			return fmt.Errorf("reading weights: %w", err)
		}
		for i := range verts {
			verts[i].JointWeights = weights[i]
		}
		l.m.Attributes |= model.AttrJointWeights
	}
	return nil
}

// convertMaterials maps every document material and each texture it
// references. Material kinds start opaque or transparent; a skinned variant
// is substituted when a primitive with joints references the material.
func (l *loader) convertMaterials() error {
	textureIDs := make(map[uint32]int32)

	for _, src := range l.doc.Materials {
		mat := model.Material{Name: src.Name, Kind: model.MaterialOpaque}
		for i := range mat.Textures {
			mat.Textures[i] = model.NoID
		}
		if src.AlphaMode == gltf.AlphaBlend {
			mat.Kind = model.MaterialTransparent
		}

		set := func(slot model.TextureUsage, texIdx uint32) error {
			id, err := l.internTexture(texIdx, textureIDs)
			if err != nil {
				return fmt.Errorf("material %q slot %s: %w", src.Name, slot, err)
			}
			mat.Textures[slot] = id
			return nil
		}

		if pbr := src.PBRMetallicRoughness; pbr != nil {
			if pbr.BaseColorTexture != nil {
				if err := set(model.TextureDiffuse, pbr.BaseColorTexture.Index); err != nil {
					return err
				}
			}
			if pbr.MetallicRoughnessTexture != nil {
				// One combined map in glTF, two slots here.
				if err := set(model.TextureRoughness, pbr.MetallicRoughnessTexture.Index); err != nil {
					return err
				}
				if err := set(model.TextureMetallic, pbr.MetallicRoughnessTexture.Index); err != nil {
					return err
				}
			}
		}
		if src.NormalTexture != nil && src.NormalTexture.Index != nil {
			if err := set(model.TextureNormal, *src.NormalTexture.Index); err != nil {
				return err
			}
		}
		if src.OcclusionTexture != nil && src.OcclusionTexture.Index != nil {
			if err := set(model.TextureOcclusion, *src.OcclusionTexture.Index); err != nil {
				return err
			}
		}
		if src.EmissiveTexture != nil {
			if err := set(model.TextureEmissive, src.EmissiveTexture.Index); err != nil {
				return err
			}
		}

		l.m.Materials = append(l.m.Materials, mat)
	}
	return nil
}

func (l *loader) internTexture(texIdx uint32, seen map[uint32]int32) (int32, error) {
	if id, ok := seen[texIdx]; ok {
		return id, nil
	}
	if int(texIdx) >= len(l.doc.Textures) {
		return 0, fmt.Errorf("texture index %d out of range", texIdx)
	}
	tex := l.doc.Textures[texIdx]
	if tex.Source == nil || int(*tex.Source) >= len(l.doc.Images) {
		return 0, fmt.Errorf("texture %d has no resolvable image", texIdx)
	}
	img := l.doc.Images[*tex.Source]

	name := img.Name
	if name == "" {
		name = fmt.Sprintf("texture_%d", texIdx)
	}
	file := img.URI
	if file == "" {
		// Embedded image data: reference it by name, the engine resolves
		// textures by file name at packaging time.
		file = name
	}

	id := int32(len(l.m.Textures))
	l.m.Textures = append(l.m.Textures, model.Texture{Name: name, FileName: file})
	seen[texIdx] = id
	return id, nil
}

func (l *loader) markSkinned(materialID int32) {
	if materialID < 0 || int(materialID) >= len(l.m.Materials) {
		return
	}
	switch mat := &l.m.Materials[materialID]; mat.Kind {
	case model.MaterialOpaque:
		mat.Kind = model.MaterialSkinnedOpaque
	case model.MaterialTransparent:
		mat.Kind = model.MaterialSkinnedTransparent
	}
}
