package model

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

// testModel builds a small well-formed model: a root with one child node,
// two surfaces with one triangle each, one material, one texture.
func testModel() *Model {
	return &Model{
		Name:       "test",
		Attributes: AttrPosition | AttrNormal | AttrUV0,
		Vertices: []Vertex{
			{Position: mgl32.Vec3{0, 0, 0}},
			{Position: mgl32.Vec3{1, 0, 0}},
			{Position: mgl32.Vec3{0, 1, 0}},
			{Position: mgl32.Vec3{0, 0, 1}},
			{Position: mgl32.Vec3{1, 1, 0}},
			{Position: mgl32.Vec3{1, 0, 1}},
		},
		Triangles: []Triangle{
			{Verts: [3]int32{0, 1, 2}, SurfaceID: 0, MaterialID: 0},
			{Verts: [3]int32{3, 4, 5}, SurfaceID: 1, MaterialID: 0},
		},
		Surfaces: []Surface{
			{ID: 0, Name: "body", SkeletonRootID: 1},
			{ID: 1, Name: "head", SkeletonRootID: 1},
		},
		Materials: []Material{
			func() Material {
				m := Material{Name: "skin"}
				for i := range m.Textures {
					m.Textures[i] = NoID
				}
				m.Textures[TextureDiffuse] = 0
				return m
			}(),
		},
		Textures: []Texture{{Name: "skin", FileName: "skin.png"}},
		Nodes: []Node{
			{ID: 0, Name: "root", ParentID: NoID, ChildIDs: []int32{1},
				Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}},
			{ID: 1, Name: "mesh", ParentID: 0, SurfaceID: 0,
				Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}},
		},
		RootNodeID: 0,
	}
}

func TestValidate_WellFormed(t *testing.T) {
	if err := Validate(testModel()); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidate_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Model)
		wantErr error
	}{
		{
			name:    "missing root",
			mutate:  func(m *Model) { m.RootNodeID = 99 },
			wantErr: ErrNoRootNode,
		},
		{
			name:    "root with parent",
			mutate:  func(m *Model) { m.Nodes[0].ParentID = 1 },
			wantErr: ErrRootHasParent,
		},
		{
			name:    "dangling parent",
			mutate:  func(m *Model) { m.Nodes[1].ParentID = 42 },
			wantErr: ErrDanglingParent,
		},
		{
			name:    "dangling child",
			mutate:  func(m *Model) { m.Nodes[0].ChildIDs = []int32{1, 7} },
			wantErr: ErrDanglingChild,
		},
		{
			name: "cycle",
			mutate: func(m *Model) {
				m.Nodes[1].ChildIDs = []int32{0}
			},
			wantErr: ErrNodeCycle,
		},
		{
			name: "unreachable node",
			mutate: func(m *Model) {
				m.Nodes = append(m.Nodes, Node{ID: 5, Name: "orphan", ParentID: 0})
			},
			wantErr: ErrUnreachableNode,
		},
		{
			name:    "vertex out of range",
			mutate:  func(m *Model) { m.Triangles[0].Verts[2] = 100 },
			wantErr: ErrVertexOutOfRange,
		},
		{
			name:    "negative vertex index",
			mutate:  func(m *Model) { m.Triangles[0].Verts[0] = -2 },
			wantErr: ErrVertexOutOfRange,
		},
		{
			name:    "triangle with missing surface",
			mutate:  func(m *Model) { m.Triangles[1].SurfaceID = 9 },
			wantErr: ErrDanglingSurface,
		},
		{
			name:    "node with missing surface",
			mutate:  func(m *Model) { m.Nodes[1].SurfaceID = 9 },
			wantErr: ErrDanglingSurface,
		},
		{
			name:    "triangle with missing material",
			mutate:  func(m *Model) { m.Triangles[0].MaterialID = 3 },
			wantErr: ErrDanglingMaterial,
		},
		{
			name:    "material with missing texture",
			mutate:  func(m *Model) { m.Materials[0].Textures[TextureNormal] = 12 },
			wantErr: ErrDanglingTexture,
		},
		{
			name:    "surface with missing skeleton root",
			mutate:  func(m *Model) { m.Surfaces[0].SkeletonRootID = 33 },
			wantErr: ErrDanglingSkeleton,
		},
		{
			name: "empty surface",
			mutate: func(m *Model) {
				m.Surfaces = append(m.Surfaces, Surface{ID: 2, Name: "empty", SkeletonRootID: NoID})
			},
			wantErr: ErrEmptySurface,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testModel()
			tt.mutate(m)
			err := Validate(m)
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestModel_SurfaceMaterial(t *testing.T) {
	m := testModel()

	if got := m.SurfaceMaterial(0); got != 0 {
		t.Errorf("SurfaceMaterial(0) = %d, want 0", got)
	}
	if got := m.SurfaceMaterial(77); got != NoID {
		t.Errorf("SurfaceMaterial(77) = %d, want NoID", got)
	}
}

func TestModel_Lookups(t *testing.T) {
	m := testModel()

	if n := m.NodeByID(1); n == nil || n.Name != "mesh" {
		t.Errorf("NodeByID(1) = %+v, want node %q", n, "mesh")
	}
	if m.NodeByID(99) != nil {
		t.Error("NodeByID(99) should be nil")
	}
	if s := m.SurfaceByID(1); s == nil || s.Name != "head" {
		t.Errorf("SurfaceByID(1) = %+v, want surface %q", s, "head")
	}
	if m.SurfaceByID(5) != nil {
		t.Error("SurfaceByID(5) should be nil")
	}
}
