package scene

import (
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/meshpack/pkg/model"
)

func identityNode(id int32, name string, parent int32) model.Node {
	return model.Node{
		ID: id, Name: name, ParentID: parent,
		Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1},
		SurfaceID: model.NoID,
	}
}

// lodModel builds: root -> Foo_LODGroup -> {Foo_LOD0, Foo_LOD1}, each LOD
// leaf referencing its own surface.
func lodModel() *model.Model {
	root := identityNode(0, "root", model.NoID)
	root.ChildIDs = []int32{1}
	group := identityNode(1, "Foo_LODGroup", 0)
	group.ChildIDs = []int32{2, 3}
	lod0 := identityNode(2, "Foo_LOD0", 1)
	lod0.SurfaceID = 10
	lod1 := identityNode(3, "Foo_LOD1", 1)
	lod1.SurfaceID = 20

	return &model.Model{
		Name:       "lod",
		Attributes: model.AttrPosition,
		Surfaces: []model.Surface{
			{ID: 10, Name: "Foo_LOD0"},
			{ID: 20, Name: "Foo_LOD1"},
		},
		Nodes:      []model.Node{root, group, lod0, lod1},
		RootNodeID: 0,
	}
}

func lodRefs() Refs {
	return Refs{
		Mesh: map[int32]MeshRef{
			10: {File: "lod.mesh", Submesh: 0},
			20: {File: "lod.mesh", Submesh: 1},
		},
		Material: map[int32]string{
			10: "foo.material",
			20: "foo.material",
		},
	}
}

func TestBuildScene_LODGroupFlattening(t *testing.T) {
	doc, err := buildScene(lodModel(), lodRefs())
	if err != nil {
		t.Fatalf("buildScene failed: %v", err)
	}

	root := doc.Nodes[0]
	if len(root.Children) != 1 {
		t.Fatalf("root has %d children, want 1", len(root.Children))
	}
	group := root.Children[0]
	if group.Name != "Foo_LODGroup" {
		t.Fatalf("group node name = %q", group.Name)
	}

	// One draw per LOD child, flattened under the group; no nested nodes.
	if len(group.Children) != 0 {
		t.Errorf("group has %d nested nodes, want 0", len(group.Children))
	}
	if len(group.Draws) != 2 {
		t.Fatalf("group has %d draws, want 2", len(group.Draws))
	}
	for i, draw := range group.Draws {
		if draw.LOD == nil {
			t.Fatalf("draw %d untagged, want lod=%d", i, i)
		}
		if *draw.LOD != i {
			t.Errorf("draw %d lod = %d, want %d", i, *draw.LOD, i)
		}
		if draw.Mesh != "lod.mesh" || draw.Submesh != i {
			t.Errorf("draw %d = %s#%d, want lod.mesh#%d", i, draw.Mesh, draw.Submesh, i)
		}
		if draw.Material != "foo.material" {
			t.Errorf("draw %d material = %q", i, draw.Material)
		}
	}
}

func TestBuildScene_GroupRequiresIdentityChildren(t *testing.T) {
	m := lodModel()
	m.Nodes[2].Translation = mgl32.Vec3{0.5, 0, 0}

	doc, err := buildScene(m, lodRefs())
	if err != nil {
		t.Fatalf("buildScene failed: %v", err)
	}

	// Disqualified: children are emitted as nested nodes with their own
	// draws, none tagged.
	group := doc.Nodes[0].Children[0]
	if len(group.Draws) != 0 {
		t.Errorf("group has %d draws, want 0", len(group.Draws))
	}
	if len(group.Children) != 2 {
		t.Fatalf("group has %d children, want 2", len(group.Children))
	}
	for _, child := range group.Children {
		for _, draw := range child.Draws {
			if draw.LOD != nil {
				t.Errorf("nested draw in %q tagged lod=%d", child.Name, *draw.LOD)
			}
		}
	}
}

func TestBuildScene_GroupToleratesNearIdentity(t *testing.T) {
	m := lodModel()
	// Inside the 1e-4 tolerance.
	m.Nodes[2].Translation = mgl32.Vec3{5e-5, 0, 0}
	m.Nodes[3].Scale = mgl32.Vec3{1, 1 + 5e-5, 1}

	doc, err := buildScene(m, lodRefs())
	if err != nil {
		t.Fatalf("buildScene failed: %v", err)
	}
	if got := len(doc.Nodes[0].Children[0].Draws); got != 2 {
		t.Errorf("group draws = %d, want 2", got)
	}
}

func TestBuildScene_GroupRequiresLeafChildren(t *testing.T) {
	m := lodModel()
	grand := identityNode(4, "grandchild", 2)
	m.Nodes = append(m.Nodes, grand)
	m.Nodes[2].ChildIDs = []int32{4}

	doc, err := buildScene(m, lodRefs())
	if err != nil {
		t.Fatalf("buildScene failed: %v", err)
	}
	if got := len(doc.Nodes[0].Children[0].Draws); got != 0 {
		t.Errorf("group draws = %d, want 0 (child is not a leaf)", got)
	}
}

func TestBuildScene_GroupSkipsSurfacelessChildren(t *testing.T) {
	m := lodModel()
	m.Nodes[3].SurfaceID = model.NoID

	doc, err := buildScene(m, lodRefs())
	if err != nil {
		t.Fatalf("buildScene failed: %v", err)
	}
	group := doc.Nodes[0].Children[0]
	if len(group.Draws) != 1 {
		t.Fatalf("group draws = %d, want 1", len(group.Draws))
	}
	if group.Draws[0].LOD == nil || *group.Draws[0].LOD != 0 {
		t.Errorf("remaining draw not tagged lod=0")
	}
}

func TestBuildScene_RotationComponentOrder(t *testing.T) {
	m := &model.Model{
		Nodes: []model.Node{{
			ID: 0, Name: "root", ParentID: model.NoID, SurfaceID: model.NoID,
			Translation: mgl32.Vec3{1, 2, 3},
			// Internal storage is scalar-first.
			Rotation: mgl32.Quat{W: 0.8, V: mgl32.Vec3{0.1, 0.2, 0.3}},
			Scale:    mgl32.Vec3{1, 1, 1},
		}},
		RootNodeID: 0,
	}

	doc, err := buildScene(m, Refs{})
	if err != nil {
		t.Fatalf("buildScene failed: %v", err)
	}
	root := doc.Nodes[0]
	if root.Rotation != "0.1 0.2 0.3 0.8" {
		t.Errorf("rotation = %q, want x y z w order", root.Rotation)
	}
	if root.Translation != "1 2 3" {
		t.Errorf("translation = %q", root.Translation)
	}
}

func TestBuildScene_UnresolvedMesh(t *testing.T) {
	m := lodModel()
	refs := lodRefs()
	delete(refs.Mesh, 20)

	_, err := buildScene(m, refs)
	if !errors.Is(err, ErrUnresolvedMesh) {
		t.Fatalf("buildScene() = %v, want ErrUnresolvedMesh", err)
	}
}

func TestBuildScene_CycleGuard(t *testing.T) {
	m := lodModel()
	m.Nodes[1].Name = "Foo" // keep it a plain node so recursion descends
	m.Nodes[2].ChildIDs = []int32{1}

	_, err := buildScene(m, lodRefs())
	if !errors.Is(err, ErrSceneCycle) {
		t.Fatalf("buildScene() = %v, want ErrSceneCycle", err)
	}
}

func TestLodIndex(t *testing.T) {
	tests := []struct {
		name string
		want int // -1 for untagged
	}{
		{"Foo_LOD0", 0},
		{"Foo_LOD3", 3},
		{"Foo_LOD7", 7},
		{"Foo_LOD8", -1},
		{"Foo", -1},
		{"Foo_LOD1_extra", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lodIndex(tt.name)
			if tt.want < 0 {
				if got != nil {
					t.Errorf("lodIndex(%q) = %d, want untagged", tt.name, *got)
				}
				return
			}
			if got == nil || *got != tt.want {
				t.Errorf("lodIndex(%q) = %v, want %d", tt.name, got, tt.want)
			}
		})
	}
}

func TestExportScene_WritesParseableXML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Scene.xml")

	if err := ExportScene(path, lodModel(), lodRefs()); err != nil {
		t.Fatalf("ExportScene failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading scene: %v", err)
	}
	var doc sceneDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshaling scene: %v", err)
	}
	if len(doc.Nodes) != 1 || doc.Nodes[0].Name != "root" {
		t.Errorf("unexpected document root: %+v", doc.Nodes)
	}
}

func TestExportScene_CreateFailure(t *testing.T) {
	err := ExportScene("/nonexistent-dir/Scene.xml", lodModel(), lodRefs())
	if err == nil {
		t.Fatal("ExportScene() = nil, want error")
	}
}
