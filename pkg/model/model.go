// Package model defines the in-memory scene graph consumed by the export
// pipeline: vertices, triangles, material-homogeneous surfaces, a node
// hierarchy and the fixed vertex attribute set. The model is produced by an
// ingestion collaborator (see pkg/gltf) and is treated as read-only by every
// export stage.
package model

import "github.com/go-gl/mathgl/mgl32"

// NoID marks an absent reference (no parent, no surface, unset texture slot).
const NoID int32 = -1

// Vertex holds every attribute the pipeline understands. Which fields are
// meaningful is governed entirely by the owning model's attribute mask;
// fields outside the mask are never read or written.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	Binormal mgl32.Vec3
	// Color keeps four channels in memory but only RGB is ever serialized.
	Color        mgl32.Vec4
	UV0          mgl32.Vec2
	UV1          mgl32.Vec2
	JointIndices [4]float32
	JointWeights [4]float32
}

// Triangle references three vertices in the owning model's vertex list.
type Triangle struct {
	Verts      [3]int32
	SurfaceID  int32
	MaterialID int32
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// Extend grows the bounds to include p.
func (b *Bounds) Extend(p mgl32.Vec3) {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] {
			b.Min[i] = p[i]
		}
		if p[i] > b.Max[i] {
			b.Max[i] = p[i]
		}
	}
}

// Surface is a material-homogeneous group of triangles, exported as one
// independent draw unit.
type Surface struct {
	ID             int32
	Name           string
	SkeletonRootID int32
	Bounds         Bounds
}

// Node is one element of the model's transform hierarchy. Rotation is stored
// scalar-first (w + xyz); exporters that need x-y-z-w order re-express it at
// the boundary.
type Node struct {
	ID          int32
	Name        string
	ParentID    int32
	ChildIDs    []int32
	Translation mgl32.Vec3
	Rotation    mgl32.Quat
	Scale       mgl32.Vec3
	SurfaceID   int32
}

// TextureUsage names the fixed material texture slots.
type TextureUsage int32

const (
	TextureAmbient TextureUsage = iota
	TextureDiffuse
	TextureNormal
	TextureSpecular
	TextureShininess
	TextureEmissive
	TextureReflection
	TextureOcclusion
	TextureRoughness
	TextureMetallic

	TextureUsageCount
)

var textureUsageNames = [TextureUsageCount]string{
	"Ambient", "Diffuse", "Normal", "Specular", "Shininess",
	"Emissive", "Reflection", "Occlusion", "Roughness", "Metallic",
}

// String returns the slot's semantic name as used in material documents.
func (u TextureUsage) String() string {
	if u < 0 || u >= TextureUsageCount {
		return "Unknown"
	}
	return textureUsageNames[u]
}

// MaterialKind selects the render pass a material is drawn in.
type MaterialKind int32

const (
	MaterialOpaque MaterialKind = iota
	MaterialTransparent
	MaterialSkinnedOpaque
	MaterialSkinnedTransparent
)

// Material is a named set of texture slot references. A slot holding NoID is
// unset.
type Material struct {
	Name     string
	Kind     MaterialKind
	Textures [TextureUsageCount]int32
}

// Texture references an external texture asset by file name.
type Texture struct {
	Name     string
	FileName string
}

// Model is the complete decoded scene graph. One attribute mask covers every
// vertex; the node set forms a tree rooted at RootNodeID.
type Model struct {
	Name       string
	Attributes AttributeMask
	Vertices   []Vertex
	Triangles  []Triangle
	Surfaces   []Surface
	Materials  []Material
	Textures   []Texture
	Nodes      []Node
	RootNodeID int32
}

// NodeByID returns the node with the given id, or nil.
func (m *Model) NodeByID(id int32) *Node {
	for i := range m.Nodes {
		if m.Nodes[i].ID == id {
			return &m.Nodes[i]
		}
	}
	return nil
}

// SurfaceByID returns the surface with the given id, or nil.
func (m *Model) SurfaceByID(id int32) *Surface {
	for i := range m.Surfaces {
		if m.Surfaces[i].ID == id {
			return &m.Surfaces[i]
		}
	}
	return nil
}

// SurfaceMaterial returns the material id of the first triangle owned by the
// surface, or NoID when the surface has no triangles. Surfaces are
// material-homogeneous, so the first triangle decides.
func (m *Model) SurfaceMaterial(surfaceID int32) int32 {
	for i := range m.Triangles {
		if m.Triangles[i].SurfaceID == surfaceID {
			return m.Triangles[i].MaterialID
		}
	}
	return NoID
}
