// Package scene emits the hierarchical XML documents consumed by the engine:
// a scene description of the node tree with draw references, and one material
// description per material. Documents are assembled as in-memory trees first
// and serialized in one step.
package scene

import (
	"encoding/xml"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/Faultbox/meshpack/pkg/model"
)

// Scene export errors.
var (
	ErrUnresolvedMesh = errors.New("no mesh reference for surface")
	ErrSceneCycle     = errors.New("node tree revisited a node")
	ErrMissingNode    = errors.New("node tree references a missing node")
)

// LOD-group node pattern: the group's name carries the tag, its children are
// identity-transform leaves named with an ordered LOD suffix.
const (
	lodGroupTag = "_LODGroup"
	maxLODs     = 8
	identityEps = 1e-4
)

// MeshRef locates one surface inside a written mesh asset.
type MeshRef struct {
	File    string
	Submesh int
}

// Refs resolves surface ids to written artifacts. Both tables are built
// before traversal starts.
type Refs struct {
	Mesh     map[int32]MeshRef
	Material map[int32]string
}

type sceneDoc struct {
	XMLName xml.Name     `xml:"Scene"`
	Nodes   []*sceneNode `xml:"Node"`
}

type sceneNode struct {
	Name        string       `xml:"name,attr"`
	Translation string       `xml:"translation,attr"`
	Rotation    string       `xml:"rotation,attr"`
	Scale       string       `xml:"scale,attr"`
	Draws       []sceneDraw  `xml:"Draw"`
	Children    []*sceneNode `xml:"Node"`
}

type sceneDraw struct {
	Mesh     string `xml:"mesh,attr"`
	Submesh  int    `xml:"submesh,attr"`
	Material string `xml:"material,attr,omitempty"`
	LOD      *int   `xml:"lod,attr,omitempty"`
}

// ExportScene writes the scene description for the model's node tree,
// starting at the root node.
func ExportScene(path string, m *model.Model, refs Refs) error {
	doc, err := buildScene(m, refs)
	if err != nil {
		return err
	}
	return writeXML(path, doc)
}

func buildScene(m *model.Model, refs Refs) (*sceneDoc, error) {
	b := &sceneBuilder{m: m, refs: refs, visited: make(map[int32]bool)}
	root, err := b.node(m.RootNodeID)
	if err != nil {
		return nil, err
	}
	return &sceneDoc{Nodes: []*sceneNode{root}}, nil
}

type sceneBuilder struct {
	m       *model.Model
	refs    Refs
	visited map[int32]bool
}

func (b *sceneBuilder) node(id int32) (*sceneNode, error) {
	if b.visited[id] {
		return nil, fmt.Errorf("%w: node %d", ErrSceneCycle, id)
	}
	b.visited[id] = true

	n := b.m.NodeByID(id)
	if n == nil {
		return nil, fmt.Errorf("%w: node %d", ErrMissingNode, id)
	}

	out := &sceneNode{
		Name:        n.Name,
		Translation: formatVec3(n.Translation[0], n.Translation[1], n.Translation[2]),
		// Internal storage is scalar-first; the document wants x y z w.
		Rotation: formatVec4(n.Rotation.V[0], n.Rotation.V[1], n.Rotation.V[2], n.Rotation.W),
		Scale:    formatVec3(n.Scale[0], n.Scale[1], n.Scale[2]),
	}

	if n.SurfaceID != model.NoID {
		draw, err := b.draw(n.SurfaceID, nil)
		if err != nil {
			return nil, err
		}
		out.Draws = append(out.Draws, draw)
	}

	if b.isLODGroup(n) {
		// Flatten one hierarchy level: tagged sibling draws instead of
		// nested child nodes.
		for _, childID := range n.ChildIDs {
			child := b.m.NodeByID(childID)
			if child.SurfaceID == model.NoID {
				continue
			}
			draw, err := b.draw(child.SurfaceID, lodIndex(child.Name))
			if err != nil {
				return nil, err
			}
			out.Draws = append(out.Draws, draw)
		}
		return out, nil
	}

	for _, childID := range n.ChildIDs {
		child, err := b.node(childID)
		if err != nil {
			return nil, err
		}
		out.Children = append(out.Children, child)
	}
	return out, nil
}

func (b *sceneBuilder) draw(surfaceID int32, lod *int) (sceneDraw, error) {
	ref, ok := b.refs.Mesh[surfaceID]
	if !ok {
		return sceneDraw{}, fmt.Errorf("%w: surface %d", ErrUnresolvedMesh, surfaceID)
	}
	return sceneDraw{
		Mesh:     ref.File,
		Submesh:  ref.Submesh,
		Material: b.refs.Material[surfaceID],
		LOD:      lod,
	}, nil
}

// isLODGroup reports whether the node matches the LOD-group pattern: tagged
// name, at least one child, and every child a leaf sitting at an identity
// local transform.
func (b *sceneBuilder) isLODGroup(n *model.Node) bool {
	if !strings.Contains(n.Name, lodGroupTag) || len(n.ChildIDs) == 0 {
		return false
	}
	for _, childID := range n.ChildIDs {
		c := b.m.NodeByID(childID)
		if c == nil || len(c.ChildIDs) > 0 || !isIdentityTransform(c) {
			return false
		}
	}
	return true
}

func isIdentityTransform(n *model.Node) bool {
	near := func(v, want float32) bool {
		return math.Abs(float64(v-want)) <= identityEps
	}
	return near(n.Translation[0], 0) && near(n.Translation[1], 0) && near(n.Translation[2], 0) &&
		near(n.Scale[0], 1) && near(n.Scale[1], 1) && near(n.Scale[2], 1) &&
		near(n.Rotation.V[0], 0) && near(n.Rotation.V[1], 0) && near(n.Rotation.V[2], 0) &&
		near(n.Rotation.W, 1)
}

// lodIndex matches the name against the ordered suffixes _LOD0 … _LOD7;
// first match wins, no match leaves the draw untagged.
func lodIndex(name string) *int {
	for i := 0; i < maxLODs; i++ {
		if strings.HasSuffix(name, fmt.Sprintf("_LOD%d", i)) {
			idx := i
			return &idx
		}
	}
	return nil
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}

func formatVec3(x, y, z float32) string {
	return formatFloat(x) + " " + formatFloat(y) + " " + formatFloat(z)
}

func formatVec4(x, y, z, w float32) string {
	return formatVec3(x, y, z) + " " + formatFloat(w)
}

// writeXML serializes a document to path. The file is closed on every path;
// a partial file from a failed write is left in place for the caller to deal
// with.
func writeXML(path string, doc any) error {
	data, err := xml.MarshalIndent(doc, "", "\t")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating document: %w", err)
	}
	defer f.Close()

	if _, err := f.Write([]byte(xml.Header)); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
