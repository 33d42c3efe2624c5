package model

import (
	"errors"
	"fmt"
)

// Validation errors.
var (
	ErrNoRootNode       = errors.New("model has no resolvable root node")
	ErrRootHasParent    = errors.New("root node has a parent")
	ErrDanglingParent   = errors.New("node references a missing parent")
	ErrDanglingChild    = errors.New("node references a missing child")
	ErrNodeCycle        = errors.New("node hierarchy contains a cycle")
	ErrUnreachableNode  = errors.New("node not reachable from the root")
	ErrDanglingSurface  = errors.New("reference to a missing surface")
	ErrDanglingMaterial = errors.New("reference to a missing material")
	ErrDanglingTexture  = errors.New("material references a missing texture")
	ErrDanglingSkeleton = errors.New("surface references a missing skeleton root")
	ErrVertexOutOfRange = errors.New("triangle vertex index out of range")
	ErrEmptySurface     = errors.New("surface owns no triangles")
)

// Validate fail-fast checks the model before export: the node set must form
// a single tree, every cross reference must resolve, triangle indices must be
// in range and no surface may be degenerate. The ingestion collaborator is
// not trusted to have produced a well-formed graph.
func Validate(m *Model) error {
	if err := validateNodes(m); err != nil {
		return err
	}
	if err := validateGeometry(m); err != nil {
		return err
	}
	return validateMaterials(m)
}

func validateNodes(m *Model) error {
	root := m.NodeByID(m.RootNodeID)
	if root == nil {
		return fmt.Errorf("%w: id %d", ErrNoRootNode, m.RootNodeID)
	}
	if root.ParentID != NoID {
		return fmt.Errorf("%w: root %q has parent %d", ErrRootHasParent, root.Name, root.ParentID)
	}

	for i := range m.Nodes {
		n := &m.Nodes[i]
		if n.ParentID != NoID && m.NodeByID(n.ParentID) == nil {
			return fmt.Errorf("%w: node %q parent %d", ErrDanglingParent, n.Name, n.ParentID)
		}
		if n.SurfaceID != NoID && m.SurfaceByID(n.SurfaceID) == nil {
			return fmt.Errorf("%w: node %q surface %d", ErrDanglingSurface, n.Name, n.SurfaceID)
		}
	}

	// Walk from the root with an explicit stack and a visited set instead of
	// unguarded recursion: the tree shape is exactly what is being checked.
	visited := make(map[int32]bool, len(m.Nodes))
	stack := []int32{m.RootNodeID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			return fmt.Errorf("%w: node %d visited twice", ErrNodeCycle, id)
		}
		visited[id] = true

		n := m.NodeByID(id)
		for _, child := range n.ChildIDs {
			c := m.NodeByID(child)
			if c == nil {
				return fmt.Errorf("%w: node %q child %d", ErrDanglingChild, n.Name, child)
			}
			if c.ParentID != id {
				return fmt.Errorf("%w: node %q claims child %q whose parent is %d",
					ErrNodeCycle, n.Name, c.Name, c.ParentID)
			}
			stack = append(stack, child)
		}
	}

	for i := range m.Nodes {
		if !visited[m.Nodes[i].ID] {
			return fmt.Errorf("%w: node %q (%d)", ErrUnreachableNode, m.Nodes[i].Name, m.Nodes[i].ID)
		}
	}
	return nil
}

func validateGeometry(m *Model) error {
	vertCount := int32(len(m.Vertices))
	triPerSurface := make(map[int32]int, len(m.Surfaces))

	for i := range m.Triangles {
		t := &m.Triangles[i]
		for _, v := range t.Verts {
			if v < 0 || v >= vertCount {
				return fmt.Errorf("%w: triangle %d index %d (have %d vertices)",
					ErrVertexOutOfRange, i, v, vertCount)
			}
		}
		if m.SurfaceByID(t.SurfaceID) == nil {
			return fmt.Errorf("%w: triangle %d surface %d", ErrDanglingSurface, i, t.SurfaceID)
		}
		if t.MaterialID != NoID && int(t.MaterialID) >= len(m.Materials) {
			return fmt.Errorf("%w: triangle %d material %d", ErrDanglingMaterial, i, t.MaterialID)
		}
		triPerSurface[t.SurfaceID]++
	}

	for i := range m.Surfaces {
		s := &m.Surfaces[i]
		if s.SkeletonRootID != NoID && m.NodeByID(s.SkeletonRootID) == nil {
			return fmt.Errorf("%w: surface %q node %d", ErrDanglingSkeleton, s.Name, s.SkeletonRootID)
		}
		// A zero-triangle surface would produce a submesh whose bounds never
		// leave the reduction sentinel. Reject it here instead of deciding at
		// write time what infinite bounds should mean.
		if triPerSurface[s.ID] == 0 {
			return fmt.Errorf("%w: surface %q (%d)", ErrEmptySurface, s.Name, s.ID)
		}
	}
	return nil
}

func validateMaterials(m *Model) error {
	for i := range m.Materials {
		mat := &m.Materials[i]
		for slot, tex := range mat.Textures {
			if tex == NoID {
				continue
			}
			if int(tex) >= len(m.Textures) || tex < 0 {
				return fmt.Errorf("%w: material %q slot %s texture %d",
					ErrDanglingTexture, mat.Name, TextureUsage(slot), tex)
			}
		}
	}
	return nil
}
