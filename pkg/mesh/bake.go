package mesh

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/meshpack/pkg/model"
)

// Baking errors.
var (
	ErrDanglingBakeNode = errors.New("world-space bake walked into a missing node")
	ErrBakeCycle        = errors.New("world-space bake walked into a parent cycle")
)

// AccumulatedTransform composes the transform chain from the given node up
// to the tree root: acc = I, then for each node in root-ward order
// acc = acc * T * R * S. A NoID start yields the identity.
func AccumulatedTransform(m *model.Model, nodeID int32) (mgl32.Mat4, error) {
	acc := mgl32.Ident4()
	visited := make(map[int32]bool)
	for id := nodeID; id != model.NoID; {
		if visited[id] {
			return acc, fmt.Errorf("%w: node %d", ErrBakeCycle, id)
		}
		visited[id] = true

		n := m.NodeByID(id)
		if n == nil {
			return acc, fmt.Errorf("%w: node %d", ErrDanglingBakeNode, id)
		}
		local := mgl32.Translate3D(n.Translation[0], n.Translation[1], n.Translation[2]).
			Mul4(n.Rotation.Mat4()).
			Mul4(mgl32.Scale3D(n.Scale[0], n.Scale[1], n.Scale[2]))
		acc = acc.Mul4(local)
		id = n.ParentID
	}
	return acc, nil
}

// BakeWorldSpace pre-multiplies the submesh's vertex data by the accumulated
// transform of its skeleton root chain, so the exported mesh no longer
// depends on runtime node placement. Positions are transformed as points.
// Normals and binormals get the same matrix applied linearly (w=0), not its
// inverse-transpose: the format's consumers expect exactly this, and it is
// only correct under uniform scale. Do not change it silently.
func BakeWorldSpace(sub *Submesh, m *model.Model) error {
	mat, err := AccumulatedTransform(m, sub.SkeletonRootID)
	if err != nil {
		return fmt.Errorf("baking %q: %w", sub.Name, err)
	}

	attrs := m.Attributes
	for i := range sub.Vertices {
		v := &sub.Vertices[i]
		if attrs.Has(model.AttrPosition) {
			v.Position = mat.Mul4x1(v.Position.Vec4(1)).Vec3()
		}
		if attrs.Has(model.AttrNormal) {
			v.Normal = mat.Mul4x1(v.Normal.Vec4(0)).Vec3()
		}
		if attrs.Has(model.AttrBinormal) {
			v.Binormal = mat.Mul4x1(v.Binormal.Vec4(0)).Vec3()
		}
	}
	sub.Bounds = boundsOf(sub.Vertices)
	return nil
}
