// Package mesh turns a validated model into packed binary mesh assets:
// splitting by surface, baking world-space transforms and serializing the
// combined little-endian buffers.
package mesh

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/meshpack/pkg/model"
)

// Splitting errors.
var (
	ErrUnknownSurface = errors.New("triangle references an unknown surface")
)

// Submesh is one self-contained draw unit: the vertices its triangles
// reference, re-indexed locally from 0, plus its position in the combined
// buffers of the packed mesh file.
type Submesh struct {
	Name           string
	SkeletonRootID int32
	MaterialID     int32

	Vertices []model.Vertex
	Indices  []uint32 // local, 0-based
	Bounds   model.Bounds

	// Offsets into the combined buffers, accumulated in submesh order.
	BaseVertex uint32
	FirstIndex uint32
}

// Split partitions the model's triangles by owning surface, preserving
// surface declaration order, and materializes each group as an independent
// submesh. Triangle order within a surface is preserved; vertices are
// numbered in first-reference order.
func Split(m *model.Model) ([]Submesh, error) {
	bySurface := make(map[int32][]int, len(m.Surfaces))
	for i := range m.Triangles {
		id := m.Triangles[i].SurfaceID
		bySurface[id] = append(bySurface[id], i)
	}
	known := make(map[int32]bool, len(m.Surfaces))
	for i := range m.Surfaces {
		known[m.Surfaces[i].ID] = true
	}
	for id := range bySurface {
		if !known[id] {
			return nil, fmt.Errorf("%w: surface %d", ErrUnknownSurface, id)
		}
	}

	subs := make([]Submesh, 0, len(m.Surfaces))
	var baseVertex, firstIndex uint32
	for i := range m.Surfaces {
		surf := &m.Surfaces[i]
		sub := Submesh{
			Name:           surf.Name,
			SkeletonRootID: surf.SkeletonRootID,
			MaterialID:     model.NoID,
			BaseVertex:     baseVertex,
			FirstIndex:     firstIndex,
		}

		remap := make(map[int32]uint32)
		for _, ti := range bySurface[surf.ID] {
			tri := &m.Triangles[ti]
			if sub.MaterialID == model.NoID {
				sub.MaterialID = tri.MaterialID
			}
			for _, v := range tri.Verts {
				local, ok := remap[v]
				if !ok {
					local = uint32(len(sub.Vertices))
					remap[v] = local
					sub.Vertices = append(sub.Vertices, m.Vertices[v])
				}
				sub.Indices = append(sub.Indices, local)
			}
		}

		sub.Bounds = boundsOf(sub.Vertices)
		subs = append(subs, sub)

		baseVertex += uint32(len(sub.Vertices))
		firstIndex += uint32(len(sub.Indices))
	}
	return subs, nil
}

// boundsOf reduces over all vertex positions, starting from the ±Inf
// sentinel. An empty vertex set collapses to zero bounds: infinities must
// never reach the binary asset (validation rejects empty surfaces upstream,
// this is the backstop for direct callers).
func boundsOf(verts []model.Vertex) model.Bounds {
	if len(verts) == 0 {
		return model.Bounds{}
	}
	inf := float32(math.Inf(1))
	b := model.Bounds{
		Min: mgl32.Vec3{inf, inf, inf},
		Max: mgl32.Vec3{-inf, -inf, -inf},
	}
	for i := range verts {
		b.Extend(verts[i].Position)
	}
	return b
}
