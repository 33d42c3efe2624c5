// Package vcache reorders submesh vertex and index arrays to improve GPU
// vertex-shader cache reuse during rasterization. The pipeline treats the
// algorithm as opaque: anything satisfying Optimizer can be swapped in.
package vcache

import (
	"errors"
	"fmt"
	"math"

	"github.com/Faultbox/meshpack/pkg/model"
)

// Optimizer errors.
var (
	ErrIndexCount      = errors.New("index count is not a multiple of 3")
	ErrIndexOutOfRange = errors.New("index out of range")
)

// Optimizer reorders one submesh's vertex array and local 0-based index
// array. Implementations must return arrays of identical length, preserve
// triangle winding and vertex attribute content, and keep output indices
// local to the submesh.
type Optimizer interface {
	Optimize(verts []model.Vertex, indices []uint32) ([]model.Vertex, []uint32, error)
}

// Passthrough returns the input untouched (fresh copies). Used by tests and
// by exports that disable cache optimization.
type Passthrough struct{}

func (Passthrough) Optimize(verts []model.Vertex, indices []uint32) ([]model.Vertex, []uint32, error) {
	if err := checkInput(verts, indices); err != nil {
		return nil, nil, err
	}
	outVerts := make([]model.Vertex, len(verts))
	copy(outVerts, verts)
	outIndices := make([]uint32, len(indices))
	copy(outIndices, indices)
	return outVerts, outIndices, nil
}

// Forsyth implements Tom Forsyth's linear-speed vertex cache optimization:
// triangles are emitted greedily by a score combining simulated cache
// position and remaining valence, then vertices are remapped into first-use
// order.
type Forsyth struct{}

const (
	cacheSize = 32

	cacheDecayPower   = 1.5
	lastTriScore      = 0.75
	valenceBoostScale = 2.0
	valenceBoostPower = 0.5
)

type vertexState struct {
	cachePos   int32 // -1 when not in the simulated cache
	score      float32
	activeTris int32 // triangles not yet emitted that use this vertex
	triOffset  int32 // into the shared triangle-index arena
}

func vertexScore(v *vertexState) float32 {
	if v.activeTris == 0 {
		// No triangle needs this vertex anymore.
		return -1
	}
	var score float32
	switch {
	case v.cachePos < 0:
		// Not in cache; no bonus.
	case v.cachePos < 3:
		// Among the vertices of the last emitted triangle.
		score = lastTriScore
	default:
		scale := 1.0 / float64(cacheSize-3)
		score = float32(math.Pow(1.0-float64(v.cachePos-3)*scale, cacheDecayPower))
	}
	// Favor lonely vertices so small isolated fans are not stranded.
	score += valenceBoostScale * float32(math.Pow(float64(v.activeTris), -valenceBoostPower))
	return score
}

func (Forsyth) Optimize(verts []model.Vertex, indices []uint32) ([]model.Vertex, []uint32, error) {
	if err := checkInput(verts, indices); err != nil {
		return nil, nil, err
	}
	numTris := len(indices) / 3
	if numTris == 0 {
		return Passthrough{}.Optimize(verts, indices)
	}

	states := make([]vertexState, len(verts))
	for i := range indices {
		states[indices[i]].activeTris++
	}

	// Arena of per-vertex triangle lists.
	var offset int32
	for i := range states {
		states[i].cachePos = -1
		states[i].triOffset = offset
		offset += states[i].activeTris
		states[i].activeTris = 0
	}
	vertTris := make([]int32, offset)
	for t := 0; t < numTris; t++ {
		for c := 0; c < 3; c++ {
			s := &states[indices[t*3+c]]
			vertTris[s.triOffset+s.activeTris] = int32(t)
			s.activeTris++
		}
	}
	for i := range states {
		states[i].score = vertexScore(&states[i])
	}

	triScore := make([]float32, numTris)
	triEmitted := make([]bool, numTris)
	for t := 0; t < numTris; t++ {
		triScore[t] = states[indices[t*3]].score +
			states[indices[t*3+1]].score +
			states[indices[t*3+2]].score
	}

	// Simulated LRU cache, three entries of headroom for the incoming
	// triangle.
	cache := make([]int32, 0, cacheSize+3)
	order := make([]int32, 0, numTris)

	bestTri := int32(-1)
	bestScore := float32(math.Inf(-1))
	for t := 0; t < numTris; t++ {
		if triScore[t] > bestScore {
			bestScore = triScore[t]
			bestTri = int32(t)
		}
	}

	for len(order) < numTris {
		if bestTri < 0 {
			// Nothing scored near the cache; fall back to a full scan.
			bestScore = float32(math.Inf(-1))
			for t := 0; t < numTris; t++ {
				if !triEmitted[t] && triScore[t] > bestScore {
					bestScore = triScore[t]
					bestTri = int32(t)
				}
			}
		}

		tri := bestTri
		triEmitted[tri] = true
		order = append(order, tri)

		// Pull the triangle's vertices to the cache front, preserving the
		// relative order of everything else.
		for c := 0; c < 3; c++ {
			v := indices[tri*3+int32(c)]
			s := &states[v]

			// Drop this triangle from the vertex's active list.
			for j := int32(0); j < s.activeTris; j++ {
				if vertTris[s.triOffset+j] == tri {
					vertTris[s.triOffset+j] = vertTris[s.triOffset+s.activeTris-1]
					break
				}
			}
			s.activeTris--

			if s.cachePos >= 0 {
				cache = append(cache[:s.cachePos], cache[s.cachePos+1:]...)
				for _, cv := range cache {
					if states[cv].cachePos > s.cachePos {
						states[cv].cachePos--
					}
				}
			}
			cache = append([]int32{int32(v)}, cache...)
			for _, cv := range cache[1:] {
				states[cv].cachePos++
			}
			s.cachePos = 0
		}

		// Evict past the cache limit.
		for len(cache) > cacheSize {
			v := cache[len(cache)-1]
			cache = cache[:len(cache)-1]
			states[v].cachePos = -1
		}

		// Rescore cached vertices and their remaining triangles; the next
		// best triangle is almost always among them.
		bestTri = -1
		bestScore = float32(math.Inf(-1))
		for _, v := range cache {
			s := &states[v]
			old := s.score
			s.score = vertexScore(s)
			delta := s.score - old
			for j := int32(0); j < s.activeTris; j++ {
				t := vertTris[s.triOffset+j]
				triScore[t] += delta
				if !triEmitted[t] && triScore[t] > bestScore {
					bestScore = triScore[t]
					bestTri = t
				}
			}
		}
	}

	return remapFirstUse(verts, indices, order)
}

// remapFirstUse renumbers vertices in the order the emitted triangles first
// reference them, appending never-referenced vertices at the tail so the
// output arrays keep the input lengths.
func remapFirstUse(verts []model.Vertex, indices []uint32, order []int32) ([]model.Vertex, []uint32, error) {
	remap := make([]int32, len(verts))
	for i := range remap {
		remap[i] = -1
	}

	outVerts := make([]model.Vertex, 0, len(verts))
	outIndices := make([]uint32, 0, len(indices))
	for _, tri := range order {
		for c := int32(0); c < 3; c++ {
			v := indices[tri*3+c]
			if remap[v] < 0 {
				remap[v] = int32(len(outVerts))
				outVerts = append(outVerts, verts[v])
			}
			outIndices = append(outIndices, uint32(remap[v]))
		}
	}
	for v := range verts {
		if remap[v] < 0 {
			remap[v] = int32(len(outVerts))
			outVerts = append(outVerts, verts[v])
		}
	}
	return outVerts, outIndices, nil
}

func checkInput(verts []model.Vertex, indices []uint32) error {
	if len(indices)%3 != 0 {
		return fmt.Errorf("%w: %d", ErrIndexCount, len(indices))
	}
	for i, idx := range indices {
		if int(idx) >= len(verts) {
			return fmt.Errorf("%w: indices[%d] = %d (have %d vertices)",
				ErrIndexOutOfRange, i, idx, len(verts))
		}
	}
	return nil
}
