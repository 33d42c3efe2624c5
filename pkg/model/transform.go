package model

import "github.com/go-gl/mathgl/mgl32"

// UVTransform rewrites one texture coordinate pair.
type UVTransform func(mgl32.Vec2) mgl32.Vec2

// FlipU mirrors the U coordinate.
func FlipU(uv mgl32.Vec2) mgl32.Vec2 {
	return mgl32.Vec2{1.0 - uv[0], uv[1]}
}

// FlipV mirrors the V coordinate.
func FlipV(uv mgl32.Vec2) mgl32.Vec2 {
	return mgl32.Vec2{uv[0], 1.0 - uv[1]}
}

// TransformUVs applies the transforms, in order, to every UV set enabled by
// the model's attribute mask. It is an ingestion-stage operation: the model
// must not be mutated once export has started.
func (m *Model) TransformUVs(fns ...UVTransform) {
	if len(fns) == 0 {
		return
	}
	hasUV0 := m.Attributes.Has(AttrUV0)
	hasUV1 := m.Attributes.Has(AttrUV1)
	if !hasUV0 && !hasUV1 {
		return
	}
	for i := range m.Vertices {
		for _, fn := range fns {
			if hasUV0 {
				m.Vertices[i].UV0 = fn(m.Vertices[i].UV0)
			}
			if hasUV1 {
				m.Vertices[i].UV1 = fn(m.Vertices[i].UV1)
			}
		}
	}
}
