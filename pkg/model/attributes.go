package model

import "strings"

// AttributeMask is a bit set describing which vertex fields a model carries.
// The set is frozen: these are the only attributes the packed mesh format
// knows how to serialize.
type AttributeMask uint32

const (
	AttrPosition AttributeMask = 1 << iota
	AttrNormal
	AttrBinormal
	AttrColor
	AttrUV0
	AttrUV1
	AttrJointIndices
	AttrJointWeights
)

// attrWidths maps each attribute to its packed byte width. Position, normal,
// binormal and color are 3 floats (color alpha is dropped on write), UV sets
// are 2 floats, joint indices and weights are 4 floats each.
var attrWidths = []struct {
	attr  AttributeMask
	name  string
	width uint32
}{
	{AttrPosition, "position", 12},
	{AttrNormal, "normal", 12},
	{AttrBinormal, "binormal", 12},
	{AttrColor, "color", 12},
	{AttrUV0, "uv0", 8},
	{AttrUV1, "uv1", 8},
	{AttrJointIndices, "joint_indices", 16},
	{AttrJointWeights, "joint_weights", 16},
}

// Has returns true if every attribute in attrs is present in the mask.
func (m AttributeMask) Has(attrs AttributeMask) bool {
	return m&attrs == attrs
}

// VertexSize returns the packed per-vertex byte size for the mask: the sum
// of the widths of every enabled attribute.
func (m AttributeMask) VertexSize() uint32 {
	var size uint32
	for _, w := range attrWidths {
		if m&w.attr != 0 {
			size += w.width
		}
	}
	return size
}

// String returns a "position|normal|uv0" style description of the mask.
func (m AttributeMask) String() string {
	if m == 0 {
		return "none"
	}
	var parts []string
	for _, w := range attrWidths {
		if m&w.attr != 0 {
			parts = append(parts, w.name)
		}
	}
	return strings.Join(parts, "|")
}
