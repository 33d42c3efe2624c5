package mesh

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Faultbox/meshpack/pkg/model"
)

// Packed mesh file layout (little-endian):
//
//	magic "CMSH", version u32
//	attribute mask u32, submesh count u32
//	index buffer size u32, index buffer offset u32
//	vertex buffer size u32, vertex buffer offset u32
//	per submesh: name [40]byte, bounds min/max 6×f32,
//	             base vertex u32, first index u32, index count u32
//	0xCC padding to 4-byte alignment
//	combined index buffer (u32 per index, rebased by base vertex)
//	0xCC padding to 4-byte alignment
//	combined vertex buffer (mask-enabled fields only, f32 components)
const (
	MeshMagic   = "CMSH"
	MeshVersion = 1

	submeshNameLen    = 40
	fileHeaderSize    = 32
	submeshHeaderSize = submeshNameLen + 6*4 + 3*4

	padByte = 0xCC
)

// Format errors.
var (
	ErrSubmeshIndexRange = errors.New("submesh index out of local vertex range")
	ErrInvalidMeshMagic  = errors.New("invalid mesh magic: expected 'CMSH'")
	ErrUnsupportedMesh   = errors.New("unsupported mesh version")
	ErrTruncatedMesh     = errors.New("truncated mesh data")
)

func align4(n uint32) uint32 {
	return (n + 3) &^ 3
}

// Write serializes the submeshes into the packed mesh layout. Every recorded
// size and offset equals the bytes actually emitted for that section.
func Write(w io.Writer, attrs model.AttributeMask, subs []Submesh) error {
	stride := attrs.VertexSize()

	var totalIndices, totalVerts uint32
	for i := range subs {
		sub := &subs[i]
		for j, idx := range sub.Indices {
			if int(idx) >= len(sub.Vertices) {
				return fmt.Errorf("%w: submesh %q indices[%d] = %d (have %d vertices)",
					ErrSubmeshIndexRange, sub.Name, j, idx, len(sub.Vertices))
			}
		}
		totalIndices += uint32(len(sub.Indices))
		totalVerts += uint32(len(sub.Vertices))
	}

	headerSize := uint32(fileHeaderSize + submeshHeaderSize*len(subs))
	ibSize := totalIndices * 4
	ibOffset := align4(headerSize)
	vbSize := totalVerts * stride
	vbOffset := ibOffset + align4(ibSize)

	buf := bytes.NewBuffer(make([]byte, 0, vbOffset+vbSize))
	buf.WriteString(MeshMagic)
	for _, v := range []uint32{
		MeshVersion, uint32(attrs), uint32(len(subs)),
		ibSize, ibOffset, vbSize, vbOffset,
	} {
		binary.Write(buf, binary.LittleEndian, v)
	}

	for i := range subs {
		sub := &subs[i]
		var name [submeshNameLen]byte
		copy(name[:], sub.Name)
		buf.Write(name[:])
		binary.Write(buf, binary.LittleEndian, [6]float32{
			sub.Bounds.Min[0], sub.Bounds.Min[1], sub.Bounds.Min[2],
			sub.Bounds.Max[0], sub.Bounds.Max[1], sub.Bounds.Max[2],
		})
		binary.Write(buf, binary.LittleEndian, [3]uint32{
			sub.BaseVertex, sub.FirstIndex, uint32(len(sub.Indices)),
		})
	}

	padTo(buf, ibOffset)
	for i := range subs {
		sub := &subs[i]
		for _, idx := range sub.Indices {
			binary.Write(buf, binary.LittleEndian, idx+sub.BaseVertex)
		}
	}

	padTo(buf, vbOffset)
	for i := range subs {
		for j := range subs[i].Vertices {
			writeVertex(buf, &subs[i].Vertices[j], attrs)
		}
	}

	if uint32(buf.Len()) != vbOffset+vbSize {
		return fmt.Errorf("mesh layout mismatch: wrote %d bytes, header promises %d",
			buf.Len(), vbOffset+vbSize)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteFile writes the packed mesh to path. A failure to create the file is
// returned as-is; a later write failure leaves the partial file in place.
func WriteFile(path string, attrs model.AttributeMask, subs []Submesh) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating mesh file: %w", err)
	}
	defer f.Close()

	if err := Write(f, attrs, subs); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func padTo(buf *bytes.Buffer, offset uint32) {
	for uint32(buf.Len()) < offset {
		buf.WriteByte(padByte)
	}
}

// writeVertex emits the mask-enabled fields in fixed order. Color drops its
// alpha channel: the format stores three channels only.
func writeVertex(buf *bytes.Buffer, v *model.Vertex, attrs model.AttributeMask) {
	le := binary.LittleEndian
	if attrs.Has(model.AttrPosition) {
		binary.Write(buf, le, [3]float32(v.Position))
	}
	if attrs.Has(model.AttrNormal) {
		binary.Write(buf, le, [3]float32(v.Normal))
	}
	if attrs.Has(model.AttrBinormal) {
		binary.Write(buf, le, [3]float32(v.Binormal))
	}
	if attrs.Has(model.AttrColor) {
		binary.Write(buf, le, [3]float32{v.Color[0], v.Color[1], v.Color[2]})
	}
	if attrs.Has(model.AttrUV0) {
		binary.Write(buf, le, [2]float32(v.UV0))
	}
	if attrs.Has(model.AttrUV1) {
		binary.Write(buf, le, [2]float32(v.UV1))
	}
	if attrs.Has(model.AttrJointIndices) {
		binary.Write(buf, le, v.JointIndices)
	}
	if attrs.Has(model.AttrJointWeights) {
		binary.Write(buf, le, v.JointWeights)
	}
}
