package mesh

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/meshpack/pkg/model"
)

// SubmeshInfo is one submesh header read back from a packed mesh file.
type SubmeshInfo struct {
	Name       string
	Bounds     model.Bounds
	BaseVertex uint32
	FirstIndex uint32
	IndexCount uint32
}

// Info is the parsed header of a packed mesh file.
type Info struct {
	Version    uint32
	Attributes model.AttributeMask
	Submeshes  []SubmeshInfo

	IndexBufferSize    uint32
	IndexBufferOffset  uint32
	VertexBufferSize   uint32
	VertexBufferOffset uint32
}

// VertexCount derives the combined vertex count from the buffer size and the
// attribute stride.
func (i *Info) VertexCount() uint32 {
	stride := i.Attributes.VertexSize()
	if stride == 0 {
		return 0
	}
	return i.VertexBufferSize / stride
}

// IndexCount derives the combined index count.
func (i *Info) IndexCount() uint32 {
	return i.IndexBufferSize / 4
}

// ReadInfo parses the headers of a packed mesh and verifies that the
// recorded offsets and sizes delimit ranges inside the data.
func ReadInfo(data []byte) (*Info, error) {
	if len(data) < fileHeaderSize {
		return nil, ErrTruncatedMesh
	}
	if string(data[:4]) != MeshMagic {
		return nil, ErrInvalidMeshMagic
	}

	r := bytes.NewReader(data[4:])
	var fields [7]uint32
	if err := binary.Read(r, binary.LittleEndian, &fields); err != nil {
		return nil, ErrTruncatedMesh
	}

	info := &Info{
		Version:            fields[0],
		Attributes:         model.AttributeMask(fields[1]),
		IndexBufferSize:    fields[3],
		IndexBufferOffset:  fields[4],
		VertexBufferSize:   fields[5],
		VertexBufferOffset: fields[6],
	}
	if info.Version != MeshVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedMesh, info.Version)
	}

	submeshCount := fields[2]
	if uint64(fileHeaderSize)+uint64(submeshCount)*submeshHeaderSize > uint64(len(data)) {
		return nil, fmt.Errorf("%w: %d submesh headers do not fit", ErrTruncatedMesh, submeshCount)
	}

	info.Submeshes = make([]SubmeshInfo, submeshCount)
	for i := range info.Submeshes {
		sub := &info.Submeshes[i]

		var name [submeshNameLen]byte
		if _, err := r.Read(name[:]); err != nil {
			return nil, ErrTruncatedMesh
		}
		sub.Name = cstring(name[:])

		var b [6]float32
		if err := binary.Read(r, binary.LittleEndian, &b); err != nil {
			return nil, ErrTruncatedMesh
		}
		sub.Bounds = model.Bounds{
			Min: mgl32.Vec3{b[0], b[1], b[2]},
			Max: mgl32.Vec3{b[3], b[4], b[5]},
		}

		var u [3]uint32
		if err := binary.Read(r, binary.LittleEndian, &u); err != nil {
			return nil, ErrTruncatedMesh
		}
		sub.BaseVertex, sub.FirstIndex, sub.IndexCount = u[0], u[1], u[2]
	}

	if uint64(info.IndexBufferOffset)+uint64(info.IndexBufferSize) > uint64(len(data)) {
		return nil, fmt.Errorf("%w: index buffer past end of data", ErrTruncatedMesh)
	}
	if uint64(info.VertexBufferOffset)+uint64(info.VertexBufferSize) > uint64(len(data)) {
		return nil, fmt.Errorf("%w: vertex buffer past end of data", ErrTruncatedMesh)
	}
	return info, nil
}

// ReadInfoFile parses the headers of a packed mesh file on disk.
func ReadInfoFile(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mesh file: %w", err)
	}
	return ReadInfo(data)
}

// cstring trims a fixed-width NUL-padded text field.
func cstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
