package domain

// TerrainEntry is the smallest unit of mutable terrain state recorded for a
// single grid vertex. Every field is optional: a nil field means "no override
// here", which is distinct from an override recorded as an explicit value.
// Entries are value types and are replaced wholesale on edit.
type TerrainEntry struct {
	Type    *uint8 `json:"type,omitempty"`
	Scenery *uint8 `json:"scenery,omitempty"`
	Road    *uint8 `json:"road,omitempty"`
	Height  *uint8 `json:"height,omitempty"`
}

// Byte returns a pointer to v, for building optional entry fields.
func Byte(v uint8) *uint8 { return &v }

// IsZero reports whether no field of the entry is set.
func (e TerrainEntry) IsZero() bool {
	return e.Type == nil && e.Scenery == nil && e.Road == nil && e.Height == nil
}

// Clone returns a deep copy of the entry so callers cannot alias its fields.
func (e TerrainEntry) Clone() TerrainEntry {
	cp := TerrainEntry{}
	if e.Type != nil {
		cp.Type = Byte(*e.Type)
	}
	if e.Scenery != nil {
		cp.Scenery = Byte(*e.Scenery)
	}
	if e.Road != nil {
		cp.Road = Byte(*e.Road)
	}
	if e.Height != nil {
		cp.Height = Byte(*e.Height)
	}
	return cp
}

// Overlay applies top over e field-wise: a non-nil field in top replaces the
// corresponding field of e, a nil field passes e's value through unchanged.
func (e TerrainEntry) Overlay(top TerrainEntry) TerrainEntry {
	out := e.Clone()
	if top.Type != nil {
		out.Type = Byte(*top.Type)
	}
	if top.Scenery != nil {
		out.Scenery = Byte(*top.Scenery)
	}
	if top.Road != nil {
		out.Road = Byte(*top.Road)
	}
	if top.Height != nil {
		out.Height = Byte(*top.Height)
	}
	return out
}

// Equal reports field-wise equality, treating nil and a set value as distinct.
func (e TerrainEntry) Equal(other TerrainEntry) bool {
	return byteEq(e.Type, other.Type) && byteEq(e.Scenery, other.Scenery) &&
		byteEq(e.Road, other.Road) && byteEq(e.Height, other.Height)
}

func byteEq(a, b *uint8) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// TerrainInfo is the read-only geometry descriptor for a landscape: map
// extents in vertices and the landblock stride used to group vertices into
// streamable blocks. Vertex indices are flat and row-major.
type TerrainInfo struct {
	MapWidth        uint32 `json:"map_width"`
	MapHeight       uint32 `json:"map_height"`
	LandblockStride uint32 `json:"landblock_stride"`
}

// VertexCount returns the total number of vertices on the map.
func (ti TerrainInfo) VertexCount() uint32 {
	return ti.MapWidth * ti.MapHeight
}

// VertexIndex converts grid coordinates to a flat row-major vertex index.
func (ti TerrainInfo) VertexIndex(x, y uint32) uint32 {
	return y*ti.MapWidth + x
}

// VertexCoords converts a flat vertex index back to grid coordinates.
func (ti TerrainInfo) VertexCoords(index uint32) (x, y uint32) {
	return index % ti.MapWidth, index / ti.MapWidth
}

// Contains reports whether the signed coordinates fall inside the map.
func (ti TerrainInfo) Contains(x, y int64) bool {
	return x >= 0 && y >= 0 && x < int64(ti.MapWidth) && y < int64(ti.MapHeight)
}

// LandblockID computes the id of the landblock containing the vertex. Blocks
// are numbered row-major over the landblock grid.
func (ti TerrainInfo) LandblockID(index uint32) uint32 {
	stride := ti.LandblockStride
	if stride == 0 {
		stride = 8
	}
	x, y := ti.VertexCoords(index)
	blocksPerRow := (ti.MapWidth + stride - 1) / stride
	return (y/stride)*blocksPerRow + x/stride
}

// Landblocks returns the sorted distinct landblock ids touched by the indices.
func (ti TerrainInfo) Landblocks(indices []uint32) []uint32 {
	seen := make(map[uint32]struct{}, len(indices))
	out := make([]uint32, 0, len(indices))
	for _, idx := range indices {
		id := ti.LandblockID(idx)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
