package core

import (
	"context"

	"worldbuilder/pkg/domain"
)

// overridePatch maps vertex indices to explicit override states for one
// layer. A nil entry means "no override recorded at this index", which is how
// undo distinguishes deleting an override from writing an all-default one.
type overridePatch map[uint32]*domain.TerrainEntry

func (p overridePatch) clone() overridePatch {
	cp := make(overridePatch, len(p))
	for idx, entry := range p {
		if entry == nil {
			cp[idx] = nil
			continue
		}
		e := entry.Clone()
		cp[idx] = &e
	}
	return cp
}

// snapshot records the layer's current override at idx, once.
func (p overridePatch) snapshot(layer *LayerItem, idx uint32) {
	if _, done := p[idx]; done {
		return
	}
	if cur, ok := layer.Overrides[idx]; ok {
		e := cur.Clone()
		p[idx] = &e
	} else {
		p[idx] = nil
	}
}

// brushVertices returns the vertex indices within radius of the center,
// clipped to the map. Radius zero selects the center vertex alone.
func brushVertices(info TerrainInfo, cx, cy, radius uint32) []uint32 {
	var out []uint32
	r := int64(radius)
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy > r*r {
				continue
			}
			x, y := int64(cx)+dx, int64(cy)+dy
			if !info.Contains(x, y) {
				continue
			}
			out = append(out, info.VertexIndex(uint32(x), uint32(y)))
		}
	}
	return out
}

// lineVertices walks a Bresenham line between two vertices, inclusive.
func lineVertices(info TerrainInfo, x1, y1, x2, y2 uint32) []uint32 {
	var out []uint32
	x, y := int64(x1), int64(y1)
	ex, ey := int64(x2), int64(y2)
	dx := abs64(ex - x)
	dy := -abs64(ey - y)
	sx, sy := int64(1), int64(1)
	if x > ex {
		sx = -1
	}
	if y > ey {
		sy = -1
	}
	errAcc := dx + dy
	for {
		if info.Contains(x, y) {
			out = append(out, info.VertexIndex(uint32(x), uint32(y)))
		}
		if x == ex && y == ey {
			break
		}
		e2 := 2 * errAcc
		if e2 >= dy {
			errAcc += dy
			x += sx
		}
		if e2 <= dx {
			errAcc += dx
			y += sy
		}
	}
	return out
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func sameByte(a, b *uint8) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// PaintTerrainCommand writes a texture override for every vertex under a
// circular brush into the target layer, snapshotting the touched overrides
// for undo on first apply.
type PaintTerrainCommand struct {
	M       CommandMeta   `json:"meta"`
	LayerID string        `json:"layer_id"`
	CenterX uint32        `json:"center_x"`
	CenterY uint32        `json:"center_y"`
	Radius  uint32        `json:"radius"`
	Texture uint8         `json:"texture"`
	Prev    overridePatch `json:"prev,omitempty"`
}

func (c *PaintTerrainCommand) Meta() *CommandMeta { return &c.M }

func (c *PaintTerrainCommand) Kind() CommandKind { return KindPaintTerrain }

func (c *PaintTerrainCommand) Apply(ctx context.Context, env *Env, tx domain.Tx) error {
	return applyToDocument(ctx, env, tx, c.M, "paint terrain", func(doc *domain.LandscapeDocument) (mutation, error) {
		layer, err := doc.FindLayer(c.LayerID)
		if err != nil {
			return mutation{}, err
		}
		indices := brushVertices(doc.Info, c.CenterX, c.CenterY, c.Radius)
		capture := c.Prev == nil
		if capture {
			c.Prev = make(overridePatch, len(indices))
		}
		for _, idx := range indices {
			if capture {
				c.Prev.snapshot(layer, idx)
			}
			entry := layer.Overrides[idx].Clone()
			entry.Type = domain.Byte(c.Texture)
			layer.Overrides[idx] = entry
		}
		return mutation{affected: indices}, nil
	})
}

func (c *PaintTerrainCommand) Inverse() (Command, error) {
	if c.Prev == nil {
		return nil, domain.ArgumentError{Msg: "paint has not applied; previous overrides unknown"}
	}
	return &SetOverridesCommand{M: c.M.derived(), LayerID: c.LayerID, Entries: c.Prev.clone()}, nil
}

// DrawRoadLineCommand writes road bits along a line of vertices into the
// target layer.
type DrawRoadLineCommand struct {
	M       CommandMeta   `json:"meta"`
	LayerID string        `json:"layer_id"`
	X1      uint32        `json:"x1"`
	Y1      uint32        `json:"y1"`
	X2      uint32        `json:"x2"`
	Y2      uint32        `json:"y2"`
	Road    uint8         `json:"road"`
	Prev    overridePatch `json:"prev,omitempty"`
}

func (c *DrawRoadLineCommand) Meta() *CommandMeta { return &c.M }

func (c *DrawRoadLineCommand) Kind() CommandKind { return KindDrawRoadLine }

func (c *DrawRoadLineCommand) Apply(ctx context.Context, env *Env, tx domain.Tx) error {
	return applyToDocument(ctx, env, tx, c.M, "draw road line", func(doc *domain.LandscapeDocument) (mutation, error) {
		layer, err := doc.FindLayer(c.LayerID)
		if err != nil {
			return mutation{}, err
		}
		indices := lineVertices(doc.Info, c.X1, c.Y1, c.X2, c.Y2)
		capture := c.Prev == nil
		if capture {
			c.Prev = make(overridePatch, len(indices))
		}
		for _, idx := range indices {
			if capture {
				c.Prev.snapshot(layer, idx)
			}
			entry := layer.Overrides[idx].Clone()
			entry.Road = domain.Byte(c.Road)
			layer.Overrides[idx] = entry
		}
		return mutation{affected: indices}, nil
	})
}

func (c *DrawRoadLineCommand) Inverse() (Command, error) {
	if c.Prev == nil {
		return nil, domain.ArgumentError{Msg: "road line has not applied; previous overrides unknown"}
	}
	return &SetOverridesCommand{M: c.M.derived(), LayerID: c.LayerID, Entries: c.Prev.clone()}, nil
}

// SetRoadBitCommand writes road bits at a single vertex.
type SetRoadBitCommand struct {
	M       CommandMeta   `json:"meta"`
	LayerID string        `json:"layer_id"`
	X       uint32        `json:"x"`
	Y       uint32        `json:"y"`
	Road    uint8         `json:"road"`
	Prev    overridePatch `json:"prev,omitempty"`
}

func (c *SetRoadBitCommand) Meta() *CommandMeta { return &c.M }

func (c *SetRoadBitCommand) Kind() CommandKind { return KindSetRoadBit }

func (c *SetRoadBitCommand) Apply(ctx context.Context, env *Env, tx domain.Tx) error {
	return applyToDocument(ctx, env, tx, c.M, "set road bit", func(doc *domain.LandscapeDocument) (mutation, error) {
		layer, err := doc.FindLayer(c.LayerID)
		if err != nil {
			return mutation{}, err
		}
		if !doc.Info.Contains(int64(c.X), int64(c.Y)) {
			return mutation{}, domain.ArgumentError{Msg: "vertex outside map bounds"}
		}
		idx := doc.Info.VertexIndex(c.X, c.Y)
		if c.Prev == nil {
			c.Prev = make(overridePatch, 1)
			c.Prev.snapshot(layer, idx)
		}
		entry := layer.Overrides[idx].Clone()
		entry.Road = domain.Byte(c.Road)
		layer.Overrides[idx] = entry
		return mutation{affected: []uint32{idx}}, nil
	})
}

func (c *SetRoadBitCommand) Inverse() (Command, error) {
	if c.Prev == nil {
		return nil, domain.ArgumentError{Msg: "road bit has not applied; previous override unknown"}
	}
	return &SetOverridesCommand{M: c.M.derived(), LayerID: c.LayerID, Entries: c.Prev.clone()}, nil
}

// BucketFillCommand replaces the texture of every vertex matching the seed
// vertex's resolved texture: flood-filled over 4-connected neighbors when
// contiguous, or across the whole map otherwise. An optional scenery id is
// written to the same vertex set.
type BucketFillCommand struct {
	M          CommandMeta   `json:"meta"`
	LayerID    string        `json:"layer_id"`
	StartX     uint32        `json:"start_x"`
	StartY     uint32        `json:"start_y"`
	Texture    uint8         `json:"texture"`
	Scenery    *uint8        `json:"scenery,omitempty"`
	Contiguous bool          `json:"contiguous"`
	Prev       overridePatch `json:"prev,omitempty"`
}

func (c *BucketFillCommand) Meta() *CommandMeta { return &c.M }

func (c *BucketFillCommand) Kind() CommandKind { return KindBucketFill }

func (c *BucketFillCommand) Apply(ctx context.Context, env *Env, tx domain.Tx) error {
	return applyToDocument(ctx, env, tx, c.M, "bucket fill", func(doc *domain.LandscapeDocument) (mutation, error) {
		layer, err := doc.FindLayer(c.LayerID)
		if err != nil {
			return mutation{}, err
		}
		if !doc.Info.Contains(int64(c.StartX), int64(c.StartY)) {
			return mutation{}, domain.ArgumentError{Msg: "fill start outside map bounds"}
		}
		seed := doc.Info.VertexIndex(c.StartX, c.StartY)
		seedTexture := doc.TerrainCache[seed].Type
		var indices []uint32
		if c.Contiguous {
			indices = floodFill(doc, seed, seedTexture)
		} else {
			for idx := uint32(0); idx < doc.Info.VertexCount(); idx++ {
				if sameByte(doc.TerrainCache[idx].Type, seedTexture) {
					indices = append(indices, idx)
				}
			}
		}
		capture := c.Prev == nil
		if capture {
			c.Prev = make(overridePatch, len(indices))
		}
		for _, idx := range indices {
			if capture {
				c.Prev.snapshot(layer, idx)
			}
			entry := layer.Overrides[idx].Clone()
			entry.Type = domain.Byte(c.Texture)
			if c.Scenery != nil {
				entry.Scenery = domain.Byte(*c.Scenery)
			}
			layer.Overrides[idx] = entry
		}
		return mutation{affected: indices}, nil
	})
}

// floodFill runs a breadth-first fill over 4-connected neighbors whose
// resolved texture matches the seed's. The explicit work queue keeps maps of
// tens of thousands of vertices off the call stack.
func floodFill(doc *LandscapeDocument, seed uint32, match *uint8) []uint32 {
	visited := make(map[uint32]struct{})
	queue := []uint32{seed}
	visited[seed] = struct{}{}
	var out []uint32
	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		if !sameByte(doc.TerrainCache[idx].Type, match) {
			continue
		}
		out = append(out, idx)
		x, y := doc.Info.VertexCoords(idx)
		neighbors := [4][2]int64{
			{int64(x) - 1, int64(y)},
			{int64(x) + 1, int64(y)},
			{int64(x), int64(y) - 1},
			{int64(x), int64(y) + 1},
		}
		for _, n := range neighbors {
			if !doc.Info.Contains(n[0], n[1]) {
				continue
			}
			nIdx := doc.Info.VertexIndex(uint32(n[0]), uint32(n[1]))
			if _, seen := visited[nIdx]; seen {
				continue
			}
			visited[nIdx] = struct{}{}
			queue = append(queue, nIdx)
		}
	}
	return out
}

func (c *BucketFillCommand) Inverse() (Command, error) {
	if c.Prev == nil {
		return nil, domain.ArgumentError{Msg: "fill has not applied; previous overrides unknown"}
	}
	return &SetOverridesCommand{M: c.M.derived(), LayerID: c.LayerID, Entries: c.Prev.clone()}, nil
}

// SetOverridesCommand writes explicit override states into a layer: a non-nil
// entry replaces the override wholesale, a nil entry removes it. It is the
// shared inverse of the paint, line, road, and fill commands, and inverts to
// another SetOverridesCommand, so redo chains never lose information.
type SetOverridesCommand struct {
	M       CommandMeta   `json:"meta"`
	LayerID string        `json:"layer_id"`
	Entries overridePatch `json:"entries"`
	Prev    overridePatch `json:"prev,omitempty"`
}

func (c *SetOverridesCommand) Meta() *CommandMeta { return &c.M }

func (c *SetOverridesCommand) Kind() CommandKind { return KindSetOverrides }

func (c *SetOverridesCommand) Apply(ctx context.Context, env *Env, tx domain.Tx) error {
	return applyToDocument(ctx, env, tx, c.M, "set overrides", func(doc *domain.LandscapeDocument) (mutation, error) {
		layer, err := doc.FindLayer(c.LayerID)
		if err != nil {
			return mutation{}, err
		}
		capture := c.Prev == nil
		if capture {
			c.Prev = make(overridePatch, len(c.Entries))
		}
		affected := make([]uint32, 0, len(c.Entries))
		for idx, entry := range c.Entries {
			if capture {
				c.Prev.snapshot(layer, idx)
			}
			if entry == nil {
				delete(layer.Overrides, idx)
			} else {
				layer.Overrides[idx] = entry.Clone()
			}
			affected = append(affected, idx)
		}
		return mutation{affected: affected}, nil
	})
}

func (c *SetOverridesCommand) Inverse() (Command, error) {
	if c.Prev == nil {
		return nil, domain.ArgumentError{Msg: "override write has not applied; previous overrides unknown"}
	}
	return &SetOverridesCommand{M: c.M.derived(), LayerID: c.LayerID, Entries: c.Prev.clone()}, nil
}
