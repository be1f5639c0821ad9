package core

import (
	"context"

	"worldbuilder/pkg/domain"
)

// AddStaticObjectCommand places a new static object on the landscape.
type AddStaticObjectCommand struct {
	M      CommandMeta         `json:"meta"`
	Object domain.StaticObject `json:"object"`
}

func (c *AddStaticObjectCommand) Meta() *CommandMeta { return &c.M }

func (c *AddStaticObjectCommand) Kind() CommandKind { return KindAddStaticObject }

func (c *AddStaticObjectCommand) Apply(ctx context.Context, env *Env, tx domain.Tx) error {
	return applyToDocument(ctx, env, tx, c.M, "add static object", func(doc *domain.LandscapeDocument) (mutation, error) {
		if c.Object.ID == "" {
			return mutation{}, domain.ArgumentError{Msg: "static object requires an id"}
		}
		if _, exists := doc.StaticObjects[c.Object.ID]; exists {
			return mutation{}, domain.ConflictError{Entity: "static object", ID: c.Object.ID}
		}
		doc.StaticObjects[c.Object.ID] = c.Object
		return mutation{landblocks: []uint32{c.Object.Landblock}}, nil
	})
}

func (c *AddStaticObjectCommand) Inverse() (Command, error) {
	prev := c.Object
	return &DeleteStaticObjectCommand{M: c.M.derived(), ObjectID: c.Object.ID, Prev: &prev}, nil
}

// UpdateStaticObjectCommand replaces a static object's state, snapshotting
// the previous state the first time it applies.
type UpdateStaticObjectCommand struct {
	M        CommandMeta          `json:"meta"`
	ObjectID string               `json:"object_id"`
	Next     domain.StaticObject  `json:"next"`
	Prev     *domain.StaticObject `json:"prev,omitempty"`
}

func (c *UpdateStaticObjectCommand) Meta() *CommandMeta { return &c.M }

func (c *UpdateStaticObjectCommand) Kind() CommandKind { return KindUpdateStaticObject }

func (c *UpdateStaticObjectCommand) Apply(ctx context.Context, env *Env, tx domain.Tx) error {
	return applyToDocument(ctx, env, tx, c.M, "update static object", func(doc *domain.LandscapeDocument) (mutation, error) {
		current, ok := doc.StaticObjects[c.ObjectID]
		if !ok {
			return mutation{}, domain.NotFoundError{Entity: "static object", ID: c.ObjectID}
		}
		if c.Prev == nil {
			prev := current
			c.Prev = &prev
		}
		next := c.Next
		next.ID = c.ObjectID
		doc.StaticObjects[c.ObjectID] = next
		blocks := []uint32{current.Landblock}
		if next.Landblock != current.Landblock {
			blocks = append(blocks, next.Landblock)
		}
		return mutation{landblocks: blocks}, nil
	})
}

func (c *UpdateStaticObjectCommand) Inverse() (Command, error) {
	if c.Prev == nil {
		return nil, domain.ArgumentError{Msg: "update has not applied; previous object state unknown"}
	}
	return &UpdateStaticObjectCommand{M: c.M.derived(), ObjectID: c.ObjectID, Next: *c.Prev}, nil
}

// DeleteStaticObjectCommand removes a static object, snapshotting it for the
// inverse the first time it applies.
type DeleteStaticObjectCommand struct {
	M        CommandMeta          `json:"meta"`
	ObjectID string               `json:"object_id"`
	Prev     *domain.StaticObject `json:"prev,omitempty"`
}

func (c *DeleteStaticObjectCommand) Meta() *CommandMeta { return &c.M }

func (c *DeleteStaticObjectCommand) Kind() CommandKind { return KindDeleteStaticObject }

func (c *DeleteStaticObjectCommand) Apply(ctx context.Context, env *Env, tx domain.Tx) error {
	return applyToDocument(ctx, env, tx, c.M, "delete static object", func(doc *domain.LandscapeDocument) (mutation, error) {
		current, ok := doc.StaticObjects[c.ObjectID]
		if !ok {
			return mutation{}, domain.NotFoundError{Entity: "static object", ID: c.ObjectID}
		}
		if c.Prev == nil {
			prev := current
			c.Prev = &prev
		}
		delete(doc.StaticObjects, c.ObjectID)
		return mutation{landblocks: []uint32{current.Landblock}}, nil
	})
}

func (c *DeleteStaticObjectCommand) Inverse() (Command, error) {
	if c.Prev == nil {
		return nil, domain.ArgumentError{Msg: "delete has not applied; previous object state unknown"}
	}
	return &AddStaticObjectCommand{M: c.M.derived(), Object: *c.Prev}, nil
}
