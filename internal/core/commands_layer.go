package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"worldbuilder/pkg/domain"
)

// CreateLandscapeDocumentCommand creates a new document together with its
// mandatory base layer. Document creation is not undoable; destroying the
// persisted record is an explicit administrative action outside the editor.
type CreateLandscapeDocumentCommand struct {
	M           CommandMeta        `json:"meta"`
	Name        string             `json:"name"`
	Info        domain.TerrainInfo `json:"info"`
	BaseLayerID string             `json:"base_layer_id"`
}

// NewCreateLandscapeDocumentCommand stamps a create-document command. The
// document id lives in the metadata; the base layer id is generated here so
// replays create identical structure.
func NewCreateLandscapeDocumentCommand(userID, name string, info domain.TerrainInfo) *CreateLandscapeDocumentCommand {
	return &CreateLandscapeDocumentCommand{
		M:           NewMeta(userID, uuid.NewString()),
		Name:        name,
		Info:        info,
		BaseLayerID: uuid.NewString(),
	}
}

func (c *CreateLandscapeDocumentCommand) Meta() *CommandMeta { return &c.M }

func (c *CreateLandscapeDocumentCommand) Kind() CommandKind { return KindCreateDocument }

func (c *CreateLandscapeDocumentCommand) Apply(ctx context.Context, env *Env, tx domain.Tx) error {
	return guard("create document", func() error {
		doc := domain.NewLandscapeDocument(c.M.DocumentID, c.Info)
		base := domain.NewLayer(c.BaseLayerID, c.Name)
		base.IsBase = true
		doc.Layers = []*domain.LayerItem{base}
		domain.Renumber(doc.Layers)
		rental, err := env.Cache.Create(ctx, doc, tx)
		if err != nil {
			return err
		}
		rental.Release()
		return nil
	})
}

func (c *CreateLandscapeDocumentCommand) Inverse() (Command, error) {
	return nil, domain.ArgumentError{Msg: "document creation cannot be undone"}
}

// CreateLayerCommand inserts a new empty layer under a parent group (or the
// root) at a given position.
type CreateLayerCommand struct {
	M        CommandMeta `json:"meta"`
	LayerID  string      `json:"layer_id"`
	Name     string      `json:"name"`
	ParentID string      `json:"parent_id,omitempty"`
	Index    int         `json:"index"`
}

// NewCreateLayerCommand stamps a create-layer command with a fresh layer id.
func NewCreateLayerCommand(meta CommandMeta, name, parentID string, index int) *CreateLayerCommand {
	return &CreateLayerCommand{M: meta, LayerID: uuid.NewString(), Name: name, ParentID: parentID, Index: index}
}

func (c *CreateLayerCommand) Meta() *CommandMeta { return &c.M }

func (c *CreateLayerCommand) Kind() CommandKind { return KindCreateLayer }

func (c *CreateLayerCommand) Apply(ctx context.Context, env *Env, tx domain.Tx) error {
	return applyToDocument(ctx, env, tx, c.M, "create layer", func(doc *domain.LandscapeDocument) (mutation, error) {
		if domain.FindItem(doc.Layers, c.LayerID) != nil {
			return mutation{}, domain.ConflictError{Entity: "layer", ID: c.LayerID}
		}
		layer := domain.NewLayer(c.LayerID, c.Name)
		if err := domain.InsertItem(&doc.Layers, layer, c.ParentID, c.Index); err != nil {
			return mutation{}, err
		}
		return mutation{}, nil
	})
}

func (c *CreateLayerCommand) Inverse() (Command, error) {
	return &DeleteLayerCommand{M: c.M.derived(), LayerID: c.LayerID}, nil
}

// CreateGroupCommand inserts a new empty group.
type CreateGroupCommand struct {
	M        CommandMeta `json:"meta"`
	GroupID  string      `json:"group_id"`
	Name     string      `json:"name"`
	ParentID string      `json:"parent_id,omitempty"`
	Index    int         `json:"index"`
}

// NewCreateGroupCommand stamps a create-group command with a fresh group id.
func NewCreateGroupCommand(meta CommandMeta, name, parentID string, index int) *CreateGroupCommand {
	return &CreateGroupCommand{M: meta, GroupID: uuid.NewString(), Name: name, ParentID: parentID, Index: index}
}

func (c *CreateGroupCommand) Meta() *CommandMeta { return &c.M }

func (c *CreateGroupCommand) Kind() CommandKind { return KindCreateGroup }

func (c *CreateGroupCommand) Apply(ctx context.Context, env *Env, tx domain.Tx) error {
	return applyToDocument(ctx, env, tx, c.M, "create group", func(doc *domain.LandscapeDocument) (mutation, error) {
		if domain.FindItem(doc.Layers, c.GroupID) != nil {
			return mutation{}, domain.ConflictError{Entity: "group", ID: c.GroupID}
		}
		group := domain.NewGroup(c.GroupID, c.Name)
		if err := domain.InsertItem(&doc.Layers, group, c.ParentID, c.Index); err != nil {
			return mutation{}, err
		}
		return mutation{}, nil
	})
}

func (c *CreateGroupCommand) Inverse() (Command, error) {
	return &DeleteLayerCommand{M: c.M.derived(), LayerID: c.GroupID}, nil
}

// RemovedItemSnapshot preserves a deleted subtree and where it was attached,
// captured lazily the first time the delete applies.
type RemovedItemSnapshot struct {
	Item     *domain.LayerItem `json:"item"`
	ParentID string            `json:"parent_id,omitempty"`
	Index    int               `json:"index"`
}

// DeleteLayerCommand removes a layer or group subtree. The base layer can
// never be deleted, directly or as part of a group.
type DeleteLayerCommand struct {
	M       CommandMeta          `json:"meta"`
	LayerID string               `json:"layer_id"`
	Removed *RemovedItemSnapshot `json:"removed,omitempty"`
}

func (c *DeleteLayerCommand) Meta() *CommandMeta { return &c.M }

func (c *DeleteLayerCommand) Kind() CommandKind { return KindDeleteLayer }

func (c *DeleteLayerCommand) Apply(ctx context.Context, env *Env, tx domain.Tx) error {
	return applyToDocument(ctx, env, tx, c.M, "delete layer", func(doc *domain.LandscapeDocument) (mutation, error) {
		item := domain.FindItem(doc.Layers, c.LayerID)
		if item == nil {
			return mutation{}, domain.NotFoundError{Entity: "layer", ID: c.LayerID}
		}
		if containsBase(item) {
			return mutation{}, domain.ArgumentError{Msg: "the base layer cannot be deleted"}
		}
		removed, parentID, index, ok := domain.RemoveItem(&doc.Layers, c.LayerID)
		if !ok {
			return mutation{}, domain.NotFoundError{Entity: "layer", ID: c.LayerID}
		}
		if c.Removed == nil {
			c.Removed = &RemovedItemSnapshot{Item: removed.Clone(), ParentID: parentID, Index: index}
		}
		return mutation{affected: removed.OverrideKeys()}, nil
	})
}

func (c *DeleteLayerCommand) Inverse() (Command, error) {
	if c.Removed == nil {
		return nil, domain.ArgumentError{Msg: "delete has not applied; no snapshot to restore"}
	}
	return &RestoreItemCommand{M: c.M.derived(), Item: c.Removed.Item.Clone(), ParentID: c.Removed.ParentID, Index: c.Removed.Index}, nil
}

// RestoreItemCommand reattaches a previously removed subtree at its original
// position.
type RestoreItemCommand struct {
	M        CommandMeta       `json:"meta"`
	Item     *domain.LayerItem `json:"item"`
	ParentID string            `json:"parent_id,omitempty"`
	Index    int               `json:"index"`
}

func (c *RestoreItemCommand) Meta() *CommandMeta { return &c.M }

func (c *RestoreItemCommand) Kind() CommandKind { return KindRestoreItem }

func (c *RestoreItemCommand) Apply(ctx context.Context, env *Env, tx domain.Tx) error {
	return applyToDocument(ctx, env, tx, c.M, "restore item", func(doc *domain.LandscapeDocument) (mutation, error) {
		if c.Item == nil {
			return mutation{}, domain.ArgumentError{Msg: "restore requires a snapshot item"}
		}
		if domain.FindItem(doc.Layers, c.Item.ID) != nil {
			return mutation{}, domain.ConflictError{Entity: "layer", ID: c.Item.ID}
		}
		restored := c.Item.Clone()
		if err := domain.InsertItem(&doc.Layers, restored, c.ParentID, c.Index); err != nil {
			return mutation{}, err
		}
		return mutation{affected: restored.OverrideKeys()}, nil
	})
}

func (c *RestoreItemCommand) Inverse() (Command, error) {
	if c.Item == nil {
		return nil, domain.ArgumentError{Msg: "restore requires a snapshot item"}
	}
	return &DeleteLayerCommand{M: c.M.derived(), LayerID: c.Item.ID}, nil
}

// ReorderLayerCommand moves an item to a new position within its parent.
type ReorderLayerCommand struct {
	M         CommandMeta `json:"meta"`
	ItemID    string      `json:"item_id"`
	NewIndex  int         `json:"new_index"`
	PrevIndex *int        `json:"prev_index,omitempty"`
}

func (c *ReorderLayerCommand) Meta() *CommandMeta { return &c.M }

func (c *ReorderLayerCommand) Kind() CommandKind { return KindReorderLayer }

func (c *ReorderLayerCommand) Apply(ctx context.Context, env *Env, tx domain.Tx) error {
	return applyToDocument(ctx, env, tx, c.M, "reorder layer", func(doc *domain.LandscapeDocument) (mutation, error) {
		item := domain.FindItem(doc.Layers, c.ItemID)
		if item == nil {
			return mutation{}, domain.NotFoundError{Entity: "layer", ID: c.ItemID}
		}
		if containsBase(item) {
			return mutation{}, domain.ArgumentError{Msg: "the base layer cannot be reordered"}
		}
		removed, parentID, index, ok := domain.RemoveItem(&doc.Layers, c.ItemID)
		if !ok {
			return mutation{}, domain.NotFoundError{Entity: "layer", ID: c.ItemID}
		}
		if c.PrevIndex == nil {
			prev := index
			c.PrevIndex = &prev
		}
		if err := domain.InsertItem(&doc.Layers, removed, parentID, c.NewIndex); err != nil {
			return mutation{}, err
		}
		return mutation{affected: removed.OverrideKeys()}, nil
	})
}

func (c *ReorderLayerCommand) Inverse() (Command, error) {
	if c.PrevIndex == nil {
		return nil, domain.ArgumentError{Msg: "reorder has not applied; previous index unknown"}
	}
	return &ReorderLayerCommand{M: c.M.derived(), ItemID: c.ItemID, NewIndex: *c.PrevIndex}, nil
}

// MoveLayerCommand reparents an item to a new group (or the root) at a given
// position. Moving a group into its own subtree is rejected.
type MoveLayerCommand struct {
	M            CommandMeta `json:"meta"`
	ItemID       string      `json:"item_id"`
	NewParentID  string      `json:"new_parent_id,omitempty"`
	NewIndex     int         `json:"new_index"`
	PrevParentID *string     `json:"prev_parent_id,omitempty"`
	PrevIndex    *int        `json:"prev_index,omitempty"`
}

func (c *MoveLayerCommand) Meta() *CommandMeta { return &c.M }

func (c *MoveLayerCommand) Kind() CommandKind { return KindMoveLayer }

func (c *MoveLayerCommand) Apply(ctx context.Context, env *Env, tx domain.Tx) error {
	return applyToDocument(ctx, env, tx, c.M, "move layer", func(doc *domain.LandscapeDocument) (mutation, error) {
		item := domain.FindItem(doc.Layers, c.ItemID)
		if item == nil {
			return mutation{}, domain.NotFoundError{Entity: "layer", ID: c.ItemID}
		}
		if containsBase(item) {
			return mutation{}, domain.ArgumentError{Msg: "the base layer cannot be moved"}
		}
		if c.NewParentID != "" && item.ContainsItem(c.NewParentID) {
			return mutation{}, domain.ArgumentError{Msg: fmt.Sprintf("cannot move %s into its own subtree", c.ItemID)}
		}
		removed, parentID, index, ok := domain.RemoveItem(&doc.Layers, c.ItemID)
		if !ok {
			return mutation{}, domain.NotFoundError{Entity: "layer", ID: c.ItemID}
		}
		if c.PrevParentID == nil {
			prevParent, prevIndex := parentID, index
			c.PrevParentID = &prevParent
			c.PrevIndex = &prevIndex
		}
		if err := domain.InsertItem(&doc.Layers, removed, c.NewParentID, c.NewIndex); err != nil {
			// reattach where it was so a failed move leaves the tree intact
			_ = domain.InsertItem(&doc.Layers, removed, parentID, index)
			return mutation{}, err
		}
		return mutation{affected: removed.OverrideKeys()}, nil
	})
}

func (c *MoveLayerCommand) Inverse() (Command, error) {
	if c.PrevParentID == nil || c.PrevIndex == nil {
		return nil, domain.ArgumentError{Msg: "move has not applied; previous position unknown"}
	}
	return &MoveLayerCommand{M: c.M.derived(), ItemID: c.ItemID, NewParentID: *c.PrevParentID, NewIndex: *c.PrevIndex}, nil
}

// RenameLayerCommand renames a layer or group.
type RenameLayerCommand struct {
	M        CommandMeta `json:"meta"`
	ItemID   string      `json:"item_id"`
	Name     string      `json:"name"`
	PrevName *string     `json:"prev_name,omitempty"`
}

func (c *RenameLayerCommand) Meta() *CommandMeta { return &c.M }

func (c *RenameLayerCommand) Kind() CommandKind { return KindRenameLayer }

func (c *RenameLayerCommand) Apply(ctx context.Context, env *Env, tx domain.Tx) error {
	return applyToDocument(ctx, env, tx, c.M, "rename layer", func(doc *domain.LandscapeDocument) (mutation, error) {
		item := domain.FindItem(doc.Layers, c.ItemID)
		if item == nil {
			return mutation{}, domain.NotFoundError{Entity: "layer", ID: c.ItemID}
		}
		if c.PrevName == nil {
			prev := item.Name
			c.PrevName = &prev
		}
		item.Name = c.Name
		return mutation{}, nil
	})
}

func (c *RenameLayerCommand) Inverse() (Command, error) {
	if c.PrevName == nil {
		return nil, domain.ArgumentError{Msg: "rename has not applied; previous name unknown"}
	}
	return &RenameLayerCommand{M: c.M.derived(), ItemID: c.ItemID, Name: *c.PrevName}, nil
}

// ToggleExportCommand sets whether an item participates in exports. Export
// can never be disabled on the base layer.
type ToggleExportCommand struct {
	M        CommandMeta `json:"meta"`
	ItemID   string      `json:"item_id"`
	Exported bool        `json:"exported"`
	Prev     *bool       `json:"prev,omitempty"`
}

func (c *ToggleExportCommand) Meta() *CommandMeta { return &c.M }

func (c *ToggleExportCommand) Kind() CommandKind { return KindToggleExport }

func (c *ToggleExportCommand) Apply(ctx context.Context, env *Env, tx domain.Tx) error {
	return applyToDocument(ctx, env, tx, c.M, "toggle export", func(doc *domain.LandscapeDocument) (mutation, error) {
		item := domain.FindItem(doc.Layers, c.ItemID)
		if item == nil {
			return mutation{}, domain.NotFoundError{Entity: "layer", ID: c.ItemID}
		}
		if item.IsBase && !c.Exported {
			return mutation{}, domain.ArgumentError{Msg: "the base layer cannot be excluded from export"}
		}
		if c.Prev == nil {
			prev := item.IsExported
			c.Prev = &prev
		}
		item.IsExported = c.Exported
		return mutation{}, nil
	})
}

func (c *ToggleExportCommand) Inverse() (Command, error) {
	if c.Prev == nil {
		return nil, domain.ArgumentError{Msg: "toggle has not applied; previous flag unknown"}
	}
	return &ToggleExportCommand{M: c.M.derived(), ItemID: c.ItemID, Exported: *c.Prev}, nil
}

// SetVisibilityCommand shows or hides an item. Hidden layers are skipped by
// the merge but keep their overrides.
type SetVisibilityCommand struct {
	M       CommandMeta `json:"meta"`
	ItemID  string      `json:"item_id"`
	Visible bool        `json:"visible"`
	Prev    *bool       `json:"prev,omitempty"`
}

func (c *SetVisibilityCommand) Meta() *CommandMeta { return &c.M }

func (c *SetVisibilityCommand) Kind() CommandKind { return KindSetVisibility }

func (c *SetVisibilityCommand) Apply(ctx context.Context, env *Env, tx domain.Tx) error {
	return applyToDocument(ctx, env, tx, c.M, "set visibility", func(doc *domain.LandscapeDocument) (mutation, error) {
		item := domain.FindItem(doc.Layers, c.ItemID)
		if item == nil {
			return mutation{}, domain.NotFoundError{Entity: "layer", ID: c.ItemID}
		}
		if c.Prev == nil {
			prev := item.IsVisible
			c.Prev = &prev
		}
		item.IsVisible = c.Visible
		return mutation{affected: item.OverrideKeys()}, nil
	})
}

func (c *SetVisibilityCommand) Inverse() (Command, error) {
	if c.Prev == nil {
		return nil, domain.ArgumentError{Msg: "visibility change has not applied; previous flag unknown"}
	}
	return &SetVisibilityCommand{M: c.M.derived(), ItemID: c.ItemID, Visible: *c.Prev}, nil
}

func containsBase(item *domain.LayerItem) bool {
	found := false
	item.Walk(func(it *domain.LayerItem) {
		if it.Kind == domain.KindLayer && it.IsBase {
			found = true
		}
	})
	return found
}
