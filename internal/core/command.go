package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"worldbuilder/pkg/domain"
)

// CommandKind identifies one member of the closed command set.
type CommandKind string

const (
	KindCreateDocument     CommandKind = "create_document"
	KindCreateLayer        CommandKind = "create_layer"
	KindCreateGroup        CommandKind = "create_group"
	KindDeleteLayer        CommandKind = "delete_layer"
	KindRestoreItem        CommandKind = "restore_item"
	KindReorderLayer       CommandKind = "reorder_layer"
	KindMoveLayer          CommandKind = "move_layer"
	KindRenameLayer        CommandKind = "rename_layer"
	KindToggleExport       CommandKind = "toggle_export"
	KindSetVisibility      CommandKind = "set_visibility"
	KindAddStaticObject    CommandKind = "add_static_object"
	KindUpdateStaticObject CommandKind = "update_static_object"
	KindDeleteStaticObject CommandKind = "delete_static_object"
	KindPaintTerrain       CommandKind = "paint_terrain"
	KindDrawRoadLine       CommandKind = "draw_road_line"
	KindSetRoadBit         CommandKind = "set_road_bit"
	KindBucketFill         CommandKind = "bucket_fill"
	KindSetOverrides       CommandKind = "set_overrides"
)

// CommandMeta carries the identity every command shares: a unique id
// (regenerated on every replay so history entries stay distinct), the issuing
// user, the target document, and client/server timestamps.
type CommandMeta struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	DocumentID      string     `json:"document_id"`
	ClientTimestamp time.Time  `json:"client_timestamp"`
	ServerTimestamp *time.Time `json:"server_timestamp,omitempty"`
}

// NewMeta stamps fresh command metadata for the given user and document.
func NewMeta(userID, documentID string) CommandMeta {
	return CommandMeta{
		ID:              uuid.NewString(),
		UserID:          userID,
		DocumentID:      documentID,
		ClientTimestamp: time.Now().UTC(),
	}
}

// RegenerateID assigns a new unique id, as required before any replay.
func (m *CommandMeta) RegenerateID() {
	m.ID = uuid.NewString()
}

// derived returns metadata for an inverse or follow-up command issued by the
// same user against the same document.
func (m CommandMeta) derived() CommandMeta {
	return NewMeta(m.UserID, m.DocumentID)
}

// Env bundles the collaborators a command may touch while applying.
type Env struct {
	Cache    *DocumentCache
	Notifier domain.LandblockNotifier
}

// Command is one serializable mutation: a forward operation plus enough
// payload to derive its inverse. Several commands capture a previous-state
// snapshot lazily on first apply; once captured it travels with the
// serialized payload so replays never re-read prior state.
type Command interface {
	Meta() *CommandMeta
	Kind() CommandKind
	Apply(ctx context.Context, env *Env, tx domain.Tx) error
	// Inverse derives the undo command. It fails with ArgumentError if the
	// command has not been applied yet and its snapshot is still missing.
	Inverse() (Command, error)
}

// mutation is what a command's body reports back to the shared apply path.
type mutation struct {
	// affected lists vertex indices whose resolved terrain must be
	// recalculated and whose landblocks are notified.
	affected []uint32
	// landblocks adds blocks to notify beyond those derived from affected,
	// for object edits that never touch terrain.
	landblocks []uint32
}

// guard converts panics escaping fn into FailureError so no command apply
// path ever throws past its boundary.
func guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.FailureError{Op: op, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return fn()
}

// applyToDocument is the shared structural-command tail: take the document's
// apply lock, rent the target document, run the mutation, recalculate
// affected vertices, bump the version, persist through the transaction, and
// notify changed landblocks. The lock serializes concurrent writers of one
// document; commands against distinct documents do not contend.
func applyToDocument(ctx context.Context, env *Env, tx domain.Tx, meta CommandMeta, op string, mutate func(doc *domain.LandscapeDocument) (mutation, error)) error {
	return guard(op, func() error {
		unlock := env.Cache.LockDocument(meta.DocumentID)
		defer unlock()

		rental, err := env.Cache.Rent(ctx, meta.DocumentID)
		if err != nil {
			return err
		}
		defer rental.Release()

		doc := rental.Document()
		mut, err := mutate(doc)
		if err != nil {
			return err
		}
		if len(mut.affected) > 0 {
			RecalculateTerrain(doc, mut.affected)
		}
		doc.BumpVersion()
		if err := env.Cache.Persist(ctx, rental, tx); err != nil {
			return err
		}
		if env.Notifier != nil {
			blocks := doc.Info.Landblocks(mut.affected)
			blocks = append(blocks, mut.landblocks...)
			if len(blocks) > 0 {
				env.Notifier.NotifyLandblocks(doc.ID, blocks)
			}
		}
		return nil
	})
}

type commandEnvelope struct {
	Kind    CommandKind     `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeCommand serializes a command to its wire envelope.
func EncodeCommand(cmd Command) ([]byte, error) {
	if cmd == nil {
		return nil, domain.ArgumentError{Msg: "cannot encode nil command"}
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode %s command: %w", cmd.Kind(), err)
	}
	return json.Marshal(commandEnvelope{Kind: cmd.Kind(), Payload: payload})
}

// DecodeCommand reconstructs a command from its wire envelope. The kind set
// is closed; unknown kinds fail rather than round-trip opaquely.
func DecodeCommand(data []byte) (Command, error) {
	var env commandEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode command envelope: %w", err)
	}
	var cmd Command
	switch env.Kind {
	case KindCreateDocument:
		cmd = &CreateLandscapeDocumentCommand{}
	case KindCreateLayer:
		cmd = &CreateLayerCommand{}
	case KindCreateGroup:
		cmd = &CreateGroupCommand{}
	case KindDeleteLayer:
		cmd = &DeleteLayerCommand{}
	case KindRestoreItem:
		cmd = &RestoreItemCommand{}
	case KindReorderLayer:
		cmd = &ReorderLayerCommand{}
	case KindMoveLayer:
		cmd = &MoveLayerCommand{}
	case KindRenameLayer:
		cmd = &RenameLayerCommand{}
	case KindToggleExport:
		cmd = &ToggleExportCommand{}
	case KindSetVisibility:
		cmd = &SetVisibilityCommand{}
	case KindAddStaticObject:
		cmd = &AddStaticObjectCommand{}
	case KindUpdateStaticObject:
		cmd = &UpdateStaticObjectCommand{}
	case KindDeleteStaticObject:
		cmd = &DeleteStaticObjectCommand{}
	case KindPaintTerrain:
		cmd = &PaintTerrainCommand{}
	case KindDrawRoadLine:
		cmd = &DrawRoadLineCommand{}
	case KindSetRoadBit:
		cmd = &SetRoadBitCommand{}
	case KindBucketFill:
		cmd = &BucketFillCommand{}
	case KindSetOverrides:
		cmd = &SetOverridesCommand{}
	default:
		return nil, domain.ArgumentError{Msg: fmt.Sprintf("unknown command kind %q", env.Kind)}
	}
	if err := json.Unmarshal(env.Payload, cmd); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.Kind, err)
	}
	return cmd, nil
}
