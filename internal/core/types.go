package core

import "worldbuilder/pkg/domain"

type (
	TerrainEntry      = domain.TerrainEntry
	TerrainInfo       = domain.TerrainInfo
	LayerItem         = domain.LayerItem
	StaticObject      = domain.StaticObject
	LandscapeDocument = domain.LandscapeDocument
	NotFoundError     = domain.NotFoundError
	ConflictError     = domain.ConflictError
	ArgumentError     = domain.ArgumentError
	DisposedError     = domain.DisposedError
	FailureError      = domain.FailureError
)

const (
	KindLayer = domain.KindLayer
	KindGroup = domain.KindGroup
)
