package http

import (
	"github.com/Auphere/places/internal/adapters/postgres"
	"github.com/Auphere/places/internal/adapters/valkey"
	"github.com/Auphere/places/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Places *usecases.PlaceService
	Sync   *usecases.SyncService
	DB     *postgres.DB
	Cache  *valkey.Cache
}
