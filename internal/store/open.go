package store

import (
	"context"
	"fmt"

	"github.com/wcatz/dashboard-builder/internal/config"
)

// Open builds the store selected by cfg. The returned close function releases
// backend connections and is never nil.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	var (
		s       Store
		closeFn = noop
	)
	switch cfg.Backend {
	case "memory":
		s = NewMemory()
	case "file", "":
		f, err := NewFile(cfg.Path)
		if err != nil {
			return nil, noop, err
		}
		s = f
	case "mongo":
		m, err := ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
		if err != nil {
			return nil, noop, err
		}
		s, closeFn = m, m.Close
	default:
		return nil, noop, fmt.Errorf("unknown store backend '%s'", cfg.Backend)
	}

	if cfg.CacheSize > 0 {
		c, err := NewCached(s, cfg.CacheSize)
		if err != nil {
			closeFn(ctx)
			return nil, noop, err
		}
		s = c
	}
	return s, closeFn, nil
}
