package cache

import (
	"context"
	"errors"
	"fmt"

	"examprep/internal/storage"
)

// Backend names accepted by New.
const (
	BackendLocal      = "local"
	BackendMemory     = "memory"
	BackendRedis      = "redis"
	BackendSQLite     = storage.TypeSQLite
	BackendPostgreSQL = storage.TypePostgreSQL
	BackendMongoDB    = storage.TypeMongoDB
)

// Config selects and configures the KV backend.
type Config struct {
	Backend  string
	LocalDir string
	Redis    RedisConfig
	Storage  storage.Config
}

// Result holds the initialized KV and the storage connection behind it.
// The caller is responsible for calling Close() to release resources.
type Result struct {
	KV      KV
	Storage storage.Storage
}

// Close releases the KV and then the storage connection.
func (r *Result) Close() error {
	var errs []error
	if r.KV != nil {
		if err := r.KV.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kv close: %w", err))
		}
	}
	if r.Storage != nil {
		if err := r.Storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage close: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}
	return nil
}

// New creates the configured KV backend.
func New(ctx context.Context, cfg Config) (*Result, error) {
	switch cfg.Backend {
	case BackendLocal, "":
		dir := cfg.LocalDir
		if dir == "" {
			dir = "data/questions"
		}
		return &Result{KV: NewLocalKV(dir)}, nil

	case BackendMemory:
		return &Result{KV: NewMemoryKV()}, nil

	case BackendRedis:
		kv, err := NewRedisKV(cfg.Redis)
		if err != nil {
			return nil, err
		}
		return &Result{KV: kv}, nil

	case BackendSQLite, BackendPostgreSQL, BackendMongoDB:
		storageCfg := cfg.Storage
		storageCfg.Type = cfg.Backend
		store, err := storage.New(ctx, storageCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
		kv, err := NewWithStorage(ctx, store)
		if err != nil {
			store.Close()
			return nil, err
		}
		return &Result{KV: kv, Storage: store}, nil

	default:
		return nil, fmt.Errorf("unknown cache backend: %s (valid: local, memory, redis, sqlite, postgresql, mongodb)", cfg.Backend)
	}
}

// NewWithStorage creates a KV on an existing storage connection.
// The caller keeps ownership of store.
func NewWithStorage(ctx context.Context, store storage.Storage) (KV, error) {
	switch store.Type() {
	case storage.TypeSQLite:
		return NewSQLiteKV(store.SQLiteDB())
	case storage.TypePostgreSQL:
		return NewPostgreSQLKV(ctx, store.PostgreSQLPool())
	case storage.TypeMongoDB:
		return NewMongoDBKV(store.MongoDatabase())
	default:
		return nil, fmt.Errorf("unknown storage type: %s", store.Type())
	}
}
