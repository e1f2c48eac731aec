package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Backend names accepted by Open.
const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

// ErrNoSQL is returned by Handle.Migrate for backends without a SQL connection.
var ErrNoSQL = errors.New("backend has no direct SQL connection")

// Options selects and configures a backend.
type Options struct {
	Backend  string
	Supabase SupabaseConfig
	Postgres PostgresConfig

	MongoURI      string
	MongoDatabase string
}

// Handle is an opened backend.
type Handle struct {
	Store Store

	// SQL is set when the backend has a direct Postgres connection.
	SQL DBProvider

	closeFn func(ctx context.Context) error
}

// Close releases the backend's connections.
func (h *Handle) Close(ctx context.Context) error {
	if h.closeFn == nil {
		return nil
	}
	return h.closeFn(ctx)
}

// Migrate applies the schema over the direct SQL connection.
func (h *Handle) Migrate(ctx context.Context) error {
	if h.SQL == nil {
		return ErrNoSQL
	}
	return Migrate(ctx, h.SQL)
}

// Open connects to the configured backend. An empty backend means supabase.
func Open(ctx context.Context, opts Options) (*Handle, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendSupabase:
		client := NewSupabaseClient(opts.Supabase)
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		h := &Handle{
			Store:   client.Store(),
			closeFn: func(context.Context) error { return client.Close() },
		}
		if client.HasDirectDB() {
			h.SQL = client
		}
		return h, nil

	case BackendPostgres:
		client := NewPostgresClient(opts.Postgres)
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		return &Handle{
			Store:   NewSQLStore(client),
			SQL:     client,
			closeFn: func(context.Context) error { return client.Close() },
		}, nil

	case BackendMongo:
		if opts.MongoURI == "" {
			return nil, fmt.Errorf("mongo URI is required")
		}
		database := opts.MongoDatabase
		if database == "" {
			database = "stocknews"
		}
		store := NewMongoStore(opts.MongoURI, database)
		if err := store.Connect(ctx); err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		return &Handle{Store: store, closeFn: store.Close}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
