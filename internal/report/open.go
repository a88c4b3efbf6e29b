package report

import (
	"context"
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendCouchDB = "couchdb"
	BackendMongoDB = "mongodb"
)

// Options select and configure a backend.
type Options struct {
	Backend string
	CouchDB CouchConfig
	MongoDB MongoConfig
}

// Open connects to the configured backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendCouchDB:
		return NewCouchStore(opts.CouchDB)
	case BackendMongoDB:
		return NewMongoStore(ctx, opts.MongoDB)
	default:
		return nil, fmt.Errorf("unknown report backend %q", opts.Backend)
	}
}
