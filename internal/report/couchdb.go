package report

import (
	"context"
	"fmt"

	"eve.evalgo.org/db"

	"evalgo.org/tsuite/models"
)

// CouchConfig locates the CouchDB database holding reports.
type CouchConfig struct {
	URL      string
	Database string
	Username string
	Password string
}

// CouchStore keeps reports as CouchDB documents.
type CouchStore struct {
	service *db.CouchDBService
}

// NewCouchStore connects to CouchDB, creating the database if needed.
func NewCouchStore(cfg CouchConfig) (*CouchStore, error) {
	service, err := db.NewCouchDBServiceFromConfig(db.CouchDBConfig{
		URL:             cfg.URL,
		Database:        cfg.Database,
		Username:        cfg.Username,
		Password:        cfg.Password,
		CreateIfMissing: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create CouchDB service: %w", err)
	}

	index := db.Index{
		Name:   "reports-tsid",
		Fields: []string{"@type", "tsid"},
		Type:   "json",
	}
	// an existing index is not an error worth failing on
	_ = service.CreateIndex(index)

	return &CouchStore{service: service}, nil
}

// LatestRunID scans the stored reports for the highest run id.
func (s *CouchStore) LatestRunID(ctx context.Context) (int, error) {
	query := db.NewQueryBuilder().
		Where("@type", "$eq", DocType).
		Build()

	reports, err := db.FindTyped[models.RunReport](s.service, query)
	if err != nil {
		return 0, fmt.Errorf("failed to query reports: %w", err)
	}

	latest := 0
	for _, r := range reports {
		if r.RunID > latest {
			latest = r.RunID
		}
	}
	return latest, nil
}

// Save stores r, assigning an id when it has none.
func (s *CouchStore) Save(ctx context.Context, r *models.RunReport) error {
	if r.ID == "" {
		r.ID = models.GenerateID("tset")
	}
	if r.Type == "" {
		r.Type = DocType
	}

	resp, err := s.service.SaveGenericDocument(r)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	r.Rev = resp.Rev
	return nil
}

// Close releases the CouchDB connection.
func (s *CouchStore) Close() error {
	return s.service.Close()
}
