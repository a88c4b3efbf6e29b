//go:build integration
// +build integration

package report

import (
	"context"
	"os"
	"testing"
	"time"

	evetesting "eve.evalgo.org/containers/testing"
	"github.com/stretchr/testify/require"

	"evalgo.org/tsuite/models"
)

func sampleResults() []models.HostResults {
	return []models.HostResults{{
		Host: "c1",
		Results: &models.ClientResults{Tests: []models.TestResult{{
			Name:    "io_basic.py",
			Setup:   models.PhaseResult{Pass: true},
			Operate: models.PhaseResult{Pass: true, Elapsed: 1.25},
			Cleanup: models.PhaseResult{Pass: true},
		}}},
	}}
}

// exercise publishes two runs and checks the run ids advance.
func exercise(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	first, err := Publish(ctx, store, "integration", sampleResults())
	require.NoError(t, err)

	second, err := Publish(ctx, store, "integration", sampleResults())
	require.NoError(t, err)
	require.Equal(t, first.RunID+1, second.RunID)

	latest, err := store.LatestRunID(ctx)
	require.NoError(t, err)
	require.Equal(t, second.RunID, latest)
}

// TestCouchStoreIntegration runs against a CouchDB container.
func TestCouchStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()

	couchURL, cleanup, err := evetesting.SetupCouchDB(ctx, t, nil)
	require.NoError(t, err, "Failed to start CouchDB container")
	defer cleanup()

	store, err := NewCouchStore(CouchConfig{
		URL:      couchURL,
		Database: "tsuite_test",
		Username: "admin",
		Password: "password",
	})
	require.NoError(t, err)
	defer store.Close()

	exercise(t, store)
}

// TestMongoStoreIntegration needs TS_TEST_MONGODB_URI pointing at a server.
func TestMongoStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	uri := os.Getenv("TS_TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("TS_TEST_MONGODB_URI not set")
	}

	store, err := NewMongoStore(context.Background(), MongoConfig{
		URI:        uri,
		Database:   "tsuite_test",
		Collection: "tsets_" + time.Now().Format("20060102150405"),
	})
	require.NoError(t, err)
	defer store.Close()

	exercise(t, store)
}
