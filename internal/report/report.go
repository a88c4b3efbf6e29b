// Package report turns collected test results into a persisted run record.
//
// Run ids are taken from the store: every published report gets the latest
// stored id plus one. Two backends are provided, CouchDB (via the eve db
// package) and MongoDB.
package report

import (
	"context"
	"fmt"
	"time"

	"evalgo.org/tsuite/models"
)

// DocType is the document type of stored run reports.
const DocType = "TestRunReport"

// DefaultDescription fills ReportedTest.Desc until the handler reports one.
const DefaultDescription = "generic description"

// Store persists run reports.
type Store interface {
	// LatestRunID returns the highest stored run id, or 0 when empty.
	LatestRunID(ctx context.Context) (int, error)

	// Save stores a report.
	Save(ctx context.Context, r *models.RunReport) error

	Close() error
}

// Build aggregates the results of every client into one report. A test
// passes when all three of its phases passed; its elapsed time is the
// operate phase.
func Build(runID int, runName string, results []models.HostResults) *models.RunReport {
	r := &models.RunReport{
		Type:      DocType,
		RunID:     runID,
		Label:     fmt.Sprintf("#%d", runID),
		RunName:   runName,
		Tests:     []models.ReportedTest{},
		CreatedAt: time.Now().UTC(),
	}

	for _, hr := range results {
		if hr.Results == nil {
			continue
		}
		for _, t := range hr.Results.Tests {
			rt := models.ReportedTest{
				TestName: t.Name,
				Host:     hr.Host,
				Desc:     DefaultDescription,
				Elapsed:  t.Operate.Elapsed,
				Pass:     t.Passed(),
			}
			r.TotalTests++
			if !rt.Pass {
				r.FailedTests++
			}
			r.TotalTime += rt.Elapsed
			r.Tests = append(r.Tests, rt)
		}
	}
	return r
}

// Publish builds the report under the next run id and saves it.
func Publish(ctx context.Context, store Store, runName string, results []models.HostResults) (*models.RunReport, error) {
	latest, err := store.LatestRunID(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading latest run id: %w", err)
	}

	r := Build(latest+1, runName, results)
	if err := store.Save(ctx, r); err != nil {
		return nil, fmt.Errorf("saving report %s: %w", r.Label, err)
	}
	return r, nil
}
