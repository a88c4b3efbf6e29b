package models

import "time"

// RunReport is the persisted record of one test-set run.
//
// The same document shape is stored by every report backend. CouchDB uses the
// `_id`/`_rev` pair, MongoDB keys on `tsid`.
type RunReport struct {
	// ID is the document identifier (maps to CouchDB _id)
	ID string `json:"@id,omitempty" bson:"-" couchdb:"_id"`

	// Rev is the CouchDB document revision
	Rev string `json:"_rev,omitempty" bson:"-" couchdb:"_rev"`

	// Type is the document type used to query reports back
	Type string `json:"@type" bson:"type" couchdb:"@type"`

	// RunID increases by one with every stored run
	RunID int `json:"tsid" bson:"tsid"`

	// Label is the display label of the run ("#<RunID>")
	Label string `json:"tset_name" bson:"tset_name"`

	// RunName is the configured test-set name
	RunName string `json:"run_name" bson:"run_name"`

	// TotalTests is the number of tests across every client
	TotalTests int `json:"total_tests" bson:"total_tests"`

	// FailedTests is the number of tests with at least one failed phase
	FailedTests int `json:"failed_tests" bson:"failed_tests"`

	// TotalTime is the sum of the operate phase durations in seconds
	TotalTime float64 `json:"total_time" bson:"total_time"`

	// Tests is the flattened list of per-test outcomes
	Tests []ReportedTest `json:"tests" bson:"tests"`

	// CreatedAt is when the report was assembled
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// ReportedTest is one flattened test outcome inside a RunReport.
type ReportedTest struct {
	TestName string  `json:"test_name" bson:"test_name"`
	Host     string  `json:"host" bson:"host"`
	Desc     string  `json:"desc" bson:"desc"`
	Elapsed  float64 `json:"elapsed" bson:"elapsed"`
	Pass     bool    `json:"pass" bson:"pass"`
}
