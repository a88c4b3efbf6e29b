// Package tsuite is a distributed test harness for SLASH2 clusters.
//
// # Overview
//
// tsuite reads an annotated slash.conf, creates a private build root on
// the harness host, pushes the rewritten configuration to every cluster
// member over SSH, runs a test set on the client hosts and collects the
// per-test results.
//
// The harness consists of these parts:
//   - Topology: parses slash.conf into clients, metadata servers and I/O nodes
//   - Fleet: fans SSH commands out to every member with per-host outcomes
//   - Test run: ships the test set and handler to each client and polls for results
//   - Report store: keeps numbered runs in CouchDB or MongoDB
//   - Status server: serves the topology and live host status over HTTP
//
// # Architecture
//
//	┌─────────────────┐
//	│   tsuite CLI    │
//	│    (Cobra)      │
//	└────────┬────────┘
//	         │
//	┌────────▼────────┐       ┌─────────────────┐
//	│     Suite       │──────►│  Status server  │
//	│ (setup, run)    │       │  (Echo REST)    │
//	└───┬─────────┬───┘       └─────────────────┘
//	    │         │
//	┌───▼───┐ ┌───▼──────────┐
//	│ Fleet │ │ Report store │
//	│ (SSH) │ │ CouchDB/Mongo│
//	└───────┘ └──────────────┘
//
// # Usage
//
// Check what a configuration describes without touching the cluster:
//
//	tsuite parse slash.conf -o json
//
// Prepare the cluster and run the configured test set:
//
//	tsuite run --config config.yaml --report
//
// Serve live status for an existing build root:
//
//	tsuite serve --base /tmp/tsuite/sltest.0
//
// # Configuration
//
// Configuration can be provided via:
//   - YAML file (config.yaml)
//   - Environment variables (TS_ prefix)
//   - .env file
//
// Example configuration:
//
//	slash2:
//	  conf: ./slash.conf
//	tests:
//	  tsetdir: ./tests
//	  tsetname: nightly
//	ssh:
//	  user: slash
//	report:
//	  enabled: true
//	  backend: couchdb
//
// # API Endpoints
//
//   - GET /health                  - Health check
//   - GET /api/v1/resources        - Parsed topology
//   - GET /api/v1/status           - Live status of every member
//   - GET /api/v1/status/:kind     - Live status of one kind (client, mds, ion)
//
// # Development
//
// Run tests:
//
//	go test ./...
//
// Run integration tests (requires Docker for CouchDB):
//
//	go test -v -tags=integration ./internal/report/...
//
// Build the binary:
//
//	go build -o tsuite ./cmd/tsuite
package tsuite
