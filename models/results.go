package models

// PhaseResult is the outcome of one phase (setup, operate, cleanup) of a test.
type PhaseResult struct {
	// Pass is true when the phase completed without error
	Pass bool `json:"pass" yaml:"pass"`

	// Elapsed is the wall-clock time of the phase in seconds
	Elapsed float64 `json:"elapsed" yaml:"elapsed"`
}

// TestResult is the per-test record written by the remote handler.
type TestResult struct {
	Name    string      `json:"name" yaml:"name"`
	Setup   PhaseResult `json:"setup" yaml:"setup"`
	Operate PhaseResult `json:"operate" yaml:"operate"`
	Cleanup PhaseResult `json:"cleanup" yaml:"cleanup"`
}

// Passed reports whether every phase of the test passed.
func (t TestResult) Passed() bool {
	return t.Setup.Pass && t.Operate.Pass && t.Cleanup.Pass
}

// ClientResults is the content of the results artifact on one client.
type ClientResults struct {
	Tests []TestResult `json:"tests" yaml:"tests"`
}

// HostResults associates a client's results with the host they came from.
type HostResults struct {
	Host    string         `json:"host" yaml:"host"`
	Results *ClientResults `json:"results" yaml:"results"`
}
