package testrun

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"evalgo.org/tsuite/internal/paths"
)

// EncodePayload serializes the build table for the remote handler's command
// line: JSON, then standard base64.
func EncodePayload(dirs paths.Table) (string, error) {
	data, err := json.Marshal(dirs)
	if err != nil {
		return "", fmt.Errorf("encoding payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodePayload is the inverse of EncodePayload.
func DecodePayload(s string) (paths.Table, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	var dirs paths.Table
	if err := json.Unmarshal(data, &dirs); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	return dirs, nil
}
