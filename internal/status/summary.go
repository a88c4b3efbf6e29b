package status

import (
	"strconv"
	"strings"
)

// Summary holds the numbers parsed out of the common metric outputs.
// Fields whose command failed or printed something unexpected stay zero.
type Summary struct {
	Load1         float64 `json:"load1" yaml:"load1"`
	Load5         float64 `json:"load5" yaml:"load5"`
	Load15        float64 `json:"load15" yaml:"load15"`
	MemTotalKB    int64   `json:"memTotalKb" yaml:"memTotalKb"`
	MemFreeKB     int64   `json:"memFreeKb" yaml:"memFreeKb"`
	UptimeSeconds float64 `json:"uptimeSeconds" yaml:"uptimeSeconds"`
}

// MemUsedPercent returns the share of memory in use, or 0 when unknown.
func (s Summary) MemUsedPercent() float64 {
	if s.MemTotalKB <= 0 {
		return 0
	}
	return float64(s.MemTotalKB-s.MemFreeKB) / float64(s.MemTotalKB) * 100
}

// Summarize parses the outputs of CommonOps.
func Summarize(reports map[string]CommandResult) Summary {
	var s Summary

	if r, ok := reports["load"]; ok && r.Error == "" {
		fields := strings.Fields(r.Stdout)
		vals := []*float64{&s.Load1, &s.Load5, &s.Load15}
		for i := 0; i < len(fields) && i < len(vals); i++ {
			if v, err := strconv.ParseFloat(fields[i], 64); err == nil {
				*vals[i] = v
			}
		}
	}

	if r, ok := reports["mem_total"]; ok && r.Error == "" {
		s.MemTotalKB = parseMeminfoLine(r.Stdout, "MemTotal")
	}
	if r, ok := reports["mem_free"]; ok && r.Error == "" {
		s.MemFreeKB = parseMeminfoLine(r.Stdout, "MemFree")
	}

	if r, ok := reports["uptime"]; ok && r.Error == "" {
		if v, err := strconv.ParseFloat(strings.TrimSpace(r.Stdout), 64); err == nil {
			s.UptimeSeconds = v
		}
	}

	return s
}

// parseMeminfoLine reads "Key:   12345 kB" and returns the value in kB.
func parseMeminfoLine(line, key string) int64 {
	fields := strings.Fields(line)
	if len(fields) < 2 || strings.TrimSuffix(fields[0], ":") != key {
		return 0
	}
	v, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return v
}
