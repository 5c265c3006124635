package reader

// ParseSummary reads a summary payload as stored in a report. Numbers
// arrive as float64 after a JSON round trip and as int64 from direct
// writes; both are accepted. Missing fields read as zero.
func ParseSummary(payload map[string]any) SummaryView {
	if payload == nil {
		return SummaryView{}
	}
	return SummaryView{
		Removed:    int(toInt64(payload["removed"])),
		Skipped:    int(toInt64(payload["skipped"])),
		Failures:   int(toInt64(payload["failures"])),
		FreedBytes: max(toInt64(payload["freedBytes"]), 0),
		LogPath:    toString(payload["logPath"]),
	}
}

// toInt64 converts a value to int64, handling float64 from JSON and int64 from direct writes.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	case uint64:
		return int64(n)
	default:
		return 0
	}
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
