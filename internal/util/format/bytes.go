package format

import "strconv"

// HumanizeBytes converts a byte count into a human-readable string (e.g., "1.5 MB").
func HumanizeBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	// Use a fixed buffer to avoid allocation
	var buf [20]byte
	frac := float64(b) / float64(div)
	s := strconv.AppendFloat(buf[:0], frac, 'f', 1, 64)
	suffix := []string{"KB", "MB", "GB", "TB"}[exp]
	return string(s) + " " + suffix
}

// Percent renders processed/total as a percentage string clamped to the
// 0%..100% range, e.g. Percent(200, 500) == "40.0%".
func Percent(processed, total int) string {
	if total <= 0 {
		return "0.0%"
	}
	p := float64(processed) / float64(total) * 100
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	var buf [8]byte
	return string(strconv.AppendFloat(buf[:0], p, 'f', 1, 64)) + "%"
}