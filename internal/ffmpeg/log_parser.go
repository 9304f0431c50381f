package ffmpeg

import "strings"

// ParseLogLevel classifies one ffmpeg/vspipe stderr line. ffmpeg tags
// component lines like "[matroska @ 0x...] ..." and severity markers
// appear as bare words; vspipe is mostly untagged. Unknown lines are
// reported at info so nothing is dropped.
func ParseLogLevel(line string) (level, msg string) {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "error") || strings.Contains(lower, "fatal"):
		return "error", line
	case strings.Contains(lower, "warning") || strings.Contains(lower, "deprecated"):
		return "warning", line
	default:
		return "info", line
	}
}
