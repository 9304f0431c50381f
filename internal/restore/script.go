package restore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// InputPlaceholder marks where the source tape path is substituted into
// a user or preset script.
const InputPlaceholder = "{input}"

// RenderScript fills the input placeholder of script with the source
// path. Scripts without the placeholder pass through untouched, which
// lets a preset hard-code its source when it wants to.
func RenderScript(script, input string) string {
	return strings.ReplaceAll(script, InputPlaceholder, pyQuote(input))
}

// DefaultScript builds a minimal passthrough script that loads the
// source and emits it unmodified. The source filter follows the
// container: MP4/MOV demux best through LSMASH, everything else through
// BestSource.
func DefaultScript(input string) string {
	var b strings.Builder
	b.WriteString("import vapoursynth as vs\n")
	b.WriteString("core = vs.core\n")
	switch strings.ToLower(filepath.Ext(input)) {
	case ".mp4", ".mov", ".m4v":
		fmt.Fprintf(&b, "video = core.lsmas.LibavSMASHSource(source=%s)\n", pyQuote(input))
	default:
		fmt.Fprintf(&b, "video = core.bs.VideoSource(source=%s)\n", pyQuote(input))
	}
	b.WriteString("video.set_output()\n")
	return b.String()
}

// pyQuote renders path as a Python string literal. Backslashes matter
// because capture paths come from Windows decks.
func pyQuote(path string) string {
	r := strings.NewReplacer("\\", "\\\\", "\"", "\\\"")
	return "\"" + r.Replace(path) + "\""
}

// WriteScript materializes a VapourSynth script for one session in dir
// (the OS temp dir when empty). The file name carries the session ID
// plus a random suffix so concurrent attempts never clobber each other.
// The caller removes it during cleanup.
func WriteScript(dir, sessionID, content string) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	f, err := os.CreateTemp(dir, fmt.Sprintf("%s-*.vpy", sessionID))
	if err != nil {
		return "", fmt.Errorf("creating script file: %w", err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("writing script file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("closing script file: %w", err)
	}
	return filepath.Abs(f.Name())
}
