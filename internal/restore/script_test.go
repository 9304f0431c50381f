package restore

import (
	"strings"
	"testing"
)

func TestRenderScriptSubstitutesInput(t *testing.T) {
	script := "video = core.bs.VideoSource(source={input})\n"
	got := RenderScript(script, "/tapes/capture.mkv")
	want := `video = core.bs.VideoSource(source="/tapes/capture.mkv")` + "\n"
	if got != want {
		t.Errorf("RenderScript = %q, want %q", got, want)
	}
}

func TestRenderScriptEscapesWindowsPaths(t *testing.T) {
	got := RenderScript("src = {input}", `C:\tapes\capture.avi`)
	want := `src = "C:\\tapes\\capture.avi"`
	if got != want {
		t.Errorf("RenderScript = %q, want %q", got, want)
	}
}

func TestRenderScriptWithoutPlaceholder(t *testing.T) {
	script := "video = core.bs.VideoSource(source=\"/fixed/path.mkv\")\n"
	if got := RenderScript(script, "/tapes/other.mkv"); got != script {
		t.Errorf("script without placeholder changed: %q", got)
	}
}

func TestDefaultScriptSourceFilter(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"/tapes/capture.mkv", "core.bs.VideoSource"},
		{"/tapes/capture.avi", "core.bs.VideoSource"},
		{"/tapes/capture.mp4", "core.lsmas.LibavSMASHSource"},
		{"/tapes/capture.MOV", "core.lsmas.LibavSMASHSource"},
	}
	for _, tt := range tests {
		got := DefaultScript(tt.input)
		if !strings.Contains(got, tt.want) {
			t.Errorf("DefaultScript(%q) missing %s:\n%s", tt.input, tt.want, got)
		}
		if !strings.Contains(got, "set_output()") {
			t.Errorf("DefaultScript(%q) missing set_output", tt.input)
		}
	}
}
