package ffmpeg

import "testing"

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		name      string
		line      string
		wantLevel string
	}{
		{
			name:      "error line",
			line:      "[matroska @ 0x55f] Error writing trailer",
			wantLevel: "error",
		},
		{
			name:      "fatal line",
			line:      "Fatal: could not open device",
			wantLevel: "error",
		},
		{
			// must match the level strings the process scanner routes on
			name:      "warning line",
			line:      "[dshow @ 0x55f] Warning: buffer overrun",
			wantLevel: "warning",
		},
		{
			name:      "deprecated option",
			line:      "Option 'qscale' is deprecated, use 'q:v'",
			wantLevel: "warning",
		},
		{
			name:      "untagged line",
			line:      "Output #0, matroska, to 'out.mkv':",
			wantLevel: "info",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			level, msg := ParseLogLevel(tc.line)
			if level != tc.wantLevel {
				t.Errorf("level = %q, want %q", level, tc.wantLevel)
			}
			if msg != tc.line {
				t.Errorf("msg = %q, want the line unchanged", msg)
			}
		})
	}
}
