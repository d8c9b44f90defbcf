package ffmpeg

import "testing"

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantLevel string
		wantMsg   string
	}{
		{
			name:      "simple info",
			input:     "[info] Stream mapping:",
			wantLevel: "info",
			wantMsg:   "Stream mapping:",
		},
		{
			name:      "simple error",
			input:     "[error] failed to open file",
			wantLevel: "error",
			wantMsg:   "failed to open file",
		},
		{
			name:      "component prefix with warning",
			input:     "[swscaler @ 0x7f673c439fc0] [warning] deprecated pixel format used",
			wantLevel: "warning",
			wantMsg:   "[swscaler @ 0x7f673c439fc0] deprecated pixel format used",
		},
		{
			name:      "component prefix without level",
			input:     "[libx264 @ 0x55f4a8c00000] frame=100 fps=30",
			wantLevel: "info",
			wantMsg:   "[libx264 @ 0x55f4a8c00000] frame=100 fps=30",
		},
		{
			name:      "no prefix",
			input:     "frame=100 fps=30 q=28.0 size=1024kB",
			wantLevel: "info",
			wantMsg:   "frame=100 fps=30 q=28.0 size=1024kB",
		},
		{
			name:      "unterminated bracket",
			input:     "[info",
			wantLevel: "info",
			wantMsg:   "[info",
		},
		{
			name:      "empty line",
			input:     "",
			wantLevel: "info",
			wantMsg:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotLevel, gotMsg := ParseLogLevel(tt.input)
			if gotLevel != tt.wantLevel {
				t.Errorf("ParseLogLevel() level = %q, want %q", gotLevel, tt.wantLevel)
			}
			if gotMsg != tt.wantMsg {
				t.Errorf("ParseLogLevel() msg = %q, want %q", gotMsg, tt.wantMsg)
			}
		})
	}
}

func TestIsErrorLevel(t *testing.T) {
	for _, level := range []string{"panic", "fatal", "error"} {
		if !IsErrorLevel(level) {
			t.Errorf("IsErrorLevel(%q) = false", level)
		}
	}
	for _, level := range []string{"warning", "info", "debug", ""} {
		if IsErrorLevel(level) {
			t.Errorf("IsErrorLevel(%q) = true", level)
		}
	}
}
