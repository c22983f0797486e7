package ui

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/steveyegge/ferry/internal/progress"
)

func TestShouldUseColor(t *testing.T) {
	tests := []struct {
		name          string
		noColor       *string
		cliColor      string
		cliColorForce string
		want          bool
	}{
		{name: "NO_COLOR disables color", noColor: strPtr("1"), want: false},
		{name: "NO_COLOR empty value still disables", noColor: strPtr(""), cliColorForce: "1", want: false},
		{name: "CLICOLOR=0 disables color", cliColor: "0", want: false},
		{name: "CLICOLOR_FORCE enables color without a TTY", cliColorForce: "1", want: true},
		{name: "NO_COLOR beats CLICOLOR_FORCE", noColor: strPtr("1"), cliColorForce: "1", want: false},
		{name: "no TTY under go test", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearColorEnv(t)
			if tt.noColor != nil {
				t.Setenv("NO_COLOR", *tt.noColor)
			}
			t.Setenv("CLICOLOR", tt.cliColor)
			t.Setenv("CLICOLOR_FORCE", tt.cliColorForce)
			if got := ShouldUseColor(); got != tt.want {
				t.Errorf("ShouldUseColor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRenderWithoutColorIsPlain(t *testing.T) {
	clearColorEnv(t)
	t.Setenv("NO_COLOR", "1")
	if got := RenderFail("boom"); got != "boom" {
		t.Errorf("RenderFail() = %q", got)
	}
	if got := RenderCategory("import assets"); got != "IMPORT ASSETS" {
		t.Errorf("RenderCategory() = %q", got)
	}
}

func TestStatusLine(t *testing.T) {
	clearColorEnv(t)
	t.Setenv("NO_COLOR", "1")
	tests := []struct {
		name           string
		detail         string
		failed, warned bool
		want           string
	}{
		{"ok", "3 created", false, false, "✓ items: 3 created"},
		{"warned", "1 warning", false, true, "⚠ items: 1 warning"},
		{"failed", "2 failed", true, true, "✗ items: 2 failed"},
		{"nothing", "", false, false, "- items"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusLine("items", tt.detail, tt.failed, tt.warned); got != tt.want {
				t.Errorf("StatusLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncateSimple(t *testing.T) {
	tests := []struct {
		input  string
		maxLen int
		want   string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 8, "hello..."},
		{"hello world", 3, "..."},
		{"", 10, ""},
		{"héllo wörld", 8, "héllo..."},
	}
	for _, tt := range tests {
		if got := TruncateSimple(tt.input, tt.maxLen); got != tt.want {
			t.Errorf("TruncateSimple(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
		}
	}
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		width  int
		indent string
		want   string
	}{
		{"short line unchanged", "hello world", 20, "", "hello world"},
		{"wraps at word boundary", "one two three four", 9, "", "one two\nthree\nfour"},
		{"indents continuation", "one two three", 8, "  ", "one two\n  three"},
		{"keeps existing breaks", "a b\nc d", 10, "", "a b\nc d"},
		{"long word kept whole", "abcdefghij", 4, "", "abcdefghij"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WrapText(tt.input, tt.width, tt.indent); got != tt.want {
				t.Errorf("WrapText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProgressWriterPlain(t *testing.T) {
	clearColorEnv(t)
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	p := NewProgressWriter(&buf, false)

	p.Report(progress.Event{Message: "import assets", Category: progress.CategoryStage, Count: &progress.Count{Total: 2}})
	p.Report(progress.Event{Message: "hero", Category: progress.CategoryItem, Count: &progress.Count{Processed: 1, Total: 2}})
	p.Report(progress.Event{Message: "logo", Category: progress.CategoryError, Count: &progress.Count{Processed: 2, Total: 2}})
	p.Report(progress.Event{Message: "asset hero is unused", Category: progress.CategoryWarning})
	p.Report(progress.Event{Message: "import assets: 1 succeeded, 1 failed", Category: progress.CategoryInfo})
	p.Done()

	want := "IMPORT ASSETS (2)\n" +
		"✗ logo\n" +
		"⚠ asset hero is unused\n" +
		"import assets: 1 succeeded, 1 failed\n"
	if got := buf.String(); got != want {
		t.Errorf("output =\n%q\nwant\n%q", got, want)
	}
}

func TestProgressWriterLive(t *testing.T) {
	clearColorEnv(t)
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	p := &ProgressWriter{w: &buf, live: true, width: 20}

	p.Report(progress.Event{Message: "home", Category: progress.CategoryItem, Count: &progress.Count{Processed: 1, Total: 3}})
	if !strings.Contains(buf.String(), "\r[1/3] home") {
		t.Errorf("missing status line: %q", buf.String())
	}
	p.Report(progress.Event{Message: "done", Category: progress.CategoryInfo})
	out := buf.String()
	if !strings.HasSuffix(out, "\rdone\n") {
		t.Errorf("status line not cleared before message: %q", out)
	}
	buf.Reset()
	p.Done()
	if buf.Len() != 0 {
		t.Errorf("Done() wrote %q with no pending status", buf.String())
	}
}

func clearColorEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"NO_COLOR", "CLICOLOR", "CLICOLOR_FORCE"} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
}

func strPtr(s string) *string { return &s }
