package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestNew_RegisteredCode(t *testing.T) {
	err := New("E201")
	if err.Code != "E201" {
		t.Errorf("Code = %q, want E201", err.Code)
	}
	if err.Category != CategoryWatch {
		t.Errorf("Category = %q, want watch", err.Category)
	}
	if err.Message == "" {
		t.Error("registered code should carry a message")
	}
}

func TestNew_UnknownCode(t *testing.T) {
	err := New("E999")
	if err.Message != "Unknown error" {
		t.Errorf("Message = %q, want Unknown error", err.Message)
	}
}

func TestError_String(t *testing.T) {
	err := New("E302")
	want := "E302: Server compilation failed"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	noCode := Newf(CategoryStep, "style processor exited with status %d", 2)
	if noCode.Error() != "style processor exited with status 2" {
		t.Errorf("Error() = %q", noCode.Error())
	}
}

func TestWrap_Unwrap(t *testing.T) {
	cause := stderrors.New("exit status 1")
	err := New("E301").Wrap(cause)

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestWithStep(t *testing.T) {
	err := New("E303").WithStep("style").WithDetail("unexpected token at line 4")
	if err.Step != "style" {
		t.Errorf("Step = %q, want style", err.Step)
	}
	if got := err.FormatCompact(); !strings.HasPrefix(got, "style: E303") {
		t.Errorf("FormatCompact() = %q", got)
	}
}

func TestFormat_NoColors(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New("E401").
		WithDetail("no such file or directory").
		WithSuggestion("Run a build first so the server binary exists")

	out := err.Format()
	for _, want := range []string{"E401", "no such file or directory", "Hint:"} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("Format() should not contain ANSI codes when colors are disabled")
	}
}

func TestIsCategory(t *testing.T) {
	err := New("E402")
	if !IsCategory(err, CategoryProcess) {
		t.Error("E402 should be a process error")
	}
	if IsCategory(err, CategoryWatch) {
		t.Error("E402 should not be a watch error")
	}
	if IsCategory(stderrors.New("plain"), CategoryProcess) {
		t.Error("plain errors have no category")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "E301") != nil {
		t.Error("FromError(nil) should be nil")
	}

	le := New("E304")
	if FromError(le, "E301") != le {
		t.Error("FromError should pass LoomError through unchanged")
	}

	wrapped := FromError(stderrors.New("boom"), "E310")
	if wrapped.Code != "E310" {
		t.Errorf("Code = %q, want E310", wrapped.Code)
	}
}
