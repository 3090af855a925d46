package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/vango-dev/flix/pkg/archive"
	"github.com/vango-dev/flix/pkg/builder"
	"github.com/vango-dev/flix/pkg/node"
	"github.com/vango-dev/flix/pkg/provider"
)

func TestNew(t *testing.T) {
	err := New("F001")
	if err.Category != CategoryConfig {
		t.Errorf("Category = %q, want %q", err.Category, CategoryConfig)
	}
	if err.Error() != "F001: Duplicate provider identity" {
		t.Errorf("Error() = %q", err.Error())
	}

	unknown := New("F999")
	if unknown.Message != "Unknown error" {
		t.Errorf("Message = %q, want \"Unknown error\"", unknown.Message)
	}
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"duplicate identity", &provider.DuplicateIdentityError{Identity: "rows"}, "F001"},
		{"wrapped duplicate key", fmt.Errorf("reconcile: %w", &node.DuplicateKeyError{ID: node.ID{Provider: "rows", Key: "a"}, First: 0, Second: 1}), "F003"},
		{"builder closed", fmt.Errorf("select: %w", builder.ErrClosed), "F010"},
		{"unsupported scheme", fmt.Errorf("%w: ftp", archive.ErrUnsupportedScheme), "F030"},
		{"fallback", stderrors.New("boom"), "F041"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe := FromError(tt.err, "F041")
			if fe.Code != tt.want {
				t.Errorf("Code = %q, want %q", fe.Code, tt.want)
			}
			if !stderrors.Is(fe, tt.err) {
				t.Error("FromError result does not wrap the original error")
			}
		})
	}

	if FromError(nil) != nil {
		t.Error("FromError(nil) != nil")
	}
	if got := FromError(stderrors.New("plain")); got.Code != "" || got.Message != "plain" {
		t.Errorf("FromError(plain) = %+v", got)
	}

	fe := New("F040")
	if FromError(fmt.Errorf("load: %w", fe)) != fe {
		t.Error("FromError did not return the wrapped FlixError")
	}
}

func TestFormat(t *testing.T) {
	defer SetColor(SetColor(false))

	out := New("F003").Wrap(stderrors.New("section 0 key a")).Format()
	for _, want := range []string{"ERROR F003: Duplicate key in section", "section 0 key a", "Hint: Return a unique key"} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q:\n%s", want, out)
		}
	}

	var buf bytes.Buffer
	Fprint(&buf, &provider.DuplicateIdentityError{Identity: "rows"})
	if !strings.Contains(buf.String(), "F001") {
		t.Errorf("Fprint() = %q, want F001", buf.String())
	}
}

func TestFormatJSON(t *testing.T) {
	var got map[string]string
	if err := json.Unmarshal([]byte(New("F031").FormatJSON()), &got); err != nil {
		t.Fatalf("FormatJSON is not JSON: %v", err)
	}
	if got["code"] != "F031" || got["category"] != "archive" {
		t.Errorf("FormatJSON = %v", got)
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText(strings.Repeat("word ", 30), 20)
	for _, l := range lines {
		if len(l) > 20 {
			t.Errorf("line %q longer than 20", l)
		}
	}
	if len(lines) < 2 {
		t.Errorf("len(lines) = %d, want several", len(lines))
	}
}

func TestCodesSorted(t *testing.T) {
	codes := Codes()
	for i := 1; i < len(codes); i++ {
		if codes[i-1] >= codes[i] {
			t.Fatalf("Codes() not sorted at %d: %v", i, codes)
		}
	}
	if _, ok := GetTemplate("F005"); !ok {
		t.Error("GetTemplate(F005) missing")
	}
}
