package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

const detailWidth = 70

// colorEnabled starts off when NO_COLOR is set.
var colorEnabled = os.Getenv("NO_COLOR") == ""

// SetColor turns ANSI colors on or off and returns the previous setting.
func SetColor(on bool) bool {
	prev := colorEnabled
	colorEnabled = on
	return prev
}

type sgr string

const (
	sgrBold sgr = "1"
	sgrRed  sgr = "1;31"
	sgrCyan sgr = "36"
	sgrGray sgr = "90"
)

func paint(s sgr, text string) string {
	if !colorEnabled {
		return text
	}
	return "\033[" + string(s) + "m" + text + "\033[0m"
}

// Format renders the error for a terminal: title, cause, wrapped detail,
// hint and example, separated by blank lines.
func (e *FlixError) Format() string {
	var b strings.Builder

	title := "ERROR: "
	if e.Code != "" {
		title = "ERROR " + e.Code + ": "
	}
	fmt.Fprintf(&b, "\n%s%s\n\n", paint(sgrRed, title), paint(sgrBold, e.Message))

	if e.Wrapped != nil {
		fmt.Fprintf(&b, "  %s\n\n", paint(sgrGray, e.Wrapped.Error()))
	}
	if lines := wrapText(e.Detail, detailWidth); len(lines) > 0 {
		for _, l := range lines {
			fmt.Fprintf(&b, "  %s\n", l)
		}
		b.WriteByte('\n')
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, "  %s%s\n\n", paint(sgrCyan, "Hint: "), e.Suggestion)
	}
	if e.Example != "" {
		fmt.Fprintf(&b, "  %s\n", paint(sgrCyan, "Example:"))
		for _, l := range strings.Split(e.Example, "\n") {
			fmt.Fprintf(&b, "    %s\n", l)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

type jsonError struct {
	Code       string   `json:"code,omitempty"`
	Category   Category `json:"category"`
	Message    string   `json:"message"`
	Detail     string   `json:"detail,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
	Cause      string   `json:"cause,omitempty"`
}

// FormatJSON returns the error as a JSON object for machine consumers.
func (e *FlixError) FormatJSON() string {
	out := jsonError{
		Code:       e.Code,
		Category:   e.Category,
		Message:    e.Message,
		Detail:     e.Detail,
		Suggestion: e.Suggestion,
	}
	if e.Wrapped != nil {
		out.Cause = e.Wrapped.Error()
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprintf(`{"message":%q}`, e.Error())
	}
	return string(data)
}

// wrapText breaks text on spaces into lines of at most width bytes. A single
// word longer than width gets a line of its own.
func wrapText(text string, width int) []string {
	var (
		lines []string
		line  string
	)
	for _, word := range strings.Fields(text) {
		switch {
		case line == "":
			line = word
		case len(line)+1+len(word) > width:
			lines = append(lines, line)
			line = word
		default:
			line += " " + word
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

// Fprint writes err to w in terminal form. Errors without a code are shown
// with the runtime category.
func Fprint(w io.Writer, err error) {
	io.WriteString(w, FromError(err).Format())
}

// PrintError prints err to stderr.
func PrintError(err error) {
	Fprint(os.Stderr, err)
}
