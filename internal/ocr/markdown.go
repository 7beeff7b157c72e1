package ocr

import (
	"fmt"
	"strings"
)

// PostProcess normalizes raw engine output: trailing whitespace per line
// goes away and runs of blank lines collapse to one.
func PostProcess(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			blank = true
			continue
		}
		if blank && len(out) > 0 {
			out = append(out, "")
		}
		blank = false
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// PageMarkdown renders recognized text as the markdown PageOutput, headed
// by the page's real 1-based number.
func PageMarkdown(page int, text string) string {
	return fmt.Sprintf("## Page %d\n\n%s\n", page, text)
}
