package htmlutil

import (
	"strings"

	"github.com/k3a/html2text"
)

// ToText converts HTML to plain text, decoding entities and stripping tags.
func ToText(s string) string {
	return html2text.HTML2Text(s)
}

// Plain turns model output into a single line of plain text: any HTML is
// rendered to text, markdown emphasis markers are dropped and runs of
// whitespace collapse to one space.
func Plain(s string) string {
	s = ToText(s)
	s = strings.NewReplacer("**", "", "__", "", "`", "").Replace(s)
	s = strings.TrimLeft(strings.TrimSpace(s), "#> ")
	return strings.Join(strings.Fields(s), " ")
}
