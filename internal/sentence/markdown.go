package sentence

import (
	"fmt"
	"strings"
)

// markdownEscaper escapes characters that would change inline markdown meaning.
var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`,
	"<", `\<`, ">", `\>`, "#", `\#`, "|", `\|`,
)

// Markdown renders a review card: the text with labeled spans in bold
// followed by their label, then status and an entity list.
func Markdown(s *Sentence) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### Sentence %d\n\n", s.ID)

	runes := []rune(s.Text)
	cursor := 0
	for _, e := range Canonicalize(s.Entities) {
		if e.Start < cursor || e.End > len(runes) || e.Start >= e.End {
			continue // overlapping or out of range; listed below
		}
		b.WriteString(markdownEscaper.Replace(string(runes[cursor:e.Start])))
		fmt.Fprintf(&b, "**%s** `%s`", markdownEscaper.Replace(string(runes[e.Start:e.End])), e.Label)
		cursor = e.End
	}
	b.WriteString(markdownEscaper.Replace(string(runes[cursor:])))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "- Treated: %s\n", yesNo(s.IsTreated))
	fmt.Fprintf(&b, "- Valid: %s\n", yesNo(s.IsValid))

	if len(s.Entities) == 0 {
		b.WriteString("\n_No entities_\n")
		return b.String()
	}

	b.WriteString("\n| Text | Label | Span |\n|---|---|---|\n")
	for _, e := range Canonicalize(s.Entities) {
		fmt.Fprintf(&b, "| %s | %s | %d-%d |\n",
			markdownEscaper.Replace(Slice(s.Text, e.Start, e.End)), e.Label, e.Start, e.End)
	}
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
