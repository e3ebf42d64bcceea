package theme

import (
	"regexp"
	"strings"
)

// Block delimiters written around injected theme rules. Existing blocks are
// recognised regardless of case and in the Russian wording used by older
// projects.
const (
	blockStartFormat = "/* === Theme: %s === */"
	blockEnd         = "/* === End theme === */"
)

var blockPattern = regexp.MustCompile(
	`(?is)/\*\s*===\s*(?:theme|тема)\s*:[^*]*?===\s*\*/.*?/\*\s*===\s*(?:end\s+theme|конец\s+темы)\s*===\s*\*/[ \t]*\n?`)

// Block returns the delimited rules for t.
func Block(t Theme) string {
	var sb strings.Builder
	sb.WriteString(strings.Replace(blockStartFormat, "%s", t.Label, 1))
	sb.WriteString("\n")
	sb.WriteString(strings.TrimRight(t.CSS, "\n"))
	sb.WriteString("\n")
	sb.WriteString(blockEnd)
	sb.WriteString("\n")
	return sb.String()
}

// StripBlocks removes every injected theme block from style.
func StripBlocks(style string) string {
	return blockPattern.ReplaceAllString(style, "")
}

// HasBlock reports whether style contains an injected block.
func HasBlock(style string) bool {
	return blockPattern.MatchString(style)
}

// InjectBlock replaces any injected blocks with the block for t at the top.
func InjectBlock(style string, t Theme) string {
	return Block(t) + StripBlocks(style)
}
