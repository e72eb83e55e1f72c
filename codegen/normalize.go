package codegen

import "strings"

// Earlier longer matches win, so CRLF is consumed before a lone CR.
var normalizer = strings.NewReplacer(
	"\r\n", "\n",
	"\r", "\n",
	`\t`, "\t",
	`\n`, "\n",
)

// Normalize converts line endings to LF and expands literal \t and \n
// escapes. It makes a single left-to-right pass, so applying it twice
// gives the same result as applying it once.
func Normalize(asm string) string {
	return normalizer.Replace(asm)
}
