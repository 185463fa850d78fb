package tasks

import (
    "regexp"
    "strings"

    "golang.org/x/net/html"
    "golang.org/x/net/html/atom"
)

// tagPattern matches complete tags only. "x<y" or "<bob@example.com>" never match.
var tagPattern = regexp.MustCompile(`<(/?)([a-zA-Z][a-zA-Z0-9]*)(\s[^<>]*)?/?>`)

// Sanitize strips HTML elements from user or model supplied text. Anything
// that is not a complete tag naming a known element is kept verbatim, apart
// from whitespace normalisation.
func Sanitize(s string, multiline bool) string {
    if stripped, ok := stripMarkup(s); ok { s = stripped }
    if !multiline {
        return strings.Join(strings.Fields(s), " ")
    }
    return compactWhitespace(s)
}

// stripMarkup reports false when s holds no element tags, so plain text keeps
// its literal '<' and '&' characters.
func stripMarkup(s string) (string, bool) {
    var (
        b      strings.Builder
        last   int
        found  bool
        hidden atom.Atom
    )
    for _, m := range tagPattern.FindAllStringSubmatchIndex(s, -1) {
        a := atom.Lookup([]byte(strings.ToLower(s[m[4]:m[5]])))
        if a == 0 { continue }
        found = true
        if hidden == 0 { b.WriteString(s[last:m[0]]) }
        last = m[1]
        closing := m[3] > m[2]
        switch {
        case hidden != 0:
            if closing && a == hidden { hidden = 0 }
        case !closing && (a == atom.Script || a == atom.Style || a == atom.Noscript):
            hidden = a
        case a == atom.Br || a == atom.P || a == atom.Div || a == atom.Li || a == atom.Tr:
            b.WriteString("\n")
        }
    }
    if !found { return s, false }
    if hidden == 0 { b.WriteString(s[last:]) }
    return html.UnescapeString(b.String()), true
}

func compactWhitespace(s string) string {
    s = strings.ReplaceAll(s, "\t", " ")
    s = strings.ReplaceAll(s, "\r", " ")
    lines := strings.Split(s, "\n")
    out := make([]string, 0, len(lines))
    for _, ln := range lines {
        ln = strings.Join(strings.Fields(ln), " ")
        if ln != "" { out = append(out, ln) }
    }
    return strings.Join(out, "\n")
}
