package parser

import (
	"errors"
	"io"
	"regexp"
	"strings"
	"unicode"

	nethtml "golang.org/x/net/html"
)

// elements whose text is never rendered
var hiddenElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// elements that start a new line in rendered text
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "td": true, "th": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "header": true, "footer": true, "pre": true,
	"blockquote": true, "table": true, "ul": true, "ol": true, "hr": true, "title": true,
}

var (
	blankLines   = regexp.MustCompile(`\n[ \t]*(\n[ \t]*)+`)
	inlineSpaces = regexp.MustCompile(`[ \t]+`)
)

// StripMarkup removes every tag from an HTML or XML document and keeps the visible text.
// Entities are decoded.
func StripMarkup(markup string) (string, error) {
	z := nethtml.NewTokenizer(strings.NewReader(markup))
	var (
		text   strings.Builder
		hidden int
	)
	for {
		tt := z.Next()
		switch tt {
		case nethtml.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return "", err
			}
			return tidy(text.String()), nil
		case nethtml.TextToken:
			if hidden == 0 {
				text.Write(z.Text())
			}
		case nethtml.StartTagToken, nethtml.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if hiddenElements[tag] && tt == nethtml.StartTagToken {
				hidden++
			}
			if blockElements[tag] {
				text.WriteString("\n")
			}
		case nethtml.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if hiddenElements[tag] && hidden > 0 {
				hidden--
			}
			if blockElements[tag] {
				text.WriteString("\n")
			}
		}
	}
}

func tidy(text string) string {
	text = inlineSpaces.ReplaceAllString(text, " ")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// ToASCII drops every non-ASCII character, including invalid UTF-8 bytes.
func ToASCII(text string) string {
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, text)
}
