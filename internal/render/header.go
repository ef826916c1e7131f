package render

import (
	"fmt"
	"html"
	"strings"
)

// HeaderBlock carries the message headers printed above the body so the
// paper copy identifies its origin.
type HeaderBlock struct {
	From    string
	To      string
	Subject string
	Date    string
}

// Text renders the header block as preformatted text with a separator rule,
// ready to prepend to a plain-text body.
func (h HeaderBlock) Text() string {
	return fmt.Sprintf("From: %s\nTo: %s\nSubject: %s\nDate: %s\n\n%s\n\n",
		h.From, h.To, h.Subject, h.Date, strings.Repeat("=", 50))
}

// WrapHTML embeds the body HTML in a full document with the header block
// rendered as preformatted text above it.
func (h HeaderBlock) WrapHTML(body string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	b.WriteString(`<meta charset="utf-8">` + "\n")
	b.WriteString("<title>" + html.EscapeString(h.Subject) + "</title>\n")
	b.WriteString("</head>\n<body>\n")
	b.WriteString("<pre>" + html.EscapeString(h.Text()) + "</pre>\n")
	b.WriteString(body)
	b.WriteString("\n</body>\n</html>\n")
	return b.String()
}
