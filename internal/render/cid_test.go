package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeCIDReferences(t *testing.T) {
	html := `
	<html>
	<body>
		<h1>Test Email</h1>
		<img src="cid:1756037F-09AD-4C50-9C41-097AB1F4FC14" alt="Embedded image">
		<img src="CID:ANOTHER-CONTENT-ID" alt="Another image">
		<a href="cid:linked-content">Embedded link</a>
		<a href="CID:UPPER-CASE">Upper case CID</a>
		<img src="http://example.com/image.jpg" alt="Normal image">
		<a href="http://example.com">Normal link</a>
	</body>
	</html>
	`

	sanitized := SanitizeCIDReferences(html)

	assert.NotContains(t, strings.ToLower(sanitized), "cid:")
	assert.Contains(t, sanitized, "[Embedded Image]")
	assert.Contains(t, sanitized, "[Embedded Content]")
	assert.Contains(t, sanitized, "data:image/png;base64,")
	assert.Contains(t, sanitized, `href="#"`)
	assert.Contains(t, sanitized, "http://example.com/image.jpg")
	assert.Contains(t, sanitized, `<a href="http://example.com">Normal link</a>`)
}

func TestSanitizeCIDReferencesLeavesCleanHTMLUntouched(t *testing.T) {
	html := `
	<html>
	<body>
		<h1>Normal Email</h1>
		<img src="http://example.com/image.jpg" alt="Normal image">
		<a href="http://example.com">Normal link</a>
	</body>
	</html>
	`

	assert.Equal(t, html, SanitizeCIDReferences(html))
}

func TestSanitizeCIDReferencesQuotingAndCharsets(t *testing.T) {
	html := strings.Join([]string{
		`<img src='cid:single-quotes'>`,
		`<img src="cid:double-quotes">`,
		`<a href='cid:link-single'>Link</a>`,
		`<a href="cid:link-double">Link</a>`,
		`<img src="cid:with-special-chars@domain.com">`,
		`<img src="cid:with-dashes-and-numbers-123">`,
	}, "\n")

	sanitized := SanitizeCIDReferences(html)

	assert.NotContains(t, strings.ToLower(sanitized), "cid:")
	assert.Equal(t, 4, strings.Count(sanitized, "data:image/png;base64,"))
	assert.Equal(t, 2, strings.Count(sanitized, `href="#"`))
}

func TestHeaderBlockText(t *testing.T) {
	block := HeaderBlock{
		From:    "alice@example.com",
		To:      "printer@example.com",
		Subject: "Invoice",
		Date:    "Mon, 02 Jan 2006 15:04:05 -0700",
	}

	text := block.Text()

	assert.Contains(t, text, "From: alice@example.com\n")
	assert.Contains(t, text, "To: printer@example.com\n")
	assert.Contains(t, text, "Subject: Invoice\n")
	assert.Contains(t, text, "Date: Mon, 02 Jan 2006 15:04:05 -0700\n")
	assert.Contains(t, text, strings.Repeat("=", 50))
}

func TestHeaderBlockWrapHTML(t *testing.T) {
	block := HeaderBlock{
		From:    "a <b>@example.com",
		Subject: "Hello & <World>",
	}

	wrapped := block.WrapHTML("<p>body</p>")

	assert.Contains(t, wrapped, "<p>body</p>")
	assert.Contains(t, wrapped, "<pre>")
	assert.Contains(t, wrapped, "Hello &amp; &lt;World&gt;")
	assert.NotContains(t, wrapped, "Subject: Hello & <World>")
}
