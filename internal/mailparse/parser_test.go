package mailparse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adaoss/Mail2printer/internal/logger"
)

func rawMessage(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

func TestParseSimpleTextMessage(t *testing.T) {
	raw := rawMessage(
		"From: Alice <alice@example.com>",
		"To: printer@example.com",
		"Subject: Hello",
		"Message-Id: <abc123@example.com>",
		"Date: Mon, 02 Jan 2006 15:04:05 -0700",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Hello world",
	)

	parser := NewParser(0, logger.NopLogger())
	msg, err := parser.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "abc123@example.com", msg.MessageID)
	assert.Equal(t, "Hello", msg.Subject)
	assert.Equal(t, "Alice <alice@example.com>", msg.Sender)
	assert.Equal(t, "printer@example.com", msg.Recipient)
	assert.Equal(t, "Mon, 02 Jan 2006 15:04:05 -0700", msg.Date)
	assert.Equal(t, "Hello world", strings.TrimSpace(msg.TextBody))
	assert.False(t, msg.HasHTML())
	assert.False(t, msg.HasAttachments())
	assert.True(t, msg.Printable())
}

func TestParseMultipartWithAttachment(t *testing.T) {
	raw := rawMessage(
		"From: billing@example.com",
		"To: printer@example.com",
		"Subject: Invoice",
		"Message-Id: <inv-1@example.com>",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="BOUNDARY"`,
		"",
		"--BOUNDARY",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"See attached.",
		"--BOUNDARY",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>See attached.</p>",
		"--BOUNDARY",
		`Content-Type: application/pdf; name="invoice.pdf"`,
		`Content-Disposition: attachment; filename="invoice.pdf"`,
		"Content-Transfer-Encoding: base64",
		"",
		"JVBERi0xLjQK",
		"--BOUNDARY--",
	)

	parser := NewParser(0, logger.NopLogger())
	msg, err := parser.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "See attached.", strings.TrimSpace(msg.TextBody))
	assert.Equal(t, "<p>See attached.</p>", strings.TrimSpace(msg.HTMLBody))
	require.Len(t, msg.Attachments, 1)

	att := msg.Attachments[0]
	assert.Equal(t, "invoice.pdf", att.Filename)
	assert.Equal(t, "application/pdf", att.ContentType)
	assert.Equal(t, []byte("%PDF-1.4\n"), att.Data)
	assert.Equal(t, int64(len(att.Data)), att.Size)
}

func TestParseAttachmentSizeBoundary(t *testing.T) {
	raw := rawMessage(
		"From: a@example.com",
		"Subject: sized",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="BOUNDARY"`,
		"",
		"--BOUNDARY",
		`Content-Type: text/plain; charset=utf-8`,
		`Content-Disposition: attachment; filename="exact.txt"`,
		"",
		"12345678",
		"--BOUNDARY",
		`Content-Type: text/plain; charset=utf-8`,
		`Content-Disposition: attachment; filename="over.txt"`,
		"",
		"123456789",
		"--BOUNDARY--",
	)

	parser := NewParser(8, logger.NopLogger())
	msg, err := parser.Parse(raw)
	require.NoError(t, err)

	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "exact.txt", msg.Attachments[0].Filename)
	assert.Equal(t, int64(8), msg.Attachments[0].Size)
}

func TestParseEncodedWordSubject(t *testing.T) {
	raw := rawMessage(
		"From: a@example.com",
		"Subject: =?utf-8?q?Caf=C3=A9_Receipt?=",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"body",
	)

	parser := NewParser(0, logger.NopLogger())
	msg, err := parser.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "Café Receipt", msg.Subject)
}

func TestParseConcatenatesRepeatedTextParts(t *testing.T) {
	raw := rawMessage(
		"From: a@example.com",
		"Subject: parts",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="BOUNDARY"`,
		"",
		"--BOUNDARY",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"first",
		"--BOUNDARY",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"second",
		"--BOUNDARY--",
	)

	parser := NewParser(0, logger.NopLogger())
	msg, err := parser.Parse(raw)
	require.NoError(t, err)

	assert.Contains(t, msg.TextBody, "first")
	assert.Contains(t, msg.TextBody, "second")
	assert.Less(t, strings.Index(msg.TextBody, "first"), strings.Index(msg.TextBody, "second"))
}

func TestParseSkipsUnnamedAttachment(t *testing.T) {
	raw := rawMessage(
		"From: a@example.com",
		"Subject: unnamed",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="BOUNDARY"`,
		"",
		"--BOUNDARY",
		"Content-Type: application/octet-stream",
		"Content-Disposition: attachment",
		"",
		"blob",
		"--BOUNDARY--",
	)

	parser := NewParser(0, logger.NopLogger())
	msg, err := parser.Parse(raw)
	require.NoError(t, err)

	assert.Empty(t, msg.Attachments)
}

func TestParseMissingMessageID(t *testing.T) {
	raw := rawMessage(
		"From: a@example.com",
		"Subject: no id",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"body",
	)

	parser := NewParser(0, logger.NopLogger())
	msg, err := parser.Parse(raw)
	require.NoError(t, err)

	assert.Empty(t, msg.MessageID)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		index    int
		expected string
	}{
		{
			name:     "clean name unchanged",
			input:    "report.pdf",
			index:    1,
			expected: "report.pdf",
		},
		{
			name:     "invalid characters stripped",
			input:    `we<ird:na*me?.pdf`,
			index:    1,
			expected: "weirdname.pdf",
		},
		{
			name:     "path separators stripped",
			input:    `..\..\etc/passwd`,
			index:    1,
			expected: "....etcpasswd",
		},
		{
			name:     "nothing survives",
			input:    `<>:"/\|?*`,
			index:    3,
			expected: "attachment-3",
		},
		{
			name:     "surrounding whitespace trimmed",
			input:    "  doc.pdf  ",
			index:    1,
			expected: "doc.pdf",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFilename(tt.input, tt.index))
		})
	}
}
