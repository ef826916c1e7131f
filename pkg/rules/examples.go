package rules

// FilterExpressionExamples shows the rule forms users reach for most.
// Documentation only; nothing parses this map at runtime.
var FilterExpressionExamples = map[string]string{
	"subject_prefix":     `subject.startsWith("[print]")`,
	"subject_contains":   `subject.contains("invoice")`,
	"trusted_domain":     `sender.endsWith("@example.com")`,
	"pdf_only":           `attachment_names.all(n, n.endsWith(".pdf"))`,
	"has_attachments":    `attachment_count > 0`,
	"size_cap":           `attachment_size < 5242880`,
	"body_or_attachment": `has_text || has_html || attachment_count > 0`,
	"combined":           `sender.endsWith("@example.com") && subject.contains("report")`,
	"recipient_alias":    `recipient.contains("+print@")`,
	"no_bare_images":     `!(attachment_count > 0 && attachment_names.all(n, n.endsWith(".png")))`,
}
