package mailparse

// EmailMessage is one inbound message after parsing. It is immutable once
// built and owned by the processing pipeline for a single pass.
type EmailMessage struct {
	MessageID   string
	Subject     string
	Sender      string
	Recipient   string
	Date        string
	TextBody    string
	HTMLBody    string
	Attachments []Attachment
}

// Attachment is one extracted MIME part with attachment disposition. Parts
// over the configured size cap are never constructed.
type Attachment struct {
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}

func (m *EmailMessage) HasText() bool {
	return m.TextBody != ""
}

func (m *EmailMessage) HasHTML() bool {
	return m.HTMLBody != ""
}

func (m *EmailMessage) HasAttachments() bool {
	return len(m.Attachments) > 0
}

// Printable reports whether the message carries anything that could reach
// paper: some body content or at least one attachment.
func (m *EmailMessage) Printable() bool {
	return m.HasText() || m.HasHTML() || m.HasAttachments()
}

func (m *EmailMessage) AttachmentNames() []string {
	names := make([]string, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		names = append(names, a.Filename)
	}
	return names
}

func (m *EmailMessage) TotalAttachmentSize() int64 {
	var total int64
	for _, a := range m.Attachments {
		total += a.Size
	}
	return total
}
