package mailparse

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/adaoss/Mail2printer/internal/logger"
)

// filenameSanitizer strips the characters that are unsafe in filenames on
// the platforms we spool from.
var filenameSanitizer = strings.NewReplacer(
	"<", "", ">", "", ":", "", `"`, "", "/", "", `\`, "", "|", "", "?", "", "*", "",
)

// Parser decodes raw mail bytes into an EmailMessage. It performs no I/O;
// the size cap is enforced here so oversized attachments are never
// materialized downstream.
type Parser struct {
	maxAttachmentSize int64
	log               logger.Logger
}

func NewParser(maxAttachmentSize int64, log logger.Logger) *Parser {
	return &Parser{
		maxAttachmentSize: maxAttachmentSize,
		log:               log,
	}
}

// Parse walks every MIME part of the message. Text and HTML parts of the
// same type are concatenated rather than replaced. Unknown charsets degrade
// to best-effort decoding instead of failing the whole message.
func (p *Parser) Parse(raw []byte) (*EmailMessage, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	if mr == nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}

	header := mr.Header
	msg := &EmailMessage{
		MessageID: messageID(header),
		Subject:   decodedSubject(header),
		Sender:    addressHeader(header, "From"),
		Recipient: addressHeader(header, "To"),
		Date:      header.Get("Date"),
	}

	var textParts, htmlParts []string
	attachmentIndex := 0

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			p.log.Warnw("Stopping part walk on malformed MIME",
				"message_id", msg.MessageID,
				"error", err)
			break
		}
		if part == nil {
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, err := io.ReadAll(part.Body)
			if err != nil {
				p.log.Warnw("Failed to read inline part",
					"message_id", msg.MessageID,
					"content_type", contentType,
					"error", err)
				continue
			}
			switch {
			case strings.HasPrefix(contentType, "text/plain"):
				textParts = append(textParts, string(body))
			case strings.HasPrefix(contentType, "text/html"):
				htmlParts = append(htmlParts, string(body))
			}

		case *mail.AttachmentHeader:
			attachmentIndex++
			attachment, ok := p.readAttachment(h, part.Body, msg.MessageID, attachmentIndex)
			if ok {
				msg.Attachments = append(msg.Attachments, attachment)
			}
		}
	}

	msg.TextBody = strings.Join(textParts, "\n")
	msg.HTMLBody = strings.Join(htmlParts, "\n")

	return msg, nil
}

func (p *Parser) readAttachment(h *mail.AttachmentHeader, body io.Reader, messageID string, index int) (Attachment, bool) {
	filename, err := h.Filename()
	if err != nil || filename == "" {
		// Disposition says attachment but there is no usable name; the
		// original payload is unreachable for printing anyway.
		p.log.Debugw("Skipping unnamed attachment part", "message_id", messageID)
		return Attachment{}, false
	}

	contentType, _, _ := h.ContentType()

	data, err := io.ReadAll(body)
	if err != nil {
		p.log.Warnw("Failed to read attachment",
			"message_id", messageID,
			"filename", filename,
			"error", err)
		return Attachment{}, false
	}

	size := int64(len(data))
	if p.maxAttachmentSize > 0 && size > p.maxAttachmentSize {
		p.log.Warnw("Dropping oversized attachment",
			"message_id", messageID,
			"filename", filename,
			"size_bytes", size,
			"max_bytes", p.maxAttachmentSize)
		return Attachment{}, false
	}

	return Attachment{
		Filename:    SanitizeFilename(filename, index),
		ContentType: contentType,
		Size:        size,
		Data:        data,
	}, true
}

// SanitizeFilename strips characters that are invalid in filenames and
// falls back to a positional name when nothing survives.
func SanitizeFilename(name string, index int) string {
	sanitized := strings.TrimSpace(filenameSanitizer.Replace(name))
	if sanitized == "" {
		return fmt.Sprintf("attachment-%d", index)
	}
	return sanitized
}

func messageID(header mail.Header) string {
	if id, err := header.MessageID(); err == nil && id != "" {
		return id
	}
	return strings.Trim(strings.TrimSpace(header.Get("Message-Id")), "<>")
}

func decodedSubject(header mail.Header) string {
	subject, err := header.Subject()
	if err != nil && subject == "" {
		return header.Get("Subject")
	}
	return subject
}

func addressHeader(header mail.Header, key string) string {
	list, err := header.AddressList(key)
	if err != nil || len(list) == 0 {
		return strings.TrimSpace(header.Get(key))
	}

	parts := make([]string, 0, len(list))
	for _, addr := range list {
		if addr == nil {
			continue
		}
		if addr.Name != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", addr.Name, addr.Address))
		} else {
			parts = append(parts, addr.Address)
		}
	}
	return strings.Join(parts, ", ")
}
