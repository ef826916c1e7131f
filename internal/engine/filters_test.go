package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adaoss/Mail2printer/internal/config"
	"github.com/adaoss/Mail2printer/internal/logger"
	"github.com/adaoss/Mail2printer/internal/mailparse"
)

func newChain(t *testing.T, cfg config.FilterConfig) *FilterChain {
	t.Helper()
	chain, err := NewFilterChain(cfg, logger.NopLogger())
	require.NoError(t, err)
	return chain
}

func TestFilterChainEmptyConfigPassesEverything(t *testing.T) {
	chain := newChain(t, config.FilterConfig{})
	accepted, filter := chain.Accept(context.Background(), &mailparse.EmailMessage{Subject: "anything"})
	assert.True(t, accepted)
	assert.Empty(t, filter)
}

func TestFilterChainSubjectKeywords(t *testing.T) {
	chain := newChain(t, config.FilterConfig{SubjectKeywords: []string{"invoice", "Receipt"}})

	tests := []struct {
		subject string
		want    bool
	}{
		{subject: "Your INVOICE for March", want: true},
		{subject: "receipt attached", want: true},
		{subject: "Lunch on Friday?", want: false},
		{subject: "", want: false},
	}

	for _, tt := range tests {
		accepted, filter := chain.Accept(context.Background(), &mailparse.EmailMessage{Subject: tt.subject})
		assert.Equal(t, tt.want, accepted, "subject %q", tt.subject)
		if !tt.want {
			assert.Equal(t, "subject_keywords", filter)
		}
	}
}

func TestFilterChainAttachmentSize(t *testing.T) {
	chain := newChain(t, config.FilterConfig{MaxAttachmentSize: 10})

	small := &mailparse.EmailMessage{
		Subject:     "ok",
		Attachments: []mailparse.Attachment{{Filename: "a.pdf", Size: 10}},
	}
	accepted, _ := chain.Accept(context.Background(), small)
	assert.True(t, accepted, "attachment at the cap passes")

	big := &mailparse.EmailMessage{
		Subject: "too big",
		Attachments: []mailparse.Attachment{
			{Filename: "a.pdf", Size: 5},
			{Filename: "b.pdf", Size: 11},
		},
	}
	accepted, filter := chain.Accept(context.Background(), big)
	assert.False(t, accepted, "one oversized attachment rejects the whole message")
	assert.Equal(t, "attachment_size", filter)
}

func TestFilterChainAttachmentTypes(t *testing.T) {
	chain := newChain(t, config.FilterConfig{AllowedAttachmentTypes: []string{"pdf", ".PNG"}})

	tests := []struct {
		name     string
		filename string
		want     bool
	}{
		{name: "allowed extension", filename: "doc.pdf", want: true},
		{name: "allowed with leading dot and case", filename: "pic.png", want: true},
		{name: "uppercase filename extension", filename: "SCAN.PDF", want: true},
		{name: "disallowed extension", filename: "run.exe", want: false},
		{name: "no extension", filename: "README", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &mailparse.EmailMessage{
				Subject:     "x",
				Attachments: []mailparse.Attachment{{Filename: tt.filename, Size: 1}},
			}
			accepted, filter := chain.Accept(context.Background(), msg)
			assert.Equal(t, tt.want, accepted)
			if !tt.want {
				assert.Equal(t, "attachment_type", filter)
			}
		})
	}
}

func TestFilterChainRule(t *testing.T) {
	chain := newChain(t, config.FilterConfig{Rule: `sender.endsWith("@example.com") && attachment_count <= 3`})

	ok := &mailparse.EmailMessage{
		Subject:     "hi",
		Sender:      "alice@example.com",
		Attachments: []mailparse.Attachment{{Filename: "a.pdf", Size: 1}},
	}
	accepted, _ := chain.Accept(context.Background(), ok)
	assert.True(t, accepted)

	stranger := &mailparse.EmailMessage{Subject: "hi", Sender: "mallory@evil.test"}
	accepted, filter := chain.Accept(context.Background(), stranger)
	assert.False(t, accepted)
	assert.Equal(t, "rule", filter)
}

func TestFilterChainRuleErrorFallback(t *testing.T) {
	// Indexing an empty list fails at evaluation time, not compile time.
	ruleExpr := `attachment_names[0] == "a.pdf"`
	msg := &mailparse.EmailMessage{Subject: "hi", Sender: "alice@example.com"}

	deny := newChain(t, config.FilterConfig{
		Rule:     ruleExpr,
		Fallback: config.FallbackConfig{OnError: "deny"},
	})
	accepted, filter := deny.Accept(context.Background(), msg)
	assert.False(t, accepted)
	assert.Equal(t, "rule", filter)

	allow := newChain(t, config.FilterConfig{
		Rule:     ruleExpr,
		Fallback: config.FallbackConfig{OnError: "allow"},
	})
	accepted, _ = allow.Accept(context.Background(), msg)
	assert.True(t, accepted)
}

func TestNewFilterChainRejectsBadRule(t *testing.T) {
	_, err := NewFilterChain(config.FilterConfig{Rule: `subject ==`}, logger.NopLogger())
	assert.Error(t, err)

	_, err = NewFilterChain(config.FilterConfig{Rule: `subject`}, logger.NopLogger())
	assert.Error(t, err, "non-boolean rules are a configuration error")
}

func TestFilterChainOrder(t *testing.T) {
	// Subject rejection is reported even when the attachment would also
	// fail, because the subject filter runs first.
	chain := newChain(t, config.FilterConfig{
		SubjectKeywords:        []string{"invoice"},
		AllowedAttachmentTypes: []string{"pdf"},
	})

	msg := &mailparse.EmailMessage{
		Subject:     "hello",
		Attachments: []mailparse.Attachment{{Filename: "run.exe", Size: 1}},
	}
	accepted, filter := chain.Accept(context.Background(), msg)
	assert.False(t, accepted)
	assert.Equal(t, "subject_keywords", filter)
}
