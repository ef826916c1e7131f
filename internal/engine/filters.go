package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/adaoss/Mail2printer/internal/config"
	"github.com/adaoss/Mail2printer/internal/constants"
	"github.com/adaoss/Mail2printer/internal/logger"
	"github.com/adaoss/Mail2printer/internal/mailparse"
	"github.com/adaoss/Mail2printer/pkg/rules"
)

// FilterChain applies the configured message filters in a fixed order:
// subject keywords, attachment size, attachment type, then the optional
// rule expression. The first rejection wins.
type FilterChain struct {
	cfg  config.FilterConfig
	rule *rules.Rule
	log  logger.Logger
}

func NewFilterChain(cfg config.FilterConfig, log logger.Logger) (*FilterChain, error) {
	chain := &FilterChain{cfg: cfg, log: log}

	if strings.TrimSpace(cfg.Rule) != "" {
		evaluator, err := rules.NewEvaluator()
		if err != nil {
			return nil, fmt.Errorf("failed to create rule evaluator: %w", err)
		}
		rule, err := evaluator.Compile(cfg.Rule)
		if err != nil {
			return nil, fmt.Errorf("failed to compile filter rule: %w", err)
		}
		chain.rule = rule
	}

	return chain, nil
}

// Accept reports whether the message passes all filters. On rejection
// the second return value names the filter that dropped it.
func (f *FilterChain) Accept(ctx context.Context, msg *mailparse.EmailMessage) (bool, string) {
	if !f.matchesSubject(msg.Subject) {
		return false, "subject_keywords"
	}

	if name, ok := f.oversizedAttachment(msg); ok {
		f.log.DebugwCtx(ctx, "Attachment exceeds size limit",
			"filename", name,
			"max_bytes", f.cfg.MaxAttachmentSize,
		)
		return false, "attachment_size"
	}

	if name, ok := f.disallowedAttachment(msg); ok {
		f.log.DebugwCtx(ctx, "Attachment type not allowed", "filename", name)
		return false, "attachment_type"
	}

	if f.rule != nil && !f.evaluateRule(ctx, msg) {
		return false, "rule"
	}

	return true, ""
}

// matchesSubject is a case-insensitive substring match against any
// configured keyword. An empty keyword list passes everything.
func (f *FilterChain) matchesSubject(subject string) bool {
	if len(f.cfg.SubjectKeywords) == 0 {
		return true
	}
	lowered := strings.ToLower(subject)
	for _, keyword := range f.cfg.SubjectKeywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}

// oversizedAttachment returns the first attachment over the configured
// cap. Any single oversized attachment rejects the whole message.
func (f *FilterChain) oversizedAttachment(msg *mailparse.EmailMessage) (string, bool) {
	if f.cfg.MaxAttachmentSize <= 0 {
		return "", false
	}
	for _, att := range msg.Attachments {
		if att.Size > f.cfg.MaxAttachmentSize {
			return att.Filename, true
		}
	}
	return "", false
}

// disallowedAttachment returns the first attachment whose filename
// extension is outside the allow-list. An empty allow-list passes
// everything; a file without an extension never matches a non-empty one.
func (f *FilterChain) disallowedAttachment(msg *mailparse.EmailMessage) (string, bool) {
	if len(f.cfg.AllowedAttachmentTypes) == 0 {
		return "", false
	}
	allowed := make(map[string]struct{}, len(f.cfg.AllowedAttachmentTypes))
	for _, t := range f.cfg.AllowedAttachmentTypes {
		allowed[strings.TrimPrefix(strings.ToLower(t), ".")] = struct{}{}
	}
	for _, att := range msg.Attachments {
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(att.Filename)), ".")
		if _, ok := allowed[ext]; !ok {
			return att.Filename, true
		}
	}
	return "", false
}

func (f *FilterChain) evaluateRule(ctx context.Context, msg *mailparse.EmailMessage) bool {
	result, err := f.rule.Eval(ctx, rules.MessageVars{
		Subject:         msg.Subject,
		Sender:          msg.Sender,
		Recipient:       msg.Recipient,
		AttachmentCount: len(msg.Attachments),
		AttachmentNames: msg.AttachmentNames(),
		AttachmentSize:  msg.TotalAttachmentSize(),
		HasText:         msg.HasText(),
		HasHTML:         msg.HasHTML(),
	})
	if err == nil {
		if !result {
			f.log.DebugwCtx(ctx, "Rule filtered message", "rule", f.rule.Expression())
		}
		return result
	}

	switch f.cfg.Fallback.OnError {
	case constants.FallbackAllow:
		f.log.WarnwCtx(ctx, "Rule evaluation error, allowing message (fallback: allow)",
			"rule", f.rule.Expression(),
			"error", err,
		)
		return true
	default:
		f.log.WarnwCtx(ctx, "Rule evaluation error, denying message (fallback: deny)",
			"rule", f.rule.Expression(),
			"error", err,
		)
		return false
	}
}
