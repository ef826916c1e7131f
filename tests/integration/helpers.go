package integration

import (
	"encoding/base64"
	"fmt"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/adaoss/Mail2printer/internal/config"
	"github.com/adaoss/Mail2printer/internal/constants"
	"github.com/adaoss/Mail2printer/internal/logger"
)

const (
	containerStartupTimeout = 60
	searchWaitTimeout       = 10 * time.Second
	searchPollInterval      = 200 * time.Millisecond
)

func createTestLogger() logger.Logger {
	return logger.NopLogger()
}

func createTestEmailConfig(infra *TestInfra) config.EmailConfig {
	return config.EmailConfig{
		Server:               infra.IMAPHost,
		Port:                 infra.IMAPPort,
		Username:             testUser,
		Password:             testPassword,
		UseSSL:               false,
		Folder:               "INBOX",
		CheckIntervalSeconds: 60,
	}
}

func createTestFilterConfig(keywords ...string) config.FilterConfig {
	return config.FilterConfig{
		SubjectKeywords: keywords,
		Fallback: config.FallbackConfig{
			OnError: constants.FallbackDeny,
		},
	}
}

func deliver(t *testing.T, infra *TestInfra, from string, raw []byte) {
	t.Helper()
	if err := smtp.SendMail(infra.SMTPAddr, nil, from, []string{testAddress}, raw); err != nil {
		t.Fatalf("failed to deliver message: %v", err)
	}
}

func textMessage(from, subject, messageID, body string) []byte {
	lines := []string{
		fmt.Sprintf("From: %s", from),
		fmt.Sprintf("To: %s", testAddress),
		fmt.Sprintf("Subject: %s", subject),
		fmt.Sprintf("Message-Id: <%s>", messageID),
		fmt.Sprintf("Date: %s", time.Now().UTC().Format(time.RFC1123Z)),
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

func mixedMessage(from, subject, messageID, text, attName string, attData []byte) []byte {
	lines := []string{
		fmt.Sprintf("From: %s", from),
		fmt.Sprintf("To: %s", testAddress),
		fmt.Sprintf("Subject: %s", subject),
		fmt.Sprintf("Message-Id: <%s>", messageID),
		fmt.Sprintf("Date: %s", time.Now().UTC().Format(time.RFC1123Z)),
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="BOUNDARY"`,
		"",
		"--BOUNDARY",
		"Content-Type: text/plain; charset=utf-8",
		"",
		text,
		"--BOUNDARY",
		fmt.Sprintf("Content-Type: application/pdf; name=%q", attName),
		fmt.Sprintf("Content-Disposition: attachment; filename=%q", attName),
		"Content-Transfer-Encoding: base64",
		"",
		base64.StdEncoding.EncodeToString(attData),
		"--BOUNDARY--",
	}
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}
