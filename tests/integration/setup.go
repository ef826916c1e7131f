package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	greenmailImage = "greenmail/standalone:2.1.3"
	imapPort       = "3143/tcp"
	smtpPort       = "3025/tcp"

	testUser     = "printer"
	testPassword = "secret"
	testAddress  = "printer@example.com"
)

// TestInfra is a throwaway GreenMail instance. Mail goes in over SMTP and
// the code under test drains it over IMAP, same as production.
type TestInfra struct {
	IMAPHost string
	IMAPPort int
	SMTPAddr string
}

func SetupTestInfra(t *testing.T) *TestInfra {
	t.Helper()

	ctx := context.Background()

	if os.Getenv("TESTCONTAINERS_RYUK_DISABLED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        greenmailImage,
			ExposedPorts: []string{smtpPort, imapPort},
			Env: map[string]string{
				"GREENMAIL_OPTS": fmt.Sprintf(
					"-Dgreenmail.setup.test.smtp -Dgreenmail.setup.test.imap -Dgreenmail.hostname=0.0.0.0 -Dgreenmail.users=%s:%s@example.com",
					testUser, testPassword,
				),
			},
			WaitingFor: wait.ForListeningPort(imapPort).WithStartupTimeout(containerStartupTimeout * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start greenmail container: %v", err)
	}
	t.Cleanup(func() {
		container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}

	imapMapped, err := container.MappedPort(ctx, imapPort)
	if err != nil {
		t.Fatalf("failed to get imap port: %v", err)
	}

	smtpMapped, err := container.MappedPort(ctx, smtpPort)
	if err != nil {
		t.Fatalf("failed to get smtp port: %v", err)
	}

	return &TestInfra{
		IMAPHost: host,
		IMAPPort: imapMapped.Int(),
		SMTPAddr: fmt.Sprintf("%s:%d", host, smtpMapped.Int()),
	}
}
