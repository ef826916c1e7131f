package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"

	"github.com/adaoss/Mail2printer/internal/config"
	"github.com/adaoss/Mail2printer/internal/logger"
)

const (
	dialTimeout    = 10 * time.Second
	commandTimeout = 30 * time.Second
)

// Client is the mailbox surface the polling engine depends on. Flag
// operations are UID-based so a concurrent expunge cannot shift the
// identifiers under us mid-cycle.
type Client interface {
	Connect(ctx context.Context) error
	Connected() bool
	SearchUnseen(ctx context.Context) ([]uint32, error)
	Fetch(ctx context.Context, uid uint32) ([]byte, error)
	MarkSeen(ctx context.Context, uid uint32) error
	MarkDeleted(ctx context.Context, uid uint32) error
	Expunge(ctx context.Context) error
	Ping(ctx context.Context) error
	Disconnect() error
}

type imapClient struct {
	cfg config.EmailConfig
	log logger.Logger

	mu     sync.Mutex
	client *imapclient.Client
}

func NewClient(cfg config.EmailConfig, log logger.Logger) Client {
	return &imapClient{
		cfg: cfg,
		log: log,
	}
}

func (c *imapClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *imapClient) connectLocked(ctx context.Context) error {
	if c.client != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", c.cfg.Server, c.cfg.Port)
	dialer := &net.Dialer{Timeout: dialTimeout}

	var cl *imapclient.Client
	var err error
	if c.cfg.UseSSL {
		tlsConfig := &tls.Config{ServerName: c.cfg.Server}
		cl, err = imapclient.DialWithDialerTLS(dialer, addr, tlsConfig)
	} else {
		cl, err = imapclient.DialWithDialer(dialer, addr)
	}
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	cl.Timeout = commandTimeout

	if err := cl.Login(c.cfg.Username, c.cfg.Password); err != nil {
		_ = cl.Logout()
		return fmt.Errorf("login failed for %s: %w", c.cfg.Username, err)
	}

	c.client = cl
	c.log.Infow("Connected to mailbox", "server", addr, "folder", c.cfg.Folder)
	return nil
}

func (c *imapClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client != nil
}

// SearchUnseen selects the configured folder and returns the UIDs of unread
// messages matching the sender allow/block predicate, in mailbox order.
func (c *imapClient) SearchUnseen(ctx context.Context) ([]uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireConnection(ctx); err != nil {
		return nil, err
	}

	if _, err := c.client.Select(c.cfg.Folder, false); err != nil {
		return nil, fmt.Errorf("failed to select folder %q: %w", c.cfg.Folder, err)
	}

	criteria := BuildSearchCriteria(c.cfg.AllowedSenders, c.cfg.BlockedSenders)
	uids, err := c.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("search failed in folder %q: %w", c.cfg.Folder, err)
	}
	return uids, nil
}

// Fetch returns the raw RFC 5322 bytes of a single message.
func (c *imapClient) Fetch(ctx context.Context, uid uint32) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireConnection(ctx); err != nil {
		return nil, err
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	ch := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.client.UidFetch(seqset, items, ch)
	}()

	msg := <-ch
	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch failed for uid %d: %w", uid, err)
	}
	if msg == nil {
		return nil, fmt.Errorf("message uid %d not found", uid)
	}

	body := msg.GetBody(section)
	if body == nil {
		return nil, fmt.Errorf("message uid %d has no body section", uid)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body of uid %d: %w", uid, err)
	}
	return raw, nil
}

func (c *imapClient) MarkSeen(ctx context.Context, uid uint32) error {
	return c.addFlag(ctx, uid, imap.SeenFlag)
}

func (c *imapClient) MarkDeleted(ctx context.Context, uid uint32) error {
	return c.addFlag(ctx, uid, imap.DeletedFlag)
}

func (c *imapClient) addFlag(ctx context.Context, uid uint32, flag string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireConnection(ctx); err != nil {
		return err
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.client.UidStore(seqset, item, []interface{}{flag}, nil); err != nil {
		return fmt.Errorf("failed to set flag %s on uid %d: %w", flag, uid, err)
	}
	return nil
}

// Expunge permanently removes all messages flagged \Deleted in the selected
// folder. The engine calls this at most once per poll cycle.
func (c *imapClient) Expunge(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireConnection(ctx); err != nil {
		return err
	}

	ch := make(chan uint32)
	done := make(chan error, 1)
	go func() {
		done <- c.client.Expunge(ch)
	}()
	for range ch {
	}
	if err := <-done; err != nil {
		return fmt.Errorf("expunge failed: %w", err)
	}
	return nil
}

// Ping reports connectivity for health checks. A live connection is verified
// with NOOP; an absent one is an error. Ping never dials: the polling loop
// owns connection establishment, so a broken link found here is only dropped
// and the next cycle reconnects.
func (c *imapClient) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if c.client == nil {
		return fmt.Errorf("not connected to mailbox")
	}
	if err := c.client.Noop(); err != nil {
		c.dropLocked()
		return fmt.Errorf("noop failed: %w", err)
	}
	return nil
}

func (c *imapClient) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil
	}
	err := c.client.Logout()
	c.client = nil
	if err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	return nil
}

func (c *imapClient) requireConnection(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.client == nil {
		return fmt.Errorf("not connected to mailbox")
	}
	return nil
}

// dropLocked discards the connection without a logout round trip. Used when
// the link is already known broken.
func (c *imapClient) dropLocked() {
	if c.client == nil {
		return
	}
	_ = c.client.Terminate()
	c.client = nil
}
