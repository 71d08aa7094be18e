package inbound

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"recordsdesk/internal/config"
)

// Handler files one message. Returning an error leaves it unseen so the
// next poll retries it.
type Handler func(ctx context.Context, msg *Message) error

// Poller reads unseen mail from an IMAP inbox.
type Poller struct {
	cfg    config.IMAPConfig
	handle Handler
}

func NewPoller(cfg config.IMAPConfig, h Handler) *Poller {
	return &Poller{cfg: cfg, handle: h}
}

func (p *Poller) connect() (*imapclient.Client, error) {
	addr := p.cfg.Host + ":" + p.cfg.Port
	var c *imapclient.Client
	var err error
	if p.cfg.TLS {
		c, err = imapclient.DialTLS(addr, nil)
	} else {
		c, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}
	if err := c.Login(p.cfg.Username, p.cfg.Password).Wait(); err != nil {
		_ = c.Logout().Wait()
		return nil, fmt.Errorf("imap login %s: %w", p.cfg.Username, err)
	}
	return c, nil
}

// PollOnce handles every unseen message in INBOX and marks the handled ones
// seen. It returns how many were handled.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	c, err := p.connect()
	if err != nil {
		return 0, err
	}
	defer func() { _ = c.Logout().Wait() }()

	if _, err := c.Select("INBOX", nil).Wait(); err != nil {
		return 0, fmt.Errorf("selecting INBOX: %w", err)
	}
	found, err := c.UIDSearch(&imap.SearchCriteria{NotFlag: []imap.Flag{imap.FlagSeen}}, nil).Wait()
	if err != nil {
		return 0, fmt.Errorf("searching unseen: %w", err)
	}
	uids := found.AllUIDs()
	if len(uids) == 0 {
		return 0, nil
	}

	section := &imap.FetchItemBodySection{Peek: true}
	fetch := c.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	})
	var bufs []*imapclient.FetchMessageBuffer
	for {
		m := fetch.Next()
		if m == nil {
			break
		}
		buf, err := m.Collect()
		if err != nil {
			log.Printf("[imap][fetch][err] %v", err)
			continue
		}
		bufs = append(bufs, buf)
	}
	if err := fetch.Close(); err != nil {
		return 0, fmt.Errorf("fetching messages: %w", err)
	}

	var handled []imap.UID
	for _, buf := range bufs {
		if ctx.Err() != nil {
			break
		}
		raw := buf.FindBodySection(section)
		if raw == nil {
			continue
		}
		msg, err := ParseBytes(raw)
		if err != nil {
			log.Printf("[imap][parse][err] uid=%d err=%v", buf.UID, err)
			continue
		}
		if err := p.handle(ctx, msg); err != nil {
			log.Printf("[imap][handle][err] uid=%d message_id=%s err=%v", buf.UID, msg.MessageID, err)
			continue
		}
		handled = append(handled, buf.UID)
	}

	if len(handled) > 0 {
		store := c.Store(imap.UIDSetNum(handled...), &imap.StoreFlags{
			Op:     imap.StoreFlagsAdd,
			Silent: true,
			Flags:  []imap.Flag{imap.FlagSeen},
		}, nil)
		if err := store.Close(); err != nil {
			return len(handled), fmt.Errorf("marking seen: %w", err)
		}
	}
	log.Printf("[imap][poll][ok] unseen=%d handled=%d", len(uids), len(handled))
	return len(handled), nil
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	interval := p.cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := p.PollOnce(ctx); err != nil {
			log.Printf("[imap][poll][err] %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
