// Package inbound turns mail received at the reply domain into messages the
// intake service can file against requests.
package inbound

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// Message is one received email.
type Message struct {
	MessageID   string
	From        string
	To          []string
	Subject     string
	Date        time.Time
	Text        string
	HTML        string
	Attachments []Attachment
}

type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Parse reads an RFC 5322 message. Recipients include Cc and Delivered-To so
// a reply address is found however the agency addressed it.
func Parse(r io.Reader) (*Message, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("reading message: %w", err)
	}
	defer mr.Close()

	h := mr.Header
	msg := &Message{}
	msg.MessageID, _ = h.MessageID()
	msg.Subject, _ = h.Subject()
	if d, err := h.Date(); err == nil {
		msg.Date = d.UTC()
	}
	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = from[0].Address
	}
	for _, key := range []string{"To", "Cc", "Delivered-To"} {
		list, err := h.AddressList(key)
		if err != nil {
			continue
		}
		for _, a := range list {
			msg.To = append(msg.To, a.Address)
		}
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return msg, fmt.Errorf("reading part: %w", err)
		}
		switch ph := part.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := ph.ContentType()
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			switch {
			case strings.HasPrefix(ct, "text/plain") && msg.Text == "":
				msg.Text = string(body)
			case strings.HasPrefix(ct, "text/html") && msg.HTML == "":
				msg.HTML = string(body)
			}
		case *mail.AttachmentHeader:
			name, _ := ph.Filename()
			ct, _, _ := ph.ContentType()
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			if name == "" {
				name = fmt.Sprintf("attachment-%d", len(msg.Attachments)+1)
			}
			msg.Attachments = append(msg.Attachments, Attachment{Name: name, ContentType: ct, Data: body})
		}
	}
	return msg, nil
}

// ParseBytes is Parse over an in-memory message.
func ParseBytes(raw []byte) (*Message, error) {
	return Parse(bytes.NewReader(raw))
}

// RequestID finds the request a message was sent to from a reply address
// of the form <prefix>+<id>@<domain>.
func (m *Message) RequestID(prefix, domain string) (int64, bool) {
	for _, addr := range m.To {
		if id, ok := ParseReplyAddress(addr, prefix, domain); ok {
			return id, true
		}
	}
	return 0, false
}

func ParseReplyAddress(addr, prefix, domain string) (int64, bool) {
	local, host, ok := strings.Cut(strings.ToLower(strings.TrimSpace(addr)), "@")
	if !ok || host != strings.ToLower(domain) {
		return 0, false
	}
	tag, ok := strings.CutPrefix(local, strings.ToLower(prefix)+"+")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(tag, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
