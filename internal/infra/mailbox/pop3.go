// Package mailbox wraps the POP3 and SMTP sides of the gateway's mail
// plumbing. Routing decisions stay in the usecase layer; this package only
// moves messages.
package mailbox

import (
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message/mail"
	"github.com/knadh/go-pop3"

	"chiefgate/internal/config"
)

// Header is the peeked envelope of one message, enough to decide whether
// to retrieve it.
type Header struct {
	MessageID string
	Sender    string
	Subject   string
}

type Client struct {
	box config.Mailbox
}

func NewClient(box config.Mailbox) *Client {
	return &Client{box: box}
}

func (c *Client) Mailbox() string { return c.box.Name }

// Whitelisted reports whether the sender address is on the mailbox's
// accepted list. Matching is case-insensitive on the address.
func (c *Client) Whitelisted(sender string) bool {
	for _, allowed := range c.box.Whitelist {
		if strings.EqualFold(sender, allowed) {
			return true
		}
	}
	return false
}

// Connect opens and authenticates a POP3 session.
func (c *Client) Connect() (*Session, error) {
	p := pop3.New(pop3.Opt{
		Host:       c.box.Host,
		Port:       c.box.Port,
		TLSEnabled: c.box.TLS,
	})
	conn, err := p.NewConn()
	if err != nil {
		return nil, fmt.Errorf("mailbox %s: connect: %w", c.box.Name, err)
	}
	if err := conn.Auth(c.box.Username, c.box.Password); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("mailbox %s: auth: %w", c.box.Name, err)
	}
	return &Session{conn: conn}, nil
}

type Session struct {
	conn *pop3.Conn
}

// List returns the server's message ids in server order.
func (s *Session) List() ([]int, error) {
	msgs, err := s.conn.List(0)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// Peek fetches only the headers of a message.
func (s *Session) Peek(id int) (Header, error) {
	entity, err := s.conn.Top(id, 0)
	if err != nil {
		return Header{}, err
	}
	header := Header{
		MessageID: strings.Trim(entity.Header.Get("Message-Id"), "<>"),
		Subject:   entity.Header.Get("Subject"),
	}
	mh := mail.Header{Header: entity.Header}
	if addrs, err := mh.AddressList("From"); err == nil && len(addrs) > 0 {
		header.Sender = addrs[0].Address
	} else {
		header.Sender = entity.Header.Get("From")
	}
	return header, nil
}

// Retrieve fetches the full raw message.
func (s *Session) Retrieve(id int) ([]byte, error) {
	buf, err := s.conn.RetrRaw(id)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(buf)
}

func (s *Session) Quit() error {
	return s.conn.Quit()
}
