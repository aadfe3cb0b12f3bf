package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Mailbox is one POP3 account the gateway drains, with the senders it
// accepts mail from. Anything from an unlisted sender is quarantined.
type Mailbox struct {
	Name      string   `yaml:"name"`
	Host      string   `yaml:"host"`
	Port      int      `yaml:"port"`
	TLS       bool     `yaml:"tls"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	Whitelist []string `yaml:"whitelist"`
}

type Mailboxes struct {
	Mailboxes []Mailbox `yaml:"mailboxes"`
}

// LoadMailboxes reads the mailbox definitions from the YAML file named by
// MAILBOXES_CONFIG_PATH.
func LoadMailboxes(path string) ([]Mailbox, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mailbox config: %w", err)
	}
	var parsed Mailboxes
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse mailbox config: %w", err)
	}
	for i, mb := range parsed.Mailboxes {
		if mb.Name == "" || mb.Host == "" {
			return nil, fmt.Errorf("mailbox %d: name and host are required", i)
		}
		if mb.Port == 0 {
			parsed.Mailboxes[i].Port = 110
		}
	}
	return parsed.Mailboxes, nil
}
