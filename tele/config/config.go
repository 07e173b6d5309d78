package tele_config

import (
	"encoding/hex"

	"github.com/juju/errors"
	"github.com/lumistat/ledsec/envelope"
)

const (
	DefaultCommandTopic = "led/control/encrypted"
	DefaultStateTopic   = "led/state/encrypted"
)

type Config struct { //nolint:maligned
	Enabled bool   `hcl:"enable"`
	Role    Role   `hcl:"role"`
	Device  string `hcl:"device"`

	Broker    string `hcl:"broker"`
	ClientID  string `hcl:"client_id"`
	Username  string `hcl:"username"`
	Password  string `hcl:"password"`
	TLSCaFile string `hcl:"tls_ca_file"`

	CommandTopic string `hcl:"command_topic"`
	StateTopic   string `hcl:"state_topic"`

	// pre-shared envelope keys, hex: 32 chars cipher, 64 chars integrity
	CipherKeyHex    string `hcl:"cipher_key_hex"`
	IntegrityKeyHex string `hcl:"integrity_key_hex"`

	KeepaliveSec      int    `hcl:"keepalive_sec"`
	NetworkTimeoutSec int    `hcl:"network_timeout_sec"`
	PersistPath       string `hcl:"persist_path"`
	StorePath         string `hcl:"store_path"`
	LogDebug          bool   `hcl:"log_debug"`
}

// Keys decodes and validates the pre-shared key pair. Key problems are
// startup config errors, envelope Seal/Open never see invalid keys.
func (c *Config) Keys() (envelope.Keys, error) {
	ck, err := hex.DecodeString(c.CipherKeyHex)
	if err != nil {
		return envelope.Keys{}, errors.Annotate(err, "config cipher_key_hex")
	}
	ik, err := hex.DecodeString(c.IntegrityKeyHex)
	if err != nil {
		return envelope.Keys{}, errors.Annotate(err, "config integrity_key_hex")
	}
	keys, err := envelope.NewKeys(ck, ik)
	if err != nil {
		return envelope.Keys{}, errors.Annotatef(err, "config keys cipher=%d/%d integrity=%d/%d bytes",
			len(ck), envelope.CipherKeySize, len(ik), envelope.IntegrityKeySize)
	}
	return keys, nil
}

// SubscribeTopic is the inbound topic for this party's role:
// device consumes commands, operator consumes state reports.
func (c *Config) SubscribeTopic() string {
	if c.Role == RoleOperator {
		return c.StateTopicOrDefault()
	}
	return c.CommandTopicOrDefault()
}

func (c *Config) CommandTopicOrDefault() string {
	if c.CommandTopic == "" {
		return DefaultCommandTopic
	}
	return c.CommandTopic
}

func (c *Config) StateTopicOrDefault() string {
	if c.StateTopic == "" {
		return DefaultStateTopic
	}
	return c.StateTopic
}
