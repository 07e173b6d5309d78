package tele

import (
	"encoding/json"
	"time"

	"github.com/juju/errors"
)

// Message is the plaintext carried inside envelopes, both directions:
// operator->device it is a brightness command, device->operator a state
// report of the applied brightness. Wire form is compact JSON to match
// the device firmware.
type Message struct {
	Device     string `json:"device"`
	Brightness int    `json:"brightness"`
	Timestamp  int64  `json:"timestamp"`
}

func NewMessage(device string, brightness int) *Message {
	return &Message{
		Device:     device,
		Brightness: brightness,
		Timestamp:  time.Now().Unix(),
	}
}

func (m *Message) Validate() error {
	if m.Device == "" {
		return errors.NotValidf("message device empty")
	}
	if m.Brightness < 0 || m.Brightness > 255 {
		return errors.NotValidf("message brightness=%d", m.Brightness)
	}
	return nil
}

func (m *Message) Marshal() ([]byte, error) {
	b, err := json.Marshal(m)
	return b, errors.Annotate(err, "message marshal")
}

func parseMessage(b []byte) (*Message, error) {
	m := new(Message)
	if err := json.Unmarshal(b, m); err != nil {
		return nil, errors.Annotatef(err, "message parse raw=%s", string(b))
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
