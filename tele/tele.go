// Package tele moves brightness commands and state reports between
// operator and device over MQTT, sealed in authenticated envelopes.
//
// Contract:
//   - Init fails only with invalid config or broken persistence, network
//     issues are retried in background
//   - Send* block at most for disk write, delivery happens in background
//     with at-least-once semantics
//   - inbound envelopes are opened one at a time; a rejected message is
//     ignored and does not affect later messages
//   - with enable=false the client is inert: Send* calls log and drop
//   - Close blocks until the queue worker stops
package tele

import (
	"context"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/spq"

	"github.com/lumistat/ledsec/envelope"
	"github.com/lumistat/ledsec/log2"
	tele_config "github.com/lumistat/ledsec/tele/config"
)

// Handler receives verified, decrypted, validated inbound messages.
type Handler func(ctx context.Context, m *Message) error

type Client struct { //nolint:maligned
	alive     *alive.Alive
	config    tele_config.Config
	keys      envelope.Keys
	log       *log2.Log
	onMessage Handler
	q         *spq.Queue
	stat      Stat
	transport Transporter
}

func New() *Client { return &Client{} }

// NewWithTransporter is the test constructor.
func NewWithTransporter(trans Transporter) *Client { return &Client{transport: trans} }

func (c *Client) Init(ctx context.Context, log *log2.Log, config tele_config.Config, onMessage Handler) error {
	c.config = config
	c.log = log
	c.onMessage = onMessage
	if config.LogDebug {
		c.log.SetLevel(log2.LDebug)
	}

	keys, err := config.Keys()
	if err != nil {
		return errors.Annotate(err, "tele keys")
	}
	c.keys = keys
	c.alive = alive.NewAlive()
	c.stat.init()

	if !config.Enabled {
		c.log.Infof(logMsgDisabled)
		return nil
	}

	if c.transport == nil { // production path
		c.transport = &transportMqtt{}
	}
	transportCallback := func(topic string, payload []byte) bool {
		return c.receive(ctx, topic, payload)
	}
	if err := c.transport.Init(ctx, log, config, transportCallback); err != nil {
		return errors.Annotate(err, "tele transport")
	}

	if config.PersistPath == "" {
		panic("code error must set tele.persist_path")
	}
	c.q, err = spq.Open(config.PersistPath)
	if err != nil {
		return errors.Annotate(err, "tele queue")
	}
	c.alive.Add(1)
	go c.qworker()
	return nil
}

const logMsgDisabled = "tele disabled"

func (c *Client) Close() {
	if c.q != nil {
		_ = c.q.Close()
	}
	if c.transport != nil {
		c.transport.Close()
	}
	c.alive.Stop()
	c.alive.Wait()
}

func (c *Client) Stat() *Stat { return &c.stat }

// SendCommand seals m and queues it for the device command topic.
func (c *Client) SendCommand(m *Message) error {
	return c.qpush(qCommand, m)
}

// SendState seals m and queues it for the state report topic.
func (c *Client) SendState(m *Message) error {
	return c.qpush(qState, m)
}

// denote destination topic in persistent queue bytes form
const (
	qCommand byte = 1
	qState   byte = 2
)

func (c *Client) qpush(kind byte, m *Message) error {
	if c.q == nil {
		c.log.Infof(logMsgDisabled)
		return nil
	}
	if err := m.Validate(); err != nil {
		return err
	}
	plain, err := m.Marshal()
	if err != nil {
		return err
	}
	env, err := c.keys.Seal(plain)
	if err != nil {
		// CSPRNG failure, nothing was queued or sent
		return errors.Annotate(err, "tele seal")
	}
	c.stat.Lock()
	c.stat.Sealed++
	c.stat.Unlock()

	buf := make([]byte, 0, 1+len(env))
	buf = append(buf, kind)
	buf = append(buf, env...)
	return errors.Annotate(c.q.Push(buf), "tele queue push")
}

func (c *Client) qworker() {
	defer c.alive.Done()
	for {
		box, err := c.q.Peek()
		switch err {
		case nil:
			b := box.Bytes()
			sent := c.qhandle(b)
			if sent {
				err = c.q.Delete(box)
			} else {
				// requeue to tail, try again later
				err = c.q.DeletePush(box)
			}
			if err != nil {
				c.log.Errorf("tele queue sent=%t b=%x err=%v", sent, b, err)
			}

		case spq.ErrClosed:
			return

		default:
			c.log.Errorf("CRITICAL tele queue err=%v", err)
			return
		}
	}
}

func (c *Client) qhandle(b []byte) bool {
	if len(b) < 1+envelope.MinSize {
		c.log.Errorf("tele queue invalid entry b=%x", b)
		return true // drop, retry will not help
	}
	switch b[0] {
	case qCommand:
		return c.transport.Send(c.config.CommandTopicOrDefault(), b[1:])
	case qState:
		return c.transport.Send(c.config.StateTopicOrDefault(), b[1:])
	default:
		c.log.Errorf("tele queue unknown kind=%d", b[0])
		return true
	}
}

// receive opens one inbound envelope. Rejections are counted, logged and
// swallowed: the transport keeps delivering subsequent messages.
func (c *Client) receive(ctx context.Context, topic string, payload []byte) bool {
	plain, err := c.keys.Open(payload)
	if err != nil {
		c.reject(err, topic, len(payload))
		return true
	}
	c.stat.Lock()
	c.stat.Opened++
	c.stat.Unlock()
	c.stat.LastOpened.SetNow()

	m, err := parseMessage(plain)
	if err != nil {
		c.stat.Lock()
		c.stat.RejectParse++
		c.stat.Unlock()
		c.log.Infof("message ignored classification=parse topic=%s err=%v", topic, err)
		return true
	}

	c.log.Debugf("tele message topic=%s device=%s brightness=%d", topic, m.Device, m.Brightness)
	if c.onMessage != nil {
		if err := c.onMessage(ctx, m); err != nil {
			c.log.Error(errors.Annotatef(err, "tele handler topic=%s", topic))
		}
	}
	return true
}

// reject logs only classification, topic and length. Payload content and
// crypto internals stay out of logs.
func (c *Client) reject(err error, topic string, length int) {
	classification := "error"
	c.stat.Lock()
	switch errors.Cause(err) {
	case envelope.ErrMalformed:
		c.stat.RejectMalformed++
		classification = "malformed"
	case envelope.ErrIntegrity:
		c.stat.RejectIntegrity++
		classification = "integrity"
	case envelope.ErrInvalidPadding:
		c.stat.RejectPadding++
		classification = "padding"
	}
	c.stat.Unlock()
	c.log.Infof("message ignored classification=%s topic=%s length=%d", classification, topic, length)
}
