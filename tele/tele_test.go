package tele_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/spq"

	"github.com/lumistat/ledsec/envelope"
	"github.com/lumistat/ledsec/helpers"
	"github.com/lumistat/ledsec/log2"
	"github.com/lumistat/ledsec/tele"
	tele_config "github.com/lumistat/ledsec/tele/config"
)

const testTimeout = 5 * time.Second

const (
	testCipherKeyHex    = "2b7e151628aed2a6abf7158809cf4f3c"
	testIntegrityKeyHex = "0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b"
)

type testMsg struct {
	topic   string
	payload []byte
}

// in-memory Transporter: Send records outbound frames and forwards them
// to the peer transport's inbound callback, like a zero-latency broker
type testTransport struct {
	mu        sync.Mutex
	onMessage tele.MessageCallback
	sent      chan testMsg
	peer      *testTransport
}

func newTestTransport() *testTransport {
	return &testTransport{sent: make(chan testMsg, 32)}
}

func (tt *testTransport) Init(ctx context.Context, log *log2.Log, config tele_config.Config, onMessage tele.MessageCallback) error {
	tt.mu.Lock()
	tt.onMessage = onMessage
	tt.mu.Unlock()
	return nil
}

func (tt *testTransport) Send(topic string, payload []byte) bool {
	cp := append([]byte(nil), payload...)
	tt.sent <- testMsg{topic: topic, payload: cp}
	if p := tt.peer; p != nil {
		p.Inject(topic, cp)
	}
	return true
}

func (tt *testTransport) Inject(topic string, payload []byte) bool {
	tt.mu.Lock()
	cb := tt.onMessage
	tt.mu.Unlock()
	if cb == nil {
		panic("code error Inject before Init")
	}
	return cb(topic, payload)
}

func (tt *testTransport) Close() {}

func testConfig(role tele_config.Role, device string) tele_config.Config {
	return tele_config.Config{
		Enabled:         true,
		Role:            role,
		Device:          device,
		CipherKeyHex:    testCipherKeyHex,
		IntegrityKeyHex: testIntegrityKeyHex,
		PersistPath:     spq.OnlyForTesting,
	}
}

func testKeys(t testing.TB) envelope.Keys {
	k, err := envelope.NewKeys(
		helpers.MustHex(testCipherKeyHex),
		helpers.MustHex(testIntegrityKeyHex))
	require.NoError(t, err)
	return k
}

func waitMsg(t testing.TB, ch <-chan *tele.Message) *tele.Message {
	select {
	case m := <-ch:
		return m
	case <-time.After(testTimeout):
		t.Fatal("timeout waiting for message")
		return nil
	}
}

func waitSent(t testing.TB, ch <-chan testMsg) testMsg {
	select {
	case m := <-ch:
		return m
	case <-time.After(testTimeout):
		t.Fatal("timeout waiting for publish")
		return testMsg{}
	}
}

func TestCommandStateRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	log := log2.NewTest(t, log2.LDebug)

	devTrans := newTestTransport()
	opTrans := newTestTransport()
	devTrans.peer = opTrans
	opTrans.peer = devTrans

	devReceived := make(chan *tele.Message, 8)
	dev := tele.NewWithTransporter(devTrans)
	onCommand := func(ctx context.Context, m *tele.Message) error {
		devReceived <- m
		return dev.SendState(tele.NewMessage("lamp1", m.Brightness))
	}
	require.NoError(t, dev.Init(ctx, log, testConfig(tele_config.RoleDevice, "lamp1"), onCommand))
	defer dev.Close()

	opReceived := make(chan *tele.Message, 8)
	op := tele.NewWithTransporter(opTrans)
	onState := func(ctx context.Context, m *tele.Message) error {
		opReceived <- m
		return nil
	}
	require.NoError(t, op.Init(ctx, log, testConfig(tele_config.RoleOperator, "op"), onState))
	defer op.Close()

	require.NoError(t, op.SendCommand(tele.NewMessage("op", 128)))

	sent := waitSent(t, opTrans.sent)
	assert.Equal(t, tele_config.DefaultCommandTopic, sent.topic)
	// wire bytes are a sealed envelope, not plaintext
	require.True(t, len(sent.payload) >= envelope.MinSize)
	assert.False(t, bytes.Contains(sent.payload, []byte(`"brightness"`)))
	plain, err := testKeys(t).Open(sent.payload)
	require.NoError(t, err)
	assert.Contains(t, string(plain), `"brightness":128`)

	cmd := waitMsg(t, devReceived)
	assert.Equal(t, "op", cmd.Device)
	assert.Equal(t, 128, cmd.Brightness)

	report := waitSent(t, devTrans.sent)
	assert.Equal(t, tele_config.DefaultStateTopic, report.topic)

	st := waitMsg(t, opReceived)
	assert.Equal(t, "lamp1", st.Device)
	assert.Equal(t, 128, st.Brightness)
}

func TestRejectedMessageDoesNotStopProcessing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	log := log2.NewTest(t, log2.LDebug)
	keys := testKeys(t)

	trans := newTestTransport()
	received := make(chan *tele.Message, 8)
	client := tele.NewWithTransporter(trans)
	handler := func(ctx context.Context, m *tele.Message) error {
		received <- m
		return nil
	}
	require.NoError(t, client.Init(ctx, log, testConfig(tele_config.RoleDevice, "lamp1"), handler))
	defer client.Close()

	topic := tele_config.DefaultCommandTopic

	// malformed: short and misaligned lengths
	assert.True(t, trans.Inject(topic, nil))
	assert.True(t, trans.Inject(topic, make([]byte, 47)))
	assert.True(t, trans.Inject(topic, make([]byte, 49)))

	// tampered: valid envelope with one bit flipped
	good, err := keys.Seal([]byte(`{"device":"op","brightness":5,"timestamp":1}`))
	require.NoError(t, err)
	bad := append([]byte(nil), good...)
	bad[20] ^= 0x01
	assert.True(t, trans.Inject(topic, bad))

	// authentic envelope with junk plaintext
	junk, err := keys.Seal([]byte(`not json at all`))
	require.NoError(t, err)
	assert.True(t, trans.Inject(topic, junk))

	// authentic envelope with out of range brightness
	over, err := keys.Seal([]byte(`{"device":"op","brightness":700,"timestamp":1}`))
	require.NoError(t, err)
	assert.True(t, trans.Inject(topic, over))

	// processing continues: the valid one still arrives
	assert.True(t, trans.Inject(topic, good))
	m := waitMsg(t, received)
	assert.Equal(t, 5, m.Brightness)

	stat := client.Stat()
	stat.Lock()
	assert.Equal(t, uint32(3), stat.RejectMalformed)
	assert.Equal(t, uint32(1), stat.RejectIntegrity)
	assert.Equal(t, uint32(2), stat.RejectParse)
	assert.Equal(t, uint32(3), stat.Opened)
	stat.Unlock()
	assert.Len(t, received, 0)
}

func TestDisabledClientIsInert(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	log := log2.NewTest(t, log2.LDebug)

	cfg := testConfig(tele_config.RoleOperator, "op")
	cfg.Enabled = false
	trans := newTestTransport()
	client := tele.NewWithTransporter(trans)
	require.NoError(t, client.Init(ctx, log, cfg, nil))

	// accepted and dropped, nothing reaches the transport
	require.NoError(t, client.SendCommand(tele.NewMessage("op", 42)))
	assert.Len(t, trans.sent, 0)
	client.Close()
}

func TestInitInvalidKeys(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	log := log2.NewTest(t, log2.LDebug)

	cfg := testConfig(tele_config.RoleDevice, "lamp1")
	cfg.CipherKeyHex = "deadbeef" // too short
	client := tele.NewWithTransporter(newTestTransport())
	err := client.Init(ctx, log, cfg, nil)
	require.Error(t, err)
}

func TestMessageValidate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		m    tele.Message
		ok   bool
	}{
		{"ok", tele.Message{Device: "a", Brightness: 0, Timestamp: 1}, true},
		{"max", tele.Message{Device: "a", Brightness: 255}, true},
		{"no-device", tele.Message{Brightness: 1}, false},
		{"negative", tele.Message{Device: "a", Brightness: -1}, false},
		{"over", tele.Message{Device: "a", Brightness: 256}, false},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			err := c.m.Validate()
			if c.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
