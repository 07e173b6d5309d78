package tele

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io/ioutil"
	"net/url"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
	"github.com/lumistat/ledsec/helpers"
	"github.com/lumistat/ledsec/log2"
	tele_config "github.com/lumistat/ledsec/tele/config"
)

const DefaultNetworkTimeout = 30 * time.Second

type transportMqtt struct {
	log       *log2.Log
	onMessage MessageCallback
	m         mqtt.Client
	mopt      *mqtt.ClientOptions
	subTopic  string
	timeout   time.Duration
}

func (t *transportMqtt) Init(ctx context.Context, log *log2.Log, config tele_config.Config, onMessage MessageCallback) error {
	t.log = log
	mqttLog := log.Clone(log2.LInfo)
	if config.LogDebug {
		mqttLog.SetLevel(log2.LDebug)
		mqtt.DEBUG = mqttLog
	}
	mqtt.ERROR = mqttLog
	mqtt.CRITICAL = mqttLog
	mqtt.WARN = mqttLog

	if _, err := url.ParseRequestURI(config.Broker); err != nil {
		return errors.Annotatef(err, "config broker=%s", config.Broker)
	}

	t.onMessage = onMessage
	t.subTopic = config.SubscribeTopic()
	t.timeout = helpers.IntSecondDefault(config.NetworkTimeoutSec, DefaultNetworkTimeout)
	keepAlive := helpers.IntSecondDefault(config.KeepaliveSec, 60*time.Second)
	pingTimeout := helpers.IntSecondDefault(config.KeepaliveSec/2, 30*time.Second)

	clientID := config.ClientID
	if clientID == "" {
		clientID = config.Username
	}

	t.mopt = mqtt.NewClientOptions().
		AddBroker(config.Broker).
		SetClientID(clientID).
		SetUsername(config.Username).
		SetPassword(config.Password).
		SetCleanSession(false).
		SetDefaultPublishHandler(t.messageHandler).
		SetKeepAlive(keepAlive).
		SetPingTimeout(pingTimeout).
		SetOrderMatters(false).
		SetResumeSubs(true).
		SetOnConnectHandler(t.onConnect).
		SetConnectionLostHandler(t.onConnectionLost).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(keepAlive)
	if config.StorePath != "" {
		t.mopt.SetStore(mqtt.NewFileStore(config.StorePath))
	}
	if config.TLSCaFile != "" {
		cabytes, err := ioutil.ReadFile(config.TLSCaFile)
		if err != nil {
			return errors.Annotatef(err, "config tls_ca_file=%s", config.TLSCaFile)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(cabytes) {
			return errors.Errorf("config tls_ca_file=%s no certificates found", config.TLSCaFile)
		}
		t.mopt.SetTLSConfig(&tls.Config{RootCAs: pool})
	}

	t.m = mqtt.NewClient(t.mopt)
	if token := t.m.Connect(); token.Error() != nil {
		// connect retries in background, config errors only
		return errors.Annotate(token.Error(), "mqtt connect")
	}
	return nil
}

func (t *transportMqtt) Send(topic string, payload []byte) bool {
	token := t.m.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(t.timeout) {
		t.log.Errorf("mqtt publish timeout topic=%s", topic)
		return false
	}
	if err := token.Error(); err != nil {
		t.log.Error(errors.Annotatef(err, "mqtt publish topic=%s", topic))
		return false
	}
	return true
}

func (t *transportMqtt) Close() {
	if token := t.m.Unsubscribe(t.subTopic); token.Wait() && token.Error() != nil {
		t.log.Errorf("mqtt unsubscribe err=%v", token.Error())
	}
	t.m.Disconnect(250)
}

func (t *transportMqtt) messageHandler(c mqtt.Client, msg mqtt.Message) {
	t.onMessage(msg.Topic(), msg.Payload())
}

func (t *transportMqtt) onConnect(c mqtt.Client) {
	t.log.Infof("mqtt connect")
	if token := c.Subscribe(t.subTopic, 1, nil); token.Wait() && token.Error() != nil {
		t.log.Error(errors.Annotatef(token.Error(), "mqtt subscribe topic=%s", t.subTopic))
	} else {
		t.log.Infof("mqtt subscribed topic=%s", t.subTopic)
	}
}

func (t *transportMqtt) onConnectionLost(c mqtt.Client, err error) {
	t.log.Infof("mqtt disconnect err=%v", err)
}
