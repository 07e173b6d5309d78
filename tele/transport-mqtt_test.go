package tele

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumistat/ledsec/log2"
	tele_config "github.com/lumistat/ledsec/tele/config"
)

func TestTransportMqttInitConfigErrors(t *testing.T) {
	t.Parallel()

	caNotPem := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, ioutil.WriteFile(caNotPem, []byte("not a certificate"), 0600))

	cases := []struct {
		name      string
		broker    string
		tlsCaFile string
		expect    string
	}{
		{"broker-invalid", "not a url", "", "config broker"},
		{"ca-missing", "tls://broker.example:8883", filepath.Join(t.TempDir(), "nonexistent.pem"), "tls_ca_file"},
		{"ca-not-pem", "tls://broker.example:8883", caNotPem, "no certificates found"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			cfg := tele_config.Config{
				Enabled:   true,
				Role:      tele_config.RoleDevice,
				Device:    "led1",
				Broker:    c.broker,
				TLSCaFile: c.tlsCaFile,
			}
			trans := &transportMqtt{}
			err := trans.Init(context.Background(), log2.NewTest(t, log2.LDebug), cfg, func(string, []byte) bool { return true })
			require.Error(t, err)
			assert.Contains(t, err.Error(), c.expect)
		})
	}
}
