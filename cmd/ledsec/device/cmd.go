// Device side: consume sealed brightness commands, apply, report state.
package device

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"

	"github.com/lumistat/ledsec/cmd/ledsec/subcmd"
	"github.com/lumistat/ledsec/log2"
	"github.com/lumistat/ledsec/state"
	"github.com/lumistat/ledsec/tele"
	tele_config "github.com/lumistat/ledsec/tele/config"
)

const modName = "device"

var Mod = subcmd.Mod{Name: modName, Main: Main}

func Main(ctx context.Context, log *log2.Log, config *state.Config) error {
	cfg := config.Tele
	cfg.Role = tele_config.RoleDevice
	name := cfg.Device
	if name == "" {
		name = cfg.ClientID
	}

	var brightness int32
	client := tele.New()
	onCommand := func(ctx context.Context, m *tele.Message) error {
		old := atomic.SwapInt32(&brightness, int32(m.Brightness))
		log.Infof("%s: apply brightness=%d (was %d) from=%s", modName, m.Brightness, old, m.Device)
		// report applied state back, sealed with the same keys
		return client.SendState(tele.NewMessage(name, m.Brightness))
	}
	if err := client.Init(ctx, log, cfg, onCommand); err != nil {
		return errors.Annotate(err, modName)
	}
	defer client.Close()

	subcmd.SdNotify(daemon.SdNotifyReady)
	log.Infof("%s init complete, running", modName)

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigch
	log.Infof("%s stopping signal=%v", modName, sig)
	return nil
}
