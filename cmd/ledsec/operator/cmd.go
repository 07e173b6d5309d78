// Operator side: interactive prompt to seal and publish brightness
// commands, watch sealed state reports from devices.
package operator

import (
	"context"
	"os"
	"strconv"

	"github.com/c-bata/go-prompt"
	"github.com/juju/errors"

	"github.com/lumistat/ledsec/cmd/ledsec/subcmd"
	"github.com/lumistat/ledsec/helpers/cli"
	"github.com/lumistat/ledsec/log2"
	"github.com/lumistat/ledsec/state"
	"github.com/lumistat/ledsec/tele"
	tele_config "github.com/lumistat/ledsec/tele/config"
)

const modName = "operator"

var Mod = subcmd.Mod{Name: modName, Main: Main}

func Main(ctx context.Context, log *log2.Log, config *state.Config) error {
	cfg := config.Tele
	cfg.Role = tele_config.RoleOperator
	name := cfg.Device
	if name == "" {
		name = cfg.ClientID
	}

	client := tele.New()
	onState := func(ctx context.Context, m *tele.Message) error {
		log.Infof("%s: device=%s reports brightness=%d", modName, m.Device, m.Brightness)
		return nil
	}
	if err := client.Init(ctx, log, cfg, onState); err != nil {
		return errors.Annotate(err, modName)
	}
	defer client.Close()

	log.Infof("%s init complete, enter brightness 0-255, status, q", modName)
	cli.MainLoop(modName, newExecutor(log, client, name), newCompleter())
	return nil
}

func newExecutor(log *log2.Log, client *tele.Client, device string) func(string) {
	return func(line string) {
		switch line {
		case "":
			return
		case "q", "quit", "exit":
			os.Exit(0)
		case "status":
			log.Infof("%s", client.Stat().String())
			return
		}

		n, err := strconv.Atoi(line)
		if err != nil {
			log.Errorf("input '%s': want brightness 0-255, status or q", line)
			return
		}
		if err := client.SendCommand(tele.NewMessage(device, n)); err != nil {
			log.Error(errors.Annotatef(err, "command brightness=%d", n))
			return
		}
		log.Infof("queued brightness=%d", n)
	}
}

func newCompleter() func(d prompt.Document) []prompt.Suggest {
	suggests := []prompt.Suggest{
		{Text: "status", Description: "envelope traffic counters"},
		{Text: "q", Description: "quit"},
	}
	return func(d prompt.Document) []prompt.Suggest {
		return prompt.FilterHasPrefix(suggests, d.GetWordBeforeCursor(), true)
	}
}
