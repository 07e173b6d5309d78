package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/lumistat/ledsec/cmd/ledsec/device"
	"github.com/lumistat/ledsec/cmd/ledsec/operator"
	"github.com/lumistat/ledsec/cmd/ledsec/subcmd"
	"github.com/lumistat/ledsec/log2"
	"github.com/lumistat/ledsec/state"
)

var modules = []subcmd.Mod{device.Mod, operator.Mod}

func main() {
	flagConfig := flag.String("config", "ledsec.hcl", "")
	flag.Parse()

	log := log2.NewStderr(log2.LInfo)
	if subcmd.SdNotify("start") {
		// under systemd, journal adds timestamps
		log.SetFlags(log2.LServiceFlags)
	} else {
		log.SetFlags(log2.LInteractiveFlags)
	}

	mod, err := subcmd.Parse(flag.Arg(0), modules)
	if err != nil {
		fmt.Fprintf(os.Stderr, "command line error: %v\nusage: ledsec [-config=ledsec.hcl] device|operator\n", err)
		os.Exit(1)
	}

	config := state.MustReadConfig(log, *flagConfig)
	log.SetPrefix(mod.Name + " ")
	if err := mod.Main(context.Background(), log, config); err != nil {
		log.Fatal(err)
	}
}
