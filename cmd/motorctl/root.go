package main

import (
	"fmt"
	"strings"

	"github.com/danmuck/motorctl/internal/config"
	"github.com/danmuck/motorctl/internal/observability"
	"github.com/danmuck/motorctl/internal/protocol/session"
	"github.com/danmuck/motorctl/internal/transport/sim"
	"github.com/danmuck/motorctl/internal/transport/socketcan"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	id         int
	transport  string
	iface      string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "motorctl",
		Short:         "Drive a CAN-FD actuator in velocity mode with supervised safe-stop",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "TOML config file")
	flags.IntVar(&opts.id, "id", 1, "actuator bus id (0-127)")
	flags.StringVar(&opts.transport, "transport", config.TransportSocketCAN, "transport: socketcan | sim")
	flags.StringVar(&opts.iface, "iface", "can0", "CAN interface for the socketcan transport")

	root.AddCommand(
		runCmd(opts),
		stopCmd(opts),
		queryCmd(opts),
		configCmd(),
	)
	return root
}

// load resolves defaults, then the config file, then flags the user set.
// Log settings can still be overridden through MOTORCTL_LOG_* variables.
func (o *rootOptions) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("id") {
		if o.id < 0 || o.id > session.MaxAddress {
			return config.Config{}, fmt.Errorf("%w: --id %d outside 0..%d", config.ErrInvalid, o.id, session.MaxAddress)
		}
		cfg.Session.Channel.Address = uint8(o.id)
	}
	if flags.Changed("transport") {
		cfg.Transport.Kind = strings.ToLower(strings.TrimSpace(o.transport))
	}
	if flags.Changed("iface") {
		cfg.Transport.Interface = strings.TrimSpace(o.iface)
	}
	return cfg, nil
}

func initLogger(cfg config.Config) (zerolog.Logger, func() error) {
	return observability.InitLogger("motorctl", cfg.Log)
}

func openChannel(cfg config.Config) (*session.Channel, error) {
	var transport session.Transport
	switch cfg.Transport.Kind {
	case config.TransportSim:
		act := sim.New(cfg.Session.Channel.Address)
		act.SetGain(cfg.SimGain)
		transport = act
	case config.TransportSocketCAN:
		t, err := socketcan.Open(socketcan.Config{Interface: cfg.Transport.Interface, Source: cfg.Transport.Source})
		if err != nil {
			return nil, err
		}
		transport = t
	default:
		return nil, fmt.Errorf("%w: unknown transport kind %q", config.ErrInvalid, cfg.Transport.Kind)
	}
	return session.NewChannel(transport, cfg.Session.Channel)
}
