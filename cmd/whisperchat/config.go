package main

import (
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/opd-ai/whisperchat"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	defaultNodeURL = "ws://localhost:8546"
	defaultChannel = "whisperchat"
)

type configFlags struct {
	NodeURL      string        `short:"u" long:"url" description:"Node RPC endpoint: ws(s)://, http(s):// or an IPC socket path"`
	PrivateKey   string        `short:"k" long:"key" description:"Hex private key to import; a fresh key pair is generated if empty"`
	Channel      string        `short:"c" long:"channel" description:"Public channel to join"`
	Contact      string        `long:"contact" description:"Send to this contact code instead of the channel"`
	DisplayName  string        `long:"name" description:"Display name announced to --contact with a chat request"`
	Mailserver   string        `short:"m" long:"mailserver" description:"Enode of a mailserver to request history from"`
	History      time.Duration `long:"history" description:"How far back to request history when --mailserver is set"`
	ForcePolling bool          `long:"poll" description:"Poll filters even if the connection supports subscriptions"`
	Verbose      bool          `short:"v" long:"verbose" description:"Enable debug logging"`
}

func parseConfig() (*configFlags, error) {
	return parseArgs(os.Args[1:])
}

func parseArgs(args []string) (*configFlags, error) {
	cfg := &configFlags{
		NodeURL: defaultNodeURL,
		Channel: defaultChannel,
		History: 24 * time.Hour,
	}
	parser := flags.NewParser(cfg, flags.HelpFlag)
	parser.Usage = "whisperchat [OPTIONS]\n\nLines read from stdin are sent to the channel, or to --contact if set."
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if cfg.Contact != "" && !whisperchat.IsContactCode(cfg.Contact) {
		return nil, errors.Errorf("--contact %q is not a contact code", cfg.Contact)
	}
	if cfg.DisplayName != "" && cfg.Contact == "" {
		return nil, errors.New("--name requires --contact")
	}
	if cfg.History < 0 {
		return nil, errors.New("--history must not be negative")
	}

	if cfg.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.WarnLevel)
	}
	return cfg, nil
}

func (cfg *configFlags) options() *whisperchat.Options {
	options := whisperchat.NewOptions()
	options.ForcePolling = cfg.ForcePolling
	return options
}

func (cfg *configFlags) destination() whisperchat.Destination {
	if cfg.Contact != "" {
		return whisperchat.ToContact(cfg.Contact)
	}
	return whisperchat.ToChannel(cfg.Channel)
}
