package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opd-ai/whisperchat"
	"github.com/pkg/errors"
)

func main() {
	cfg, err := parseConfig()
	if err != nil {
		printErrorAndExit(fmt.Sprintf("error parsing command-line arguments: %s", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := whisperchat.NewClient(cfg.options())
	if err := client.Connect(ctx, cfg.NodeURL, cfg.PrivateKey); err != nil {
		printErrorAndExit(fmt.Sprintf("error connecting to %s: %s", cfg.NodeURL, err))
	}
	defer client.Disconnect()

	if err := run(ctx, client, cfg); err != nil {
		printErrorAndExit(err.Error())
	}
}

func run(ctx context.Context, client *whisperchat.Client, cfg *configFlags) error {
	name, err := client.GetUserName(ctx, "")
	if err != nil {
		return errors.Wrap(err, "error reading identity")
	}
	pub, err := client.GetPublicKey(ctx)
	if err != nil {
		return errors.Wrap(err, "error reading identity")
	}
	fmt.Printf("Connected as %s\nContact code: %s\n", name, pub)

	if err := client.JoinChat(ctx, cfg.Channel); err != nil {
		return errors.Wrapf(err, "error joining #%s", cfg.Channel)
	}
	if err := client.OnMessage(ctx, cfg.Channel, printMessage); err != nil {
		return errors.Wrapf(err, "error subscribing to #%s", cfg.Channel)
	}

	client.OnChatRequest(func(err error, req *whisperchat.ChatRequest) {
		if err != nil {
			fmt.Fprintf(os.Stderr, "chat request error: %s\n", err)
			return
		}
		fmt.Printf("* %s is now known as %s\n", req.Username, req.DisplayName)
	})
	if err := client.OnMessage(ctx, "", printMessage); err != nil {
		return errors.Wrap(err, "error subscribing to direct messages")
	}

	if cfg.Mailserver != "" {
		if err := requestHistory(ctx, client, cfg); err != nil {
			return err
		}
	}

	if cfg.DisplayName != "" {
		if err := client.SendChatRequest(ctx, cfg.Contact, cfg.DisplayName, ""); err != nil {
			return errors.Wrap(err, "error sending chat request")
		}
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	dest := cfg.destination()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if line == "" {
				continue
			}
			if err := client.SendMessage(ctx, dest, line); err != nil {
				fmt.Fprintf(os.Stderr, "error sending to %s: %s\n", dest, err)
			}
		}
	}
}

func requestHistory(ctx context.Context, client *whisperchat.Client, cfg *configFlags) error {
	if err := client.UseMailserver(ctx, cfg.Mailserver); err != nil {
		return errors.Wrap(err, "error adding mailserver")
	}
	opts := whisperchat.RequestOptions{
		From: time.Now().Add(-cfg.History).Unix(),
		To:   time.Now().Unix(),
	}
	if err := client.RequestChannelMessages(ctx, cfg.Channel, opts); err != nil {
		return errors.Wrap(err, "error requesting channel history")
	}
	if err := client.RequestUserMessages(ctx, opts); err != nil {
		return errors.Wrap(err, "error requesting direct message history")
	}
	return nil
}

func printMessage(err error, msg *whisperchat.Message) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "receive error: %s\n", err)
		return
	}
	if msg.IsDirect() {
		fmt.Printf("[direct] <%s> %s\n", msg.Username, msg.Content)
		return
	}
	fmt.Printf("[#%s] <%s> %s\n", msg.Channel, msg.Username, msg.Content)
}

func printErrorAndExit(message string) {
	fmt.Fprintf(os.Stderr, "%s\n", message)
	os.Exit(1)
}
