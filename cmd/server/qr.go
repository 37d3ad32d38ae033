package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"

	"github.com/kasku/chat-gateway/internal/config"
	"github.com/kasku/chat-gateway/internal/gateway"
)

func newQRCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		accountID string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "qr",
		Short: "Link a device by scanning a QR code in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.GatewayMode == config.GatewayModePerAccount && accountID == "" {
				return fmt.Errorf("--account is required in %s mode", config.GatewayModePerAccount)
			}
			return linkDevice(cmd.Context(), cfg, gateway.KeyFor(cfg.GatewayMode, accountID), timeout)
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "account to link in per_account mode")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Minute, "how long to wait for the scan")

	return cmd
}

// terminalPublisher draws every new QR code and reports readiness.
type terminalPublisher struct {
	out   io.Writer
	ready chan struct{}
	once  sync.Once
	last  string
	mu    sync.Mutex
}

func newTerminalPublisher(out io.Writer) *terminalPublisher {
	return &terminalPublisher{out: out, ready: make(chan struct{})}
}

func (p *terminalPublisher) PublishConnection(ctx context.Context, conn gateway.Connection) error {
	switch {
	case conn.State == gateway.StateQRIssued && conn.QRCode != "":
		p.mu.Lock()
		defer p.mu.Unlock()
		if conn.QRCode == p.last {
			return nil
		}
		p.last = conn.QRCode
		fmt.Fprintln(p.out, "Scan this code from Linked Devices in the WhatsApp app:")
		qrterminal.GenerateHalfBlock(conn.QRCode, qrterminal.L, p.out)
	case conn.Connected():
		p.once.Do(func() { close(p.ready) })
	}
	return nil
}

func linkDevice(ctx context.Context, cfg *config.Config, key gateway.IdentityKey, timeout time.Duration) error {
	opts := gateway.OptionsFromConfig(cfg)
	// The terminal renders the raw pairing payload itself.
	opts.QREncoder = func(payload string) string { return payload }
	opts.Policy.AutoRecover = false

	a, err := newApp(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	publisher := newTerminalPublisher(os.Stdout)
	a.controller.SetPublisher(publisher)

	if _, _, err := a.controller.Init(ctx, key); err != nil {
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-publisher.ready:
		fmt.Fprintf(os.Stdout, "Device linked for %s\n", key)
		return nil
	case <-timer.C:
		conn, _ := a.controller.Status(key)
		return fmt.Errorf("device not linked after %s (state %s)", timeout, conn.State)
	case <-ctx.Done():
		return ctx.Err()
	}
}
