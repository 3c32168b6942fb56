package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cakeshop-notifier/internal/client/alert"
	"cakeshop-notifier/internal/client/reconnect"
	"cakeshop-notifier/internal/common/logger"
	"cakeshop-notifier/internal/models"
)

type runOptions struct {
	url        string
	token      string
	retryDelay time.Duration
	maxDelay   time.Duration
	backoff    float64
	flashes    int
	jsonOutput bool
}

func runCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "delivery-agent",
		Short: "Receive order alerts for a delivery boy",
		Long: `delivery-agent opens the delivery websocket and turns each notification
into a terminal alert: a bell, a banner and a flashing window title.

Press Enter to acknowledge an alert and stop the title flashing.

Examples:
  # Connect with a token from the environment
  DELIVERY_TOKEN=... delivery-agent --url ws://localhost:8080/ws/delivery

  # Exponential reconnect backoff capped at one minute
  delivery-agent --token $TOKEN --backoff 2 --max-delay 1m`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.url, "url", "ws://localhost:8080/ws/delivery", "Delivery websocket URL")
	cmd.Flags().StringVar(&opts.token, "token", os.Getenv("DELIVERY_TOKEN"), "Delivery token (defaults to $DELIVERY_TOKEN)")
	cmd.Flags().DurationVar(&opts.retryDelay, "retry-delay", reconnect.DefaultPolicy.Initial, "Delay before reconnecting")
	cmd.Flags().DurationVar(&opts.maxDelay, "max-delay", time.Minute, "Upper bound on the reconnect delay when --backoff is above 1")
	cmd.Flags().Float64Var(&opts.backoff, "backoff", reconnect.DefaultPolicy.Multiplier, "Reconnect delay multiplier; 1 keeps it fixed")
	cmd.Flags().IntVar(&opts.flashes, "flash-cycles", alert.DefaultSettings.FlashCycles, "Title flash cycles per alert")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Also print each notification as JSON")

	return cmd
}

func runAgent(parent context.Context, opts *runOptions) error {
	if opts.token == "" {
		return errors.New("a token is required (--token or $DELIVERY_TOKEN)")
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.NewStructured(logLevel, "console")

	settings := alert.DefaultSettings
	settings.FlashCycles = opts.flashes
	term := alert.NewTerminal(os.Stdout, "delivery-agent")
	presenter := alert.NewPresenter(term.Effects(), settings, nil, log)
	defer presenter.Close()

	closed := make(chan struct{})
	agent := reconnect.New(reconnect.Config{
		Dialer: &reconnect.WSDialer{URL: opts.url, Token: opts.token},
		Policy: reconnect.Policy{
			Initial:    opts.retryDelay,
			Max:        opts.maxDelay,
			Multiplier: opts.backoff,
		},
		OnNotification: func(n models.Notification) {
			if opts.jsonOutput {
				if data, err := json.Marshal(n); err == nil {
					fmt.Println(string(data))
				}
			}
			presenter.Present(n)
		},
		OnStateChange: func(from, to reconnect.State) {
			fmt.Fprintf(os.Stderr, "[%s] %s -> %s\n", time.Now().Format("15:04:05"), from, to)
			if to == reconnect.Closed {
				close(closed)
			}
		},
		Logger: log,
	})

	go acknowledgeOnEnter(presenter)

	agent.Start()
	select {
	case <-ctx.Done():
		agent.Stop()
	case <-closed:
	}
	return nil
}

// acknowledgeOnEnter treats each line on stdin as the window regaining focus.
func acknowledgeOnEnter(p *alert.Presenter) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		p.OnFocus()
	}
}
