// Command rdymux is a debug consumer: given a transport and topic, it
// drains the topic with credit-based flow control and logs every message,
// the way nsq_tail drains an NSQ channel. It exists to exercise the
// module end-to-end from the command line, not as the primary embedding
// point — library users wire reader.Reader and dispatch.Dispatcher
// directly, or through rdymux.New.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/msoleymani/rdymux/config"
	"github.com/msoleymani/rdymux/dispatch"
	"github.com/msoleymani/rdymux/dispatch/middleware"
	"github.com/msoleymani/rdymux/logging"
	"github.com/msoleymani/rdymux/reader"
	"github.com/msoleymani/rdymux/transport"

	// Transports self-register via init(); import for side effect.
	_ "github.com/msoleymani/rdymux/transport/kafka"
	_ "github.com/msoleymani/rdymux/transport/nats"
	_ "github.com/msoleymani/rdymux/transport/rabbitmq"
	_ "github.com/msoleymani/rdymux/transport/wsrdy"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "rdymux",
	Short:         "Drain a broker topic with credit-based flow control",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "rdymux.yaml", "path to config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	base := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		base.SetLevel(lvl)
	}
	log := logging.NewLogrus(base)

	conn, err := transport.Create(cfg.Transport, cfg.TransportConfig())
	if err != nil {
		return fmt.Errorf("rdymux: create transport %q: %w", cfg.Transport, err)
	}

	d := dispatch.New(cfg.Topic, nil)
	d.Use(middleware.Recovery(log))
	d.Use(middleware.Logging(log))
	d.Handle(func(c dispatch.Context) error {
		fmt.Printf("[%s] %s\n", cfg.Topic, string(c.Value()))
		return c.Finish()
	})

	r := reader.New(cfg.ReaderConfig(), d, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Infof("shutting down")
		cancel()
		conn.Close()
	}()

	log.Infof("draining topic=%s transport=%s", cfg.Topic, cfg.Transport)
	if err := r.AddConnection(ctx, conn); err != nil {
		return fmt.Errorf("rdymux: %w", err)
	}
	<-ctx.Done()
	return nil
}
