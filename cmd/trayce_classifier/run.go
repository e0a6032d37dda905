package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/evanrolfe/trayce_classifier/api"
	"github.com/evanrolfe/trayce_classifier/internal"
	"github.com/evanrolfe/trayce_classifier/internal/capture"
	"github.com/evanrolfe/trayce_classifier/internal/config"
	"github.com/evanrolfe/trayce_classifier/internal/events"
	"github.com/evanrolfe/trayce_classifier/internal/logger"
	"github.com/evanrolfe/trayce_classifier/internal/sockets"
	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func pcapCmd(cmd *cobra.Command, cfg *config.Config) error {
	ctx := cmd.Context()
	if err := cfg.Validate(); err != nil {
		return err
	}

	f, err := os.Open(cfg.InputPath)
	if err != nil {
		return errors.Wrap(err, "open capture")
	}
	defer f.Close()

	reader, err := capture.NewReader(ctx, f, cfg.PortFilter())
	if err != nil {
		return err
	}

	if err := run(ctx, cfg, reader, cmd.OutOrStdout()); err != nil {
		return err
	}

	logger.FromContext(ctx).Infof("Read %d packets: %+v", reader.Stats().Packets, reader.Stats())
	return nil
}

func replayCmd(cmd *cobra.Command, cfg *config.Config) error {
	ctx := cmd.Context()
	if err := cfg.Validate(); err != nil {
		return err
	}

	f, err := os.Open(cfg.InputPath)
	if err != nil {
		return errors.Wrap(err, "open event dump")
	}
	defer f.Close()

	return run(ctx, cfg, events.NewStream(ctx, bufio.NewReader(f)), cmd.OutOrStdout())
}

// run drives events from source through the listener and the flow queue, writing flows to out in the configured
// format.
func run(ctx context.Context, cfg *config.Config, source internal.EventSource, out io.Writer) error {
	lg := logger.FromContext(ctx)

	listener := internal.NewListener(ctx, source)
	if cfg.DumpPath != "" {
		dump, err := os.Create(cfg.DumpPath)
		if err != nil {
			return errors.Wrap(err, "create event dump")
		}
		defer dump.Close()

		w := bufio.NewWriter(dump)
		defer func() {
			if err := w.Flush(); err != nil {
				lg.Errorf("Failed to write event dump: %v", err)
			}
		}()
		listener.Record(events.NewWriter(w))
	}

	var sender api.FlowSender
	var summary *api.Summary
	switch cfg.Format {
	case config.FormatTable:
		summary = api.NewSummary()
		sender = summary
	default:
		sender = api.NewJSONSender(out)
	}

	flowsChan := make(chan sockets.Flow, 1000)
	flowQueue := api.NewFlowQueue(ctx, sender, cfg.BatchSize)
	flowQueue.Start(ctx, flowsChan)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(flowsChan)
		return listener.Start(gctx, flowsChan)
	})
	g.Go(func() error {
		flowQueue.Wait()
		return nil
	})
	err := g.Wait()

	if flushErr := flowQueue.Flush(context.WithoutCancel(ctx)); flushErr != nil {
		lg.Errorf("Failed to send queued flows: %v", flushErr)
	}
	if summary != nil {
		fmt.Fprintln(out, summary.Render())
	}

	if errors.Is(err, context.Canceled) {
		lg.Info("Interrupted")
		return nil
	}
	return err
}
