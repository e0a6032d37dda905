package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/evanrolfe/trayce_classifier/internal/config"
	"github.com/evanrolfe/trayce_classifier/internal/logger"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var debug bool

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lg, err := logger.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	ctx = logger.WithLogger(ctx, lg)

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	appRoot := &cobra.Command{
		Use:               "trayce_classifier [command]",
		Short:             "Classify TCP traffic as TLS handshake, TLS application data or a plaintext protocol",
		Version:           version,
		PersistentPreRunE: preRun,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	appRoot.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	classify := &classifyCmd{}
	appClassify := &cobra.Command{
		Use:   "classify <hex> [flags]",
		Short: "Classify the start of a TCP segment given as hex",
		Args:  cobra.ExactArgs(1),
		RunE:  classify.Run,
	}
	classify.RegisterFlags(appClassify.Flags())
	appRoot.AddCommand(appClassify)

	pcapCfg := config.NewConfig()
	appPcap := &cobra.Command{
		Use:   "pcap <file> [flags]",
		Short: "Classify the TCP connections in a pcap or pcapng file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pcapCfg.InputPath = args[0]
			return pcapCmd(cmd, pcapCfg)
		},
	}
	pcapCfg.RegisterFlags(appPcap.Flags())
	pcapCfg.RegisterCaptureFlags(appPcap.Flags())
	appRoot.AddCommand(appPcap)

	replayCfg := config.NewConfig()
	appReplay := &cobra.Command{
		Use:   "replay <file> [flags]",
		Short: "Classify the connections in an event dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			replayCfg.InputPath = args[0]
			return replayCmd(cmd, replayCfg)
		},
	}
	replayCfg.RegisterFlags(appReplay.Flags())
	appRoot.AddCommand(appReplay)

	return appRoot
}

func preRun(cmd *cobra.Command, args []string) error {
	if debug {
		logger.SetDebug()
	}
	return nil
}
