package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/loom/pkg/janitor"
	"github.com/spf13/cobra"
)

var janitorCmd = &cobra.Command{
	Use:   "janitor",
	Short: "Janitor operations",
}

var janitorRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the janitor's sweep loop in the foreground until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKernel(cmd)
		if err != nil {
			return err
		}
		interval, _ := cmd.Flags().GetDuration("interval")
		if interval <= 0 {
			interval = k.JanitorInterval()
		}

		j := janitor.New(k, interval, nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			fmt.Println("\nshutting down janitor...")
			cancel()
		}()

		return j.Run(ctx)
	},
}

func init() {
	janitorRunCmd.Flags().Duration("interval", 0, "Sweep interval; 0 uses the configured janitor_interval")
	janitorCmd.AddCommand(janitorRunCmd)
}
