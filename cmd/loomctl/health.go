package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Print a health snapshot and optionally run one manual cleanup sweep",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKernel(cmd)
		if err != nil {
			return err
		}

		sweep, _ := cmd.Flags().GetBool("sweep")
		if sweep {
			reclaimed, err := k.CleanupStale()
			if err != nil {
				return err
			}
			fmt.Printf("reclaimed %d stale claims\n", reclaimed)
		}

		reading, err := k.SnapshotHealth()
		if err != nil {
			return err
		}
		fmt.Printf("halted: %v\n", reading.Halted)
		fmt.Printf("registered_agents: %d\n", reading.RegisteredAgents)
		fmt.Printf("live_agents: %d\n", reading.LiveAgents)
		fmt.Printf("mean_claim_latency_ms: %.2f\n", reading.MeanClaimLatencyMS)
		fmt.Printf("bottleneck_detected: %v (pending=%d)\n", reading.BottleneckDetected, reading.BottleneckCount)
		fmt.Printf("disk_free_bytes: %d\n", reading.DiskFreeBytes)
		for state, count := range reading.WorkByState {
			fmt.Printf("work[%s]: %d\n", state, count)
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().Bool("sweep", false, "Run one manual cleanup_stale pass before reporting")
}
