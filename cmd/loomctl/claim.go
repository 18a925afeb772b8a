package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var claimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Claim operations",
}

var claimNextCmd = &cobra.Command{
	Use:   "next <agent-id>",
	Short: "Claim the next eligible work item per the active policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKernel(cmd)
		if err != nil {
			return err
		}
		record, err := k.ClaimNext(args[0])
		if err != nil {
			return err
		}
		if record == nil {
			fmt.Println("no work available")
			return nil
		}
		fmt.Printf("claimed %s (task_type=%s priority=%d)\n", record.ID, record.TaskType, record.Priority)
		return nil
	},
}

var claimSpecificCmd = &cobra.Command{
	Use:   "specific <agent-id> <work-id>",
	Short: "Attempt to claim a named work item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKernel(cmd)
		if err != nil {
			return err
		}
		won, err := k.ClaimSpecific(args[0], args[1])
		if err != nil {
			return err
		}
		if !won {
			fmt.Println("not claimed")
			return nil
		}
		fmt.Println("claimed")
		return nil
	},
}

func init() {
	claimCmd.AddCommand(claimNextCmd)
	claimCmd.AddCommand(claimSpecificCmd)
}
