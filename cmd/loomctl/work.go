package main

import (
	"fmt"
	"time"

	"github.com/cuemby/loom/pkg/types"
	"github.com/spf13/cobra"
)

var workCmd = &cobra.Command{
	Use:   "work",
	Short: "Work item operations",
}

var workCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new work item",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKernel(cmd)
		if err != nil {
			return err
		}
		taskType, _ := cmd.Flags().GetString("task-type")
		priority, _ := cmd.Flags().GetInt("priority")
		duration, _ := cmd.Flags().GetDuration("duration")
		payloadRef, _ := cmd.Flags().GetString("payload-ref")

		id, err := k.CreateWork(taskType, priority, duration, payloadRef)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var workListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List work items, optionally filtered by state",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKernel(cmd)
		if err != nil {
			return err
		}
		filter, _ := cmd.Flags().GetString("state")
		states, err := k.ListWork(types.WorkLifecycleState(filter))
		if err != nil {
			return err
		}
		for _, s := range states {
			fmt.Printf("%s\t%s\tattempts=%d\tholder=%s\tversion=%d\n", s.WorkID, s.State, s.Attempts, s.Holder, s.Version)
		}
		return nil
	},
}

var workShowCmd = &cobra.Command{
	Use:   "show <work-id>",
	Short: "Show a work item's current state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKernel(cmd)
		if err != nil {
			return err
		}
		state, err := k.GetWorkState(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("work_id: %s\nstate: %s\nversion: %d\nholder: %s\nattempts: %d\nlast_failure_reason: %s\nupdated_at: %s\n",
			state.WorkID, state.State, state.Version, state.Holder, state.Attempts, state.LastFailureReason, state.UpdatedAt.Format(time.RFC3339))
		return nil
	},
}

var workCompleteCmd = &cobra.Command{
	Use:   "complete <agent-id> <work-id>",
	Short: "Mark a claimed work item COMPLETED",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKernel(cmd)
		if err != nil {
			return err
		}
		if err := k.Complete(args[0], args[1]); err != nil {
			return err
		}
		fmt.Println("completed")
		return nil
	},
}

var workFailCmd = &cobra.Command{
	Use:   "fail <agent-id> <work-id>",
	Short: "Fail a claimed work item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKernel(cmd)
		if err != nil {
			return err
		}
		reason, _ := cmd.Flags().GetString("reason")
		retriable, _ := cmd.Flags().GetBool("retriable")
		if err := k.Fail(args[0], args[1], reason, retriable); err != nil {
			return err
		}
		fmt.Println("failed")
		return nil
	},
}

var workAbandonCmd = &cobra.Command{
	Use:   "abandon <agent-id> <work-id>",
	Short: "Return a claimed work item to PENDING without counting an attempt",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKernel(cmd)
		if err != nil {
			return err
		}
		if err := k.Abandon(args[0], args[1]); err != nil {
			return err
		}
		fmt.Println("abandoned")
		return nil
	},
}

func init() {
	workCreateCmd.Flags().String("task-type", "generic", "Work item task type")
	workCreateCmd.Flags().Int("priority", 50, "Priority, 1..100")
	workCreateCmd.Flags().Duration("duration", time.Minute, "Estimated duration")
	workCreateCmd.Flags().String("payload-ref", "", "Opaque reference to the work's payload")

	workListCmd.Flags().String("state", "", "Filter by lifecycle state (PENDING, ACTIVE, COMPLETED, FAILED, ABANDONED); empty means all")

	workFailCmd.Flags().String("reason", "", "Failure reason")
	workFailCmd.Flags().Bool("retriable", true, "Whether the failure should be retried until max_attempts")

	for _, cmd := range []*cobra.Command{workCreateCmd, workListCmd, workShowCmd, workCompleteCmd, workFailCmd, workAbandonCmd} {
		workCmd.AddCommand(cmd)
	}
}
