package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Agent lifecycle operations",
}

var agentRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a new agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKernel(cmd)
		if err != nil {
			return err
		}
		role, _ := cmd.Flags().GetString("role")
		capacity, _ := cmd.Flags().GetFloat64("capacity")
		specRaw, _ := cmd.Flags().GetString("specialization")
		strictSpecialist, _ := cmd.Flags().GetBool("strict-specialist")
		concurrentCap, _ := cmd.Flags().GetUint32("concurrent-cap")

		var specialization []string
		if specRaw != "" {
			specialization = strings.Split(specRaw, ",")
		}
		var capPtr *uint32
		if concurrentCap > 0 {
			capPtr = &concurrentCap
		}

		agent, err := k.Register(role, capacity, specialization, strictSpecialist, capPtr)
		if err != nil {
			return err
		}
		fmt.Printf("agent registered: %s (role=%s capacity=%.2f)\n", agent.ID, agent.Role, agent.Capacity)
		return nil
	},
}

var agentHeartbeatCmd = &cobra.Command{
	Use:   "heartbeat <agent-id>",
	Short: "Refresh an agent's liveness timestamp",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKernel(cmd)
		if err != nil {
			return err
		}
		if err := k.Heartbeat(args[0]); err != nil {
			return err
		}
		fmt.Println("heartbeat ok")
		return nil
	},
}

var agentUnregisterCmd = &cobra.Command{
	Use:   "unregister <agent-id>",
	Short: "Remove an agent record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKernel(cmd)
		if err != nil {
			return err
		}
		if err := k.Unregister(args[0]); err != nil {
			return err
		}
		fmt.Println("agent unregistered")
		return nil
	},
}

var agentListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List registered agents",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKernel(cmd)
		if err != nil {
			return err
		}
		agents, err := k.ListAgents()
		if err != nil {
			return err
		}
		for _, a := range agents {
			fmt.Printf("%s\trole=%s\tstatus=%s\tcapacity=%.2f\tspecialization=%v\tstrict_specialist=%v\n",
				a.ID, a.Role, a.Status, a.Capacity, a.Specialization, a.StrictSpecialist)
		}
		return nil
	},
}

func init() {
	agentRegisterCmd.Flags().String("role", "generic", "Agent role")
	agentRegisterCmd.Flags().Float64("capacity", 1.0, "Nominal capacity share in [0,1]")
	agentRegisterCmd.Flags().String("specialization", "", "Comma-separated task types this agent specializes in")
	agentRegisterCmd.Flags().Bool("strict-specialist", false, "Never fall back to unfiltered candidates when nothing matches specialization")
	agentRegisterCmd.Flags().Uint32("concurrent-cap", 0, "Concurrent claim cap; 0 means unbounded")

	for _, cmd := range []*cobra.Command{agentRegisterCmd, agentHeartbeatCmd, agentUnregisterCmd, agentListCmd} {
		agentCmd.AddCommand(cmd)
	}
}
