package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Control the supervised mux server",
}

var serviceStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the mux server (no-op if already running)",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := buildEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		h, err := e.sup.Start(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("running (pid %d)\n", h.PID)
		return nil
	},
}

var serviceStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the mux server (no-op if already stopped)",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := buildEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		if err := e.sup.Stop(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("stopped")
		return nil
	},
}

var serviceRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the mux server",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := buildEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		h, err := e.sup.Restart(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("running (pid %d)\n", h.PID)
		return nil
	},
}

var serviceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query mux server liveness",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := buildEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		h := e.sup.Status()
		if h.Running {
			fmt.Printf("running (pid %d)\n", h.PID)
		} else {
			fmt.Println("stopped")
		}
		return nil
	},
}

var serviceAutostartCmd = &cobra.Command{
	Use:       "autostart {enable|disable}",
	Short:     "Toggle boot-time activation",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"enable", "disable"},
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := buildEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		enabled := args[0] == "enable"
		if err := e.sup.SetAutostart(cmd.Context(), enabled); err != nil {
			return err
		}
		fmt.Printf("autostart %sd\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serviceCmd)
	serviceCmd.AddCommand(serviceStartCmd, serviceStopCmd, serviceRestartCmd, serviceStatusCmd, serviceAutostartCmd)
}
