package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	setAddress  string
	setPort     int
	setLogLevel string
	setVersion  string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read or change the service settings",
}

var configGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the stored settings (defaults applied)",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := buildEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		s := e.cfg.Read()
		service := "disable"
		if s.Service {
			service = "enable"
		}
		fmt.Printf("SERVICE=%s\n", service)
		fmt.Printf("LISTEN_ADDRESS=%s\n", s.ListenAddress)
		fmt.Printf("LISTEN_PORT=%d\n", s.ListenPort)
		fmt.Printf("LOG_LEVEL=%s\n", s.LogLevel)
		fmt.Printf("VERSION=%s\n", s.Version)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change settings; unspecified fields keep their stored value",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := buildEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		s := e.cfg.Read()
		if cmd.Flags().Changed("address") {
			s.ListenAddress = setAddress
		}
		if cmd.Flags().Changed("port") {
			s.ListenPort = setPort
		}
		if cmd.Flags().Changed("log-level") {
			s.LogLevel = setLogLevel
		}
		if cmd.Flags().Changed("version") {
			s.Version = setVersion
		}
		if err := e.cfg.Save(cmd.Context(), s); err != nil {
			return err
		}
		fmt.Println("settings saved")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configGetCmd, configSetCmd)
	f := configSetCmd.Flags()
	f.StringVar(&setAddress, "address", "", "Listen address (IP literal, 0.0.0.0 for all)")
	f.IntVar(&setPort, "port", 0, "Listen port (1-65535)")
	f.StringVar(&setLogLevel, "log-level", "", "Log level: error, warn, info, debug, trace")
	f.StringVar(&setVersion, "version", "", "Desired server version selector")
}
