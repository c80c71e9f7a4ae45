package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configRoot    string
	runtimeRoot   string
	serverBin     string
	bootScript    string
	installerPath string
)

var rootCmd = &cobra.Command{
	Use:   "muxgate",
	Short: "MuxGate manages a terminal multiplexing server host",
	Long: `MuxGate installs, configures and supervises a WezTerm multiplexing server,
and issues TLS client identities so remote terminal clients can authenticate to it.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configRoot, "config-root", "/etc/muxgate", "Directory for settings and certificate store")
	pf.StringVar(&runtimeRoot, "runtime-root", "/run/muxgate", "Directory for the liveness marker")
	pf.StringVar(&serverBin, "server-bin", "/usr/local/bin/wezterm-mux-server", "Path to the mux server binary")
	pf.StringVar(&bootScript, "boot-script", "/etc/rc.local", "Boot script edited by autostart")
	pf.StringVar(&installerPath, "installer", "", "Path to the delegated installer executable")
}
