package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rgoodwin/muxgate/pki"
)

var bundleOut string

var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "Manage the certificate authority and client identities",
}

var certInitCmd = &cobra.Command{
	Use:   "init-ca",
	Short: "Create the certificate authority and server identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := buildEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		if err := e.authority.InitCA(cmd.Context(), pki.DetectHost()); err != nil {
			return err
		}
		fmt.Println("certificate authority initialized")
		return nil
	},
}

var certIssueCmd = &cobra.Command{
	Use:   "issue <name>",
	Short: "Issue a client certificate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := buildEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		record, err := e.authority.IssueClientCertificate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("issued %s (serial %s, expires %s)\n",
			record.Name, record.Serial, record.NotAfter.Format("2006-01-02"))
		return nil
	},
}

var certRevokeCmd = &cobra.Command{
	Use:   "revoke <name>",
	Short: "Revoke a client certificate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := buildEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		if err := e.authority.RevokeClientCertificate(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("revoked %s\n", args[0])
		return nil
	},
}

var certListCmd = &cobra.Command{
	Use:   "list",
	Short: "List certificates with status",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := buildEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		records, err := e.authority.ListCertificates(cmd.Context())
		if err != nil {
			return err
		}
		for _, r := range records {
			fmt.Printf("%-8s %-24s %-8s serial=%s expires=%s\n",
				r.Type, r.Name, r.Status, r.Serial, r.NotAfter.Format("2006-01-02"))
		}
		return nil
	},
}

var certShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show certificate detail (use \"ca\" or \"server\" for the root material)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := buildEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		d, err := e.authority.GetCertificateDetail(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Subject:     %s\n", d.Subject)
		fmt.Printf("Issuer:      %s\n", d.Issuer)
		fmt.Printf("Serial:      %s\n", d.Serial)
		fmt.Printf("Fingerprint: %s\n", d.Fingerprint)
		fmt.Printf("Not before:  %s\n", d.NotBefore)
		fmt.Printf("Not after:   %s\n", d.NotAfter)
		fmt.Printf("Status:      %s\n", d.Status)
		return nil
	},
}

var certBundleCmd = &cobra.Command{
	Use:   "bundle <name>",
	Short: "Write the client credential archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := buildEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		name := args[0]
		var w io.Writer = os.Stdout
		if bundleOut != "" {
			f, err := os.OpenFile(bundleOut, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		if err := e.packager.Build(name, w); err != nil {
			return err
		}
		if bundleOut != "" {
			fmt.Fprintf(os.Stderr, "bundle written to %s\n", bundleOut)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(certCmd)
	certCmd.AddCommand(certInitCmd, certIssueCmd, certRevokeCmd, certListCmd, certShowCmd, certBundleCmd)
	certBundleCmd.Flags().StringVarP(&bundleOut, "output", "o", "", "Write the archive to a file instead of stdout")
}
