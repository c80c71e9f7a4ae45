package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"
)

// GenerateLua renders the derived daemon configuration for the mux server.
// certsDir is where the server identity material lives; the generated file
// points the TLS listener at it.
func GenerateLua(s Settings, certsDir string) []byte {
	bind := net.JoinHostPort(s.ListenAddress, strconv.Itoa(s.ListenPort))
	var b strings.Builder
	b.WriteString("-- Generated by muxgate from the saved service settings.\n")
	b.WriteString("-- Do not edit; this file is overwritten on every save.\n")
	b.WriteString("local config = {}\n\n")
	fmt.Fprintf(&b, "config.log_level = %q\n\n", s.LogLevel)
	b.WriteString("config.tls_servers = {\n")
	b.WriteString("  {\n")
	fmt.Fprintf(&b, "    bind_address = %q,\n", bind)
	fmt.Fprintf(&b, "    pem_private_key = %q,\n", filepath.Join(certsDir, "server.key"))
	fmt.Fprintf(&b, "    pem_cert = %q,\n", filepath.Join(certsDir, "server.crt"))
	fmt.Fprintf(&b, "    pem_ca = %q,\n", filepath.Join(certsDir, "ca.crt"))
	b.WriteString("  },\n")
	b.WriteString("}\n\n")
	b.WriteString("return config\n")
	return []byte(b.String())
}
