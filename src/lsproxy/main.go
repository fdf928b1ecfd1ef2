package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/devcontainer-tools/lsproxy/src/lsproxy/app"
)

var (
	relayContainer string
	relayServer    string
	relayRoot      string
)

func opts() fx.Option {
	return fx.Options(
		app.Module,
	)
}

func relayOpts() fx.Option {
	return app.RelayModule(app.RelayOptions{
		ContainerID: relayContainer,
		ServerName:  relayServer,
		HostRoot:    relayRoot,
	})
}

var rootCmd = &cobra.Command{
	Use:   "lsproxy",
	Short: "Language server proxy daemon for containerized workspaces",
	Run: func(cmd *cobra.Command, args []string) {
		fx.New(opts()).Run()
	},
}

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Bind stdin/stdout to a proxied language server session",
	Run: func(cmd *cobra.Command, args []string) {
		fx.New(relayOpts()).Run()
	},
}

func init() {
	relayCmd.Flags().StringVar(&relayContainer, "container", "", "container id or name")
	relayCmd.Flags().StringVar(&relayServer, "server", "", "language server name")
	relayCmd.Flags().StringVar(&relayRoot, "root", "", "host workspace root (defaults to the enclosing repository)")
	relayCmd.MarkFlagRequired("container")
	relayCmd.MarkFlagRequired("server")
	rootCmd.AddCommand(relayCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
