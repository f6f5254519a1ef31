package cli

import (
	"github.com/lazypower/trustledger/internal/client"
	"github.com/spf13/cobra"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "trustledger",
	Short: "Reputation ledger for invite-based communities",
	Long: "trustledger tracks a trust score per user, links users into an invite forest, " +
		"and lets governed burns spread attenuated accountability up to inviters.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "url", "", "Server URL (default $TRUSTLEDGER_URL or "+client.DefaultServerURL+")")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(burnCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(governanceCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(eventsCmd)
}

func newClient() *client.Client {
	return client.NewClient(serverURL)
}
