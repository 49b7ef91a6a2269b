package cmd

import (
	"duners/cli/internal/credential"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// whoamiCmd shows which API key would be used and where it came from.
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the API key in use and its cache identity",
	Long: `The whoami command resolves the API key the same way every other command
does (DUNE_API_KEY, then .env, then the OS keychain) and prints where it was
found, a masked form of the key and the identity that names its cache
directory. It makes no network request.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := credential.Resolve(credential.DefaultOptions())
		if err != nil {
			return report(cmd, err, "resolving the API key")
		}
		store, err := resultStore()
		if err != nil {
			return err
		}
		identity := credential.Identity(res.Credential)
		data := pterm.TableData{
			{"Source", string(res.Source)},
			{"Key", res.Credential.String()},
			{"Identity", identity},
			{"Cache", store.Path(identity, "")},
		}
		out, err := pterm.DefaultTable.WithData(data).Srender()
		if err != nil {
			return err
		}
		pterm.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
