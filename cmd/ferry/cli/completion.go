package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/meigma/ferry/cmd/ferry/cli/config"
)

// completeProgressModes suggests values for the --progress flag.
func completeProgressModes(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return filterPrefix([]string{"auto", "tty", "plain"}, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeConfigKeys suggests configuration keys for `config set`.
func completeConfigKeys(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		if args[0] == "progress" && len(args) == 1 {
			return completeProgressModes(nil, nil, toComplete)
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return filterPrefix(config.Keys, toComplete), cobra.ShellCompDirectiveNoFileComp
}

func filterPrefix(values []string, prefix string) []string {
	var out []string
	for _, v := range values {
		if strings.HasPrefix(v, prefix) {
			out = append(out, v)
		}
	}
	return out
}
