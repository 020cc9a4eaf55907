package cli

import (
	"fmt"
	"strings"

	"github.com/soyeahso/helix/internal/config"
	"github.com/soyeahso/helix/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show Helix paths and a configuration summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Helix %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "Config:  %s\n", paths.Config)
			fmt.Fprintf(out, "Data:    %s\n", paths.Data)
			fmt.Fprintln(out)

			c, err := loadedConfig()
			if err != nil {
				fmt.Fprintf(out, "Config:  error loading: %v\n", err)
				return nil
			}

			fmt.Fprintf(out, "Gateway: port=%d bind=%s auth=%s\n",
				c.Gateway.Port, c.Gateway.Bind, c.Gateway.Auth.Mode)

			storeDesc := c.Store.Driver
			if c.Store.Driver == "sqlite" {
				storeDesc += " " + paths.DBPath(c.Store)
			}
			fmt.Fprintf(out, "Store:   %s\n", storeDesc)

			chain := []string{c.LLM.Provider + "/" + c.LLM.Model}
			for _, fb := range c.LLM.Fallbacks {
				chain = append(chain, fb.Provider+"/"+fb.Model)
			}
			fmt.Fprintf(out, "LLM:     %s (temperature %.2f, timeout %s)\n",
				strings.Join(chain, " -> "), c.LLM.Temp(), c.LLM.Timeout())

			if irc := c.Channels.IRC; irc != nil {
				fmt.Fprintf(out, "IRC:     server=%s nick=%s tls=%v allow=%s\n",
					irc.Server, irc.Nick, irc.UseTLS, strings.Join(irc.Allow, ","))
			} else {
				fmt.Fprintln(out, "IRC:     (not configured)")
			}

			printIssues(cmd, config.Validate(&c))
			return nil
		},
	}
}

func printIssues(cmd *cobra.Command, issues []config.ValidationIssue) {
	if len(issues) == 0 {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
	for _, issue := range issues {
		fmt.Fprintf(out, "  - %s\n", issue)
	}
}
