package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/soyeahso/helix/internal/sequence"
	"github.com/soyeahso/helix/internal/store"
	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect persisted sessions and finalized sequences",
	}

	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsShowCmd())
	cmd.AddCommand(newSessionsDeleteCmd())
	return cmd
}

// withReader opens the configured record store for a read-only command.
func withReader(fn func(store.Reader) error) error {
	c, err := loadedConfig()
	if err != nil {
		return err
	}
	_, reader, db, err := openRecords(c, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	return fn(reader)
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List persisted sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReader(func(r store.Reader) error {
				recs, err := r.ListSessions(cmd.Context())
				if err != nil {
					return err
				}
				if len(recs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no sessions")
					return nil
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tUSER\tCOMPANY\tROLE\tMESSAGES\tFINALIZED")
				for _, rec := range recs {
					finalized := "-"
					if rec.FinalizedAt != nil {
						finalized = rec.FinalizedAt.Local().Format(time.DateTime)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
						rec.ID, orDash(rec.UserName), orDash(rec.UserInfo.Company),
						orDash(rec.UserInfo.Role), rec.Messages, finalized)
				}
				return tw.Flush()
			})
		},
	}
}

func newSessionsShowCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session's profile and saved sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReader(func(r store.Reader) error {
				rec, err := r.GetSession(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				seq, err := r.GetSequence(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(map[string]any{"session": rec, "sequence": seq})
				}

				fmt.Fprintln(out, styleHeader.Render("Session "+rec.ID))
				info := rec.UserInfo
				for _, kv := range [][2]string{
					{"User", rec.UserName},
					{"Company", info.Company},
					{"Role", info.Role},
					{"Industry", info.Industry},
					{"Experience", info.ExperienceLevel},
					{"Context", info.AdditionalContext},
				} {
					fmt.Fprintf(out, "  %-11s %s\n", kv[0]+":", orDash(kv[1]))
				}
				fmt.Fprintln(out, styleSequence.Render(strings.TrimRight(sequence.Render(seq), "\n")))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newSessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a persisted session and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReader(func(r store.Reader) error {
				d, ok := r.(interface {
					DeleteSession(ctx context.Context, id string) (bool, error)
				})
				if !ok {
					return fmt.Errorf("store driver does not support delete")
				}
				deleted, err := d.DeleteSession(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !deleted {
					return fmt.Errorf("session %s not found", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
