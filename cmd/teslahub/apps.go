package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/teslahub/internal/domain"
	"github.com/MrSnakeDoc/teslahub/internal/tab"
)

var appsCmd = &cobra.Command{
	Use:     "apps",
	Aliases: []string{"app"},
	Short:   "List and edit the bookmarks of a profile",
	Long: `Edit the bookmarks of the profile given by --profile. A profile that was
never written is first filled with the default set for the region of --tz.

Every change is committed as a new version; other teslahub processes
watching the same profile pick it up.`,
}

var listJSON bool

var appsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Show the bookmarks in order",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openTab(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer env.close()

		items := env.tab.Items()
		if listJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(items)
		}
		printList(cmd.OutOrStdout(), items)
		fmt.Fprintf(cmd.OutOrStdout(), "\nversion %d, theme %s\n", env.tab.Version(), env.tab.Theme())
		return nil
	},
}

var appsAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Append a bookmark",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openTab(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer env.close()

		item, err := env.tab.Add(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ added %s (%s) as %s\n", item.Name, item.URL, item.ID)
		return nil
	},
}

var (
	editName string
	editURL  string
)

var appsEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Rename a bookmark or change its URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if editName == "" && editURL == "" {
			return fmt.Errorf("nothing to change: pass --name and/or --url")
		}
		env, err := openTab(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer env.close()

		current, err := findItem(env.tab, args[0])
		if err != nil {
			return err
		}
		name, rawURL := current.Name, current.URL
		if editName != "" {
			name = editName
		}
		if editURL != "" {
			rawURL = editURL
		}

		item, err := env.tab.Edit(cmd.Context(), current.ID, name, rawURL)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ %s is now %s (%s)\n", item.ID, item.Name, item.URL)
		return nil
	},
}

var appsRemoveCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"remove", "delete"},
	Short:   "Delete a bookmark",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openTab(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer env.close()

		if err := env.tab.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "🗑️  removed %s\n", args[0])
		return nil
	},
}

var appsMoveCmd = &cobra.Command{
	Use:   "move <from> <to>",
	Short: "Move the bookmark at one position to another (0-based)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid position %q", args[0])
		}
		to, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid position %q", args[1])
		}

		env, err := openTab(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer env.close()

		if err := env.tab.Move(cmd.Context(), from, to); err != nil {
			return err
		}
		printList(cmd.OutOrStdout(), env.tab.Items())
		return nil
	},
}

var appsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Replace the bookmarks with the default set",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openTab(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer env.close()

		if err := env.tab.Reset(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "🔄 reset to %d default bookmarks\n", len(env.tab.Items()))
		return nil
	},
}

var themeShow bool

var appsThemeCmd = &cobra.Command{
	Use:   "theme",
	Short: "Toggle between light and dark",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openTab(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer env.close()

		if themeShow {
			fmt.Fprintln(cmd.OutOrStdout(), env.tab.Theme())
			return nil
		}
		t, err := env.tab.ToggleTheme(cmd.Context())
		fmt.Fprintln(cmd.OutOrStdout(), t)
		return err
	},
}

var appsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the list every time another tab changes it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := openTab(ctx, false)
		if err != nil {
			return err
		}
		defer env.close()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "watching %s at version %d (Ctrl+C to stop)\n", profilePath, env.tab.Version())
		for {
			select {
			case <-ctx.Done():
				return nil
			case u, ok := <-env.tab.Updates():
				if !ok {
					return nil
				}
				if u.Reset {
					fmt.Fprintln(out, "\n🔄 profile was reset")
				}
				fmt.Fprintf(out, "\nversion %d from %s\n", u.Snapshot.Version, u.Snapshot.SourceID)
				printList(out, u.Items)
			}
		}
	},
}

func init() {
	appsListCmd.Flags().BoolVar(&listJSON, "json", false, "Print the list as JSON")
	appsEditCmd.Flags().StringVar(&editName, "name", "", "New display name")
	appsEditCmd.Flags().StringVar(&editURL, "url", "", "New URL")
	appsThemeCmd.Flags().BoolVar(&themeShow, "show", false, "Print the current theme without changing it")

	appsCmd.AddCommand(appsListCmd, appsAddCmd, appsEditCmd, appsRemoveCmd,
		appsMoveCmd, appsResetCmd, appsThemeCmd, appsWatchCmd)
	rootCmd.AddCommand(appsCmd)
}

func findItem(s *tab.Session, id string) (domain.BookmarkItem, error) {
	items := s.Items()
	i := items.IndexOf(id)
	if i < 0 {
		return domain.BookmarkItem{}, fmt.Errorf("%w: %s", domain.ErrItemNotFound, id)
	}
	return items[i], nil
}

func printList(w io.Writer, items domain.BookmarkList) {
	if len(items) == 0 {
		fmt.Fprintln(w, "no bookmarks")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tURL\tID")
	for i, it := range items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i, it.Name, it.URL, it.ID)
	}
	_ = tw.Flush()
}
