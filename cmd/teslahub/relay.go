package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/teslahub/internal/bridge"
	"github.com/MrSnakeDoc/teslahub/internal/domain"
	"github.com/MrSnakeDoc/teslahub/internal/ledger"
	"github.com/MrSnakeDoc/teslahub/internal/relay"
)

var (
	qrEditID  string
	qrTimeout time.Duration
)

var appsQRCmd = &cobra.Command{
	Use:   "qr",
	Short: "Add (or edit) a bookmark from a phone by scanning a QR code",
	Long: `Open a relay session on the server and print its QR code. The phone that
scans it gets a form; what it submits is added to the profile. With --edit
the form is prefilled with that bookmark and the submission replaces it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := openTab(ctx, false)
		if err != nil {
			return err
		}
		defer env.close()

		client, err := env.requireServer()
		if err != nil {
			return err
		}

		req := relay.OpenRequest{Kind: domain.KindItem}
		if qrEditID != "" {
			current, err := findItem(env.tab, qrEditID)
			if err != nil {
				return err
			}
			req.Name, req.URL = current.Name, current.URL
		}

		m := relay.NewManager(client, qrTimeout, env.log, nil)
		h, err := m.Open(ctx, req)
		if err != nil {
			return err
		}

		link := h.QRURL(client.BaseURL(), env.tab.Theme())
		out := cmd.OutOrStdout()
		if q, err := qrcode.New(link, qrcode.Medium); err == nil {
			fmt.Fprintln(out, q.ToSmallString(false))
		}
		fmt.Fprintf(out, "📱 scan or open %s\n   waiting up to %s...\n", link, m.Timeout())

		select {
		case <-ctx.Done():
			abandonCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = h.Abandon(abandonCtx)
			return ctx.Err()

		case o := <-h.Result():
			switch o.Kind {
			case relay.Completed:
				name, rawURL := o.Item()
				if qrEditID != "" {
					item, err := env.tab.Edit(ctx, qrEditID, name, rawURL)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "✅ %s is now %s (%s)\n", item.ID, item.Name, item.URL)
					return nil
				}
				item, err := env.tab.Add(ctx, name, rawURL)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "✅ added %s (%s) as %s\n", item.Name, item.URL, item.ID)
				return nil
			case relay.Expired:
				return errors.New("the QR code expired before anything was submitted")
			case relay.Invalid:
				return errors.New("the relay session disappeared before anything was submitted")
			default:
				return fmt.Errorf("relay failed: %w", o.Err)
			}
		}
	},
}

var (
	fullscreenBase     string
	fullscreenRedirect string
	fullscreenStrategy string
)

var appsFullscreenCmd = &cobra.Command{
	Use:   "fullscreen",
	Short: "Print the URL that reopens this list in a fullscreen tab",
	Long: `Encode the current list into an entry URL. The inline strategy puts the
list in the URL itself; the session strategy stores it on the server and
passes only the session id. With --redirect the escaped URL is appended to
the given redirector prefix, e.g. "https://www.youtube.com/redirect?q=".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := openTab(ctx, false)
		if err != nil {
			return err
		}
		defer env.close()

		base := fullscreenBase
		if base == "" && env.client != nil {
			base = env.client.BaseURL() + "/"
		}
		if base == "" {
			return errors.New("no entry URL: pass --base or --server")
		}

		strategy := bridge.ParseStrategy(fullscreenStrategy)
		var carrier bridge.Carrier
		if strategy == bridge.StrategySession {
			client, err := env.requireServer()
			if err != nil {
				return err
			}
			carrier = bridge.NewSessionCarrier(relay.NewManager(client, 0, env.log, nil))
		}

		b := bridge.New(carrier, strategy, env.log)
		v, err := b.Send(ctx, env.tab.Items())
		if err != nil {
			return err
		}
		entry, err := bridge.EntryURL(base, v)
		if err != nil {
			return err
		}
		if fullscreenRedirect != "" {
			entry = bridge.WrapRedirect(entry, fullscreenRedirect)
		}
		fmt.Fprintln(cmd.OutOrStdout(), entry)
		return nil
	},
}

var appsReceiveCmd = &cobra.Command{
	Use:   "receive <entry-url>",
	Short: "Apply the list carried by a fullscreen entry URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := url.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid entry url: %w", err)
		}
		v := u.Query()

		ctx := cmd.Context()
		env, err := openTab(ctx, bridge.IsFullscreen(v))
		if err != nil {
			return err
		}
		defer env.close()

		var carrier bridge.Carrier
		if env.client != nil {
			carrier = bridge.NewSessionCarrier(relay.NewManager(env.client, 0, env.log, nil))
		}
		b := bridge.New(carrier, bridge.StrategyInline, env.log)

		list, ok := b.Receive(ctx, v)
		if !ok {
			return errors.New("no usable list in that url, profile left unchanged")
		}
		if err := env.tab.Apply(ctx, list, ledger.LabelBridge); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ received %d bookmarks (version %d)\n", len(list), env.tab.Version())
		return nil
	},
}

func init() {
	appsQRCmd.Flags().StringVar(&qrEditID, "edit", "", "Edit this bookmark instead of adding one")
	appsQRCmd.Flags().DurationVar(&qrTimeout, "timeout", relay.DefaultTimeout, "How long the QR code stays valid")

	appsFullscreenCmd.Flags().StringVar(&fullscreenBase, "base", "", "Entry page URL (default: the server URL)")
	appsFullscreenCmd.Flags().StringVar(&fullscreenRedirect, "redirect", os.Getenv("TESLAHUB_REDIRECT_URL"), "Redirector prefix the escaped entry URL is appended to")
	appsFullscreenCmd.Flags().StringVar(&fullscreenStrategy, "strategy", string(bridge.StrategyInline), "inline or session")

	appsCmd.AddCommand(appsQRCmd, appsFullscreenCmd, appsReceiveCmd)
}
