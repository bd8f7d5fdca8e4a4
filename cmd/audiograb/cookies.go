package main

import (
	"fmt"
	"os"

	"audiograb/pkg/auth"
	"audiograb/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	cookieValue string
	showGuide   bool
)

// cookiesCmd represents the cookies command
var cookiesCmd = &cobra.Command{
	Use:   "cookies",
	Short: "Manage stored browser cookies",
	Long: `Store the Cookie header your browser sends to a site so audiograb can reuse a
session that already passed the site's checks.

Cookies are stored in the system keychain when available, otherwise in an
encrypted file. AUDIOGRAB_COOKIE_<HOST> environment variables are also read.`,
}

var cookiesSetCmd = &cobra.Command{
	Use:   "set <host>",
	Short: "Store the Cookie header for a host",
	Example: `  audiograb cookies set example.com
  audiograb cookies set example.com --value "sid=abc; cf_clearance=xyz"`,
	Args: cobra.ExactArgs(1),
	RunE: runCookiesSet,
}

var cookiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List hosts with stored cookies",
	Args:  cobra.NoArgs,
	RunE:  runCookiesList,
}

var cookiesRemoveCmd = &cobra.Command{
	Use:     "remove <host>",
	Aliases: []string{"rm", "delete"},
	Short:   "Remove the cookies stored for a host",
	Args:    cobra.ExactArgs(1),
	RunE:    runCookiesRemove,
}

func init() {
	rootCmd.AddCommand(cookiesCmd)
	cookiesCmd.AddCommand(cookiesSetCmd, cookiesListCmd, cookiesRemoveCmd)

	cookiesSetCmd.Flags().StringVar(&cookieValue, "value", "", "cookie header (read hidden from the terminal when omitted)")
	cookiesSetCmd.Flags().BoolVar(&showGuide, "guide", false, "show how to copy cookies from a browser")
}

func runCookiesSet(cmd *cobra.Command, args []string) error {
	host := auth.NormalizeHost(args[0])
	if host == "" {
		return fmt.Errorf("invalid host %q", args[0])
	}

	value := cookieValue
	if value == "" {
		if showGuide {
			auth.ShowCookieGuide(os.Stderr, host)
		} else {
			auth.ShowQuickGuide(os.Stderr)
		}
		var err error
		value, err = ui.NewPrompter().ReadSecret("Cookie header for " + host)
		if err != nil {
			return err
		}
	}

	store, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to open cookie store: %w", err)
	}
	if err := store.Store(host, value); err != nil {
		return err
	}
	ui.PrintSuccess("Cookies stored for " + host)
	return nil
}

func runCookiesList(cmd *cobra.Command, args []string) error {
	store, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to open cookie store: %w", err)
	}
	entries, err := store.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No stored cookies. Add some with 'audiograb cookies set <host>'.")
		return nil
	}

	for _, c := range entries {
		modified := "env"
		if !c.LastModified.IsZero() {
			modified = c.LastModified.Format("2006-01-02 15:04")
		}
		fmt.Printf("%s  %s  %s\n", ui.Cyan(c.Host), ui.Dim(modified), auth.Mask(c.Header))
	}
	return nil
}

func runCookiesRemove(cmd *cobra.Command, args []string) error {
	store, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to open cookie store: %w", err)
	}
	host := auth.NormalizeHost(args[0])
	if err := store.Delete(host); err != nil {
		return err
	}
	ui.PrintSuccess("Cookies removed for " + host)
	return nil
}
