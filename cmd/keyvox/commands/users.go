package commands

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/keyvox/keyvox/pkg/profile"
	"github.com/keyvox/keyvox/pkg/voiceprint"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage user profiles",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp()

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "USERNAME\tFULL NAME\tEMAIL\tVOICE")
		count := 0
		for rec, err := range a.profiles.All(cmd.Context()) {
			if err != nil {
				return err
			}
			count++
			voice := "-"
			if rec.VoiceEnrolled {
				voice = "enrolled"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				rec.Username, orDash(rec.FullName), orDash(rec.Email), voice)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if count == 0 {
			fmt.Println("no users")
		}
		return nil
	},
}

var usersImportCmd = &cobra.Command{
	Use:   "import <users.json>",
	Short: "Import profiles from a legacy users.json file",
	Long: `Import normalizes a legacy users.json file into the profile store.

All historical shapes are accepted: a bare list of user objects, a map
keyed by user id, or an object wrapping the list under "enrolled_users".
Passwords in the file are ignored. Existing profiles with the same
username are overwritten.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		a, closeApp, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp()

		imported, err := profile.ImportLegacyJSON(cmd.Context(), a.profiles, data)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d profile(s)\n", len(imported))
		for _, rec := range imported {
			fmt.Printf("  %s\n", rec.Username)
		}
		return nil
	},
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "Delete a user's profile and voiceprint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := args[0]

		a, closeApp, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp()

		ctx := cmd.Context()
		if _, err := a.profiles.Get(ctx, username); errors.Is(err, profile.ErrNotFound) {
			if _, verr := a.prints.Load(ctx, username); errors.Is(verr, voiceprint.ErrNotFound) {
				return fmt.Errorf("no user %q", username)
			}
		}
		if err := a.prints.Delete(ctx, username); err != nil {
			return err
		}
		if err := a.profiles.Delete(ctx, username); err != nil {
			return err
		}
		fmt.Printf("Deleted %q\n", username)
		return nil
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersImportCmd)
	usersCmd.AddCommand(usersDeleteCmd)
	rootCmd.AddCommand(usersCmd)
}
