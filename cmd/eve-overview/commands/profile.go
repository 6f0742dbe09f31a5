package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AreteDriver/EVE-Overview/internal/config"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage window layout profiles",
	Long: `Manage named profiles. A profile records which windows are previewed,
each panel's geometry, capture scale, and hotkey.

The "Default" profile always exists and cannot be deleted.`,
}

var profileFormat string

func init() {
	rootCmd.AddCommand(profileCmd)

	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileCreateCmd)
	profileCmd.AddCommand(profileDeleteCmd)
	profileCmd.AddCommand(profileSwitchCmd)

	profileShowCmd.Flags().StringVarP(&profileFormat, "format", "f", "yaml", "output format (yaml or json)")
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		current := store.CurrentProfile().Name
		for _, name := range store.ListProfiles() {
			marker := " "
			if name == current {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, name)
		}
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a profile's contents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		profile, err := store.LoadProfile(args[0])
		if err != nil {
			return err
		}

		switch profileFormat {
		case "json":
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(profile)
		case "yaml":
			return yaml.NewEncoder(os.Stdout).Encode(profile)
		default:
			return fmt.Errorf("unsupported format: %s (use 'yaml' or 'json')", profileFormat)
		}
	},
}

var profileCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an empty profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		if err := store.SaveProfile(config.NewProfile(args[0])); err != nil {
			return err
		}
		fmt.Printf("Profile %q created\n", args[0])
		return nil
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		if err := store.DeleteProfile(args[0]); err != nil {
			return err
		}
		fmt.Printf("Profile %q deleted\n", args[0])
		return nil
	},
}

var profileSwitchCmd = &cobra.Command{
	Use:   "switch <name>",
	Short: "Make a profile current",
	Long: `Make a profile current. A running daemon picks the change up on its
next start; use the API to switch profiles live.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		if _, err := store.LoadProfile(args[0]); err != nil {
			return err
		}
		store.SetCurrentProfile(args[0])
		fmt.Printf("Current profile is now %q\n", args[0])
		return nil
	},
}
