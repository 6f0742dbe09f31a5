package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit application settings",
	Long: `Inspect and edit the application settings stored in config.json:
current_profile, last_profile, window_geometry, and theme.`,
}

var configShowFormat string

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)

	configShowCmd.Flags().StringVarP(&configShowFormat, "format", "f", "yaml", "output format (yaml or json)")
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show all settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}

		settings := store.Settings()
		switch configShowFormat {
		case "json":
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(settings)
		case "yaml":
			return yaml.NewEncoder(os.Stdout).Encode(settings)
		default:
			return fmt.Errorf("unsupported format: %s (use 'yaml' or 'json')", configShowFormat)
		}
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		value := store.Setting(args[0], nil)
		if value == nil {
			return fmt.Errorf("no setting %q", args[0])
		}
		out, err := json.Marshal(value)
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one setting",
	Long: `Set one setting. The value is parsed as JSON when possible, so numbers,
booleans, and objects keep their type; anything else is stored as a
string.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}

		var value interface{}
		if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
			value = args[1]
		}
		store.SetSetting(args[0], value)
		fmt.Printf("%s = %v\n", args[0], value)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		fmt.Println(store.ConfigDir())
		return nil
	},
}
