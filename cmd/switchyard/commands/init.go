package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/switchyard-io/switchyard/internal/cli/prompt"
	"github.com/switchyard-io/switchyard/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample switchyard configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/switchyard/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  switchyard init

  # Initialize with custom path
  switchyard init --config /etc/switchyard/config.yaml

  # Force overwrite existing config
  switchyard init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	force := initForce
	if !force {
		if _, err := os.Stat(configPath); err == nil {
			ok, err := prompt.Confirm(fmt.Sprintf("Config file exists at %s, overwrite", configPath), false)
			if err != nil {
				if errors.Is(err, prompt.ErrAborted) {
					fmt.Println("Aborted, keeping existing configuration")
					return nil
				}
				return err
			}
			if !ok {
				fmt.Println("Keeping existing configuration")
				return nil
			}
			force = true
		}
	}

	if err := config.InitConfigToPath(configPath, force); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the server with: switchyard start")
	fmt.Printf("  3. Or specify custom config: switchyard start --config %s\n", configPath)
	return nil
}
