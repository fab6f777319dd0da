package main

import (
	"fmt"
	"log"
	"os"

	cli "github.com/spf13/cobra"

	"github.com/uma-tools/uma-assistant/internal/config"
)

var (
	// The Root Cli Handler
	rootCmd = &cli.Command{
		Use:   "uma-assistant",
		Short: "Android screen mirroring and automation assistant",
	}
)

func init() {
	rootCmd.PersistentFlags().StringP("settings", "s", "Settings.ini", "Path to the settings file")
}

// loadConfig resolves the --settings flag. A missing file is not an error;
// the built-in defaults apply.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("settings")
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cfg, err := config.LoadFromINI(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings from %s: %w", path, err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalln("ERROR:", err)
	}
}
