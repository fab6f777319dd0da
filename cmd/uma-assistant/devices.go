package main

import (
	"fmt"

	cli "github.com/spf13/cobra"

	"github.com/uma-tools/uma-assistant/internal/adb"
)

var (
	devicesCmd = &cli.Command{
		Use:   "devices",
		Short: "List devices known to the ADB server",
		RunE:  Devices,
	}
)

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func Devices(cmd *cli.Command, args []string) error {
	manager, err := adb.NewManager()
	if err != nil {
		return fmt.Errorf("adb is not available: %w", err)
	}

	if err := manager.StartServer(); err != nil {
		return fmt.Errorf("failed to start adb server: %w", err)
	}

	devices, err := manager.Devices()
	if err != nil {
		return err
	}

	if len(devices) == 0 {
		fmt.Println("no devices found")
		return nil
	}

	for _, device := range devices {
		line := fmt.Sprintf("%s\t%s", device.Address, device.Status)
		if device.Model != "" {
			line += "\t" + device.Model
		}
		fmt.Println(line)
	}
	return nil
}
