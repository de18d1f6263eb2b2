package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type deviceIdentity struct {
	DeviceID  string `json:"deviceId"`
	LineID    string `json:"lineId"`
	Serial    string `json:"serial"`
	UpdatedAt string `json:"updatedAt"`
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Manage the device registry feed",
}

var devicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		var result struct {
			Devices []deviceIdentity `json:"devices"`
		}
		if err := newClient().getJSON("/api/v1/devices", &result); err != nil {
			return err
		}

		if outputFmt == "table" {
			rows := make([][]string, len(result.Devices))
			for i, d := range result.Devices {
				rows[i] = []string{d.DeviceID, d.LineID, d.Serial, d.UpdatedAt}
			}
			printTable([]string{"device", "line", "serial", "updated at"}, rows)
			return nil
		}
		return printOutput(result.Devices)
	},
}

var (
	deviceLine   string
	deviceSerial string
)

var devicesRegisterCmd = &cobra.Command{
	Use:   "register <deviceId>",
	Short: "Register a device or update its line assignment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var registered deviceIdentity
		err := newClient().postJSON("/api/v1/devices", map[string]string{
			"deviceId": args[0],
			"lineId":   deviceLine,
			"serial":   deviceSerial,
		}, &registered)
		if err != nil {
			return err
		}
		fmt.Printf("registered device %s (line %s)\n", registered.DeviceID, registered.LineID)
		return nil
	},
}

func init() {
	devicesRegisterCmd.Flags().StringVar(&deviceLine, "line", "", "line the device belongs to")
	devicesRegisterCmd.Flags().StringVar(&deviceSerial, "serial", "", "device serial number")
	devicesCmd.AddCommand(devicesListCmd)
	devicesCmd.AddCommand(devicesRegisterCmd)
}
