package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

var (
	resolveLine    string
	resolveMachine string
	resolveDate    bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <fullKey>",
	Short: "Ask the resolve question a device would ask",
	Long: `Resolve answers which version tag applies to a device for an artifact,
walking the override order terminal > line > merchant. An empty answer means
no assignment covers the device.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		endpoint := "/File/GetVer"
		if resolveDate {
			endpoint = "/File/GetVerAndDate"
		}

		q := url.Values{}
		q.Set("file", args[0])
		if resolveLine != "" {
			q.Set("line", resolveLine)
		}
		if resolveMachine != "" {
			q.Set("machineid", resolveMachine)
		}

		tag, err := newClient().getText(endpoint + "?" + q.Encode())
		if err != nil {
			return err
		}
		if tag == "" {
			fmt.Println("(no assignment)")
			return nil
		}
		fmt.Println(tag)
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveLine, "line", "", "Line ID of the device")
	resolveCmd.Flags().StringVar(&resolveMachine, "machine", "", "Device (machine) ID")
	resolveCmd.Flags().BoolVar(&resolveDate, "with-date", false, "Append the publish date (yyyyMMdd) to the tag")
}
