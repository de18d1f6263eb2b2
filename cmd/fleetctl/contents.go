package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

type contentRecord struct {
	ID              string `json:"id"`
	TypeCode        string `json:"typeCode"`
	Parameter       string `json:"parameter"`
	ParentKey       string `json:"parentKey"`
	VersionTag      string `json:"versionTag"`
	Status          string `json:"status"`
	TargetLevel     string `json:"targetLevel"`
	TargetKey       string `json:"targetKey"`
	Fare            string `json:"fare"`
	Checksum        string `json:"checksum"`
	LinkedVersionID string `json:"linkedVersionId"`
	CreatedAt       string `json:"createdAt"`
}

var (
	contentTargetLevel string
	contentTargetKey   string
	contentFare        string
	contentExtraParams string
	contentDiscounts   string
)

var contentsCmd = &cobra.Command{
	Use:   "contents",
	Short: "Manage authored content (draft/submit/publish)",
}

var contentsListCmd = &cobra.Command{
	Use:   "list <parentKey>",
	Short: "List revisions of a content parent key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var result struct {
			Contents []contentRecord `json:"contents"`
		}
		path := "/api/v1/lifecycle/contents?parentKey=" + url.QueryEscape(args[0])
		if err := newClient().getJSON(path, &result); err != nil {
			return err
		}

		if outputFmt == "table" {
			rows := make([][]string, len(result.Contents))
			for i, c := range result.Contents {
				rows[i] = []string{c.VersionTag, c.Status, c.TargetLevel, c.TargetKey, c.Fare, truncate(c.ID, 12)}
			}
			printTable([]string{"tag", "status", "level", "target", "fare", "id"}, rows)
			return nil
		}
		return printOutput(result.Contents)
	},
}

var contentsCreateCmd = &cobra.Command{
	Use:   "create <typeCode> <parameter>",
	Short: "Create a new draft revision",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var created contentRecord
		err := newClient().postJSON("/api/v1/lifecycle/contents", map[string]string{
			"typeCode":    args[0],
			"parameter":   args[1],
			"targetLevel": contentTargetLevel,
			"targetKey":   contentTargetKey,
			"fare":        contentFare,
			"extraParams": contentExtraParams,
			"discounts":   contentDiscounts,
		}, &created)
		if err != nil {
			return err
		}
		fmt.Printf("created draft %s tag %s\n", created.ID, created.VersionTag)
		return nil
	},
}

var contentsSubmitCmd = &cobra.Command{
	Use:   "submit <id>",
	Short: "Render a draft and record it as an artifact version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var submitted contentRecord
		path := "/api/v1/lifecycle/contents/" + url.PathEscape(args[0]) + "/submit"
		if err := newClient().postJSON(path, nil, &submitted); err != nil {
			return err
		}
		fmt.Printf("submitted %s as version %s of %s (checksum %s)\n",
			submitted.ID, submitted.VersionTag, submitted.ParentKey, submitted.Checksum)
		return nil
	},
}

var contentsPublishCmd = &cobra.Command{
	Use:   "publish <id>",
	Short: "Publish a submitted revision to its own target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var published contentRecord
		path := "/api/v1/lifecycle/contents/" + url.PathEscape(args[0]) + "/publish"
		if err := newClient().postJSON(path, nil, &published); err != nil {
			return err
		}
		fmt.Printf("published %s version %s to %s %s\n",
			published.ParentKey, published.VersionTag, published.TargetLevel, published.TargetKey)
		return nil
	},
}

var contentsCopyCmd = &cobra.Command{
	Use:   "copy <id>",
	Short: "Copy a submitted/published revision into a fresh draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var copied contentRecord
		path := "/api/v1/lifecycle/contents/" + url.PathEscape(args[0]) + "/copy"
		if err := newClient().postJSON(path, nil, &copied); err != nil {
			return err
		}
		fmt.Printf("copied into draft %s tag %s\n", copied.ID, copied.VersionTag)
		return nil
	},
}

var contentsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a draft revision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().delete("/api/v1/lifecycle/contents/" + url.PathEscape(args[0])); err != nil {
			return err
		}
		fmt.Printf("deleted draft %s\n", args[0])
		return nil
	},
}

func init() {
	contentsCreateCmd.Flags().StringVar(&contentTargetLevel, "target-level", "line", "Target level (terminal, line or merchant)")
	contentsCreateCmd.Flags().StringVar(&contentTargetKey, "target-key", "", "Target key of the publish target")
	contentsCreateCmd.Flags().StringVar(&contentFare, "fare", "", "Fare value")
	contentsCreateCmd.Flags().StringVar(&contentExtraParams, "extra", "", "Extra parameters as a JSON object")
	contentsCreateCmd.Flags().StringVar(&contentDiscounts, "discounts", "", "Discount table as a JSON array")

	contentsCmd.AddCommand(contentsListCmd)
	contentsCmd.AddCommand(contentsCreateCmd)
	contentsCmd.AddCommand(contentsSubmitCmd)
	contentsCmd.AddCommand(contentsPublishCmd)
	contentsCmd.AddCommand(contentsCopyCmd)
	contentsCmd.AddCommand(contentsDeleteCmd)
}
