package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

type artifactType struct {
	TypeCode  string `json:"typeCode"`
	Name      string `json:"name"`
	CreatedBy string `json:"createdBy"`
	CreatedAt string `json:"createdAt"`
}

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "Manage artifact types",
}

var typesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered artifact types",
	RunE: func(cmd *cobra.Command, args []string) error {
		var result struct {
			Types         []artifactType `json:"types"`
			NextPageToken string         `json:"nextPageToken"`
		}
		if err := newClient().getJSON("/api/v1/types?pageSize=100", &result); err != nil {
			return err
		}

		if outputFmt == "table" {
			rows := make([][]string, len(result.Types))
			for i, t := range result.Types {
				rows[i] = []string{t.TypeCode, t.Name, t.CreatedBy, t.CreatedAt}
			}
			printTable([]string{"type", "name", "created by", "created at"}, rows)
			return nil
		}
		return printOutput(result.Types)
	},
}

var typesRegisterCmd = &cobra.Command{
	Use:   "register <typeCode> <name>",
	Short: "Register a new artifact type",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var created artifactType
		err := newClient().postJSON("/api/v1/types", map[string]string{
			"typeCode": args[0],
			"name":     args[1],
		}, &created)
		if err != nil {
			return err
		}
		fmt.Printf("registered type %s (%s)\n", created.TypeCode, created.Name)
		return nil
	},
}

var typesDeleteCmd = &cobra.Command{
	Use:   "delete <typeCode>",
	Short: "Delete an artifact type (only if no versions reference it)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().delete("/api/v1/types/" + url.PathEscape(args[0])); err != nil {
			return err
		}
		fmt.Printf("deleted type %s\n", args[0])
		return nil
	},
}

func init() {
	typesCmd.AddCommand(typesListCmd)
	typesCmd.AddCommand(typesRegisterCmd)
	typesCmd.AddCommand(typesDeleteCmd)
}
