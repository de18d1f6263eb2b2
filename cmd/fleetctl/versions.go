package main

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

type artifactVersion struct {
	ID         string `json:"id"`
	TypeCode   string `json:"typeCode"`
	Parameter  string `json:"parameter"`
	FullKey    string `json:"fullKey"`
	VersionTag string `json:"versionTag"`
	SizeBytes  int64  `json:"sizeBytes"`
	Checksum   string `json:"checksum"`
	CreatedBy  string `json:"createdBy"`
	CreatedAt  string `json:"createdAt"`
}

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "Manage artifact versions",
}

var versionsListCmd = &cobra.Command{
	Use:   "list <fullKey>",
	Short: "List versions of an artifact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var result struct {
			Versions []artifactVersion `json:"versions"`
		}
		path := "/api/v1/versions?pageSize=100&fullKey=" + url.QueryEscape(args[0])
		if err := newClient().getJSON(path, &result); err != nil {
			return err
		}

		if outputFmt == "table" {
			rows := make([][]string, len(result.Versions))
			for i, v := range result.Versions {
				rows[i] = []string{v.VersionTag, v.FullKey, fmt.Sprintf("%d", v.SizeBytes), v.Checksum, v.CreatedBy, v.CreatedAt, truncate(v.ID, 12)}
			}
			printTable([]string{"tag", "full key", "size", "checksum", "created by", "created at", "id"}, rows)
			return nil
		}
		return printOutput(result.Versions)
	},
}

var versionsCreateCmd = &cobra.Command{
	Use:   "create <typeCode> <parameter> <versionTag> <payloadFile>",
	Short: "Create a version from a payload file",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := os.ReadFile(args[3])
		if err != nil {
			return fmt.Errorf("read payload file: %w", err)
		}

		var created artifactVersion
		err = newClient().postJSON("/api/v1/versions", map[string]string{
			"typeCode":   args[0],
			"parameter":  args[1],
			"versionTag": args[2],
			"payload":    base64.StdEncoding.EncodeToString(payload),
		}, &created)
		if err != nil {
			return err
		}
		fmt.Printf("created version %s of %s (%d bytes, checksum %s)\n",
			created.VersionTag, created.FullKey, created.SizeBytes, created.Checksum)
		return nil
	},
}

var versionsDeleteCmd = &cobra.Command{
	Use:   "delete <versionId>",
	Short: "Soft-delete a version (only if no assignment references it)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().delete("/api/v1/versions/" + url.PathEscape(args[0])); err != nil {
			return err
		}
		fmt.Printf("deleted version %s\n", args[0])
		return nil
	},
}

func init() {
	versionsCmd.AddCommand(versionsListCmd)
	versionsCmd.AddCommand(versionsCreateCmd)
	versionsCmd.AddCommand(versionsDeleteCmd)
}
