package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

type assignment struct {
	FullKey     string `json:"fullKey"`
	TargetLevel string `json:"targetLevel"`
	TargetKey   string `json:"targetKey"`
	VersionTag  string `json:"versionTag"`
	SizeBytes   int64  `json:"sizeBytes"`
	Checksum    string `json:"checksum"`
	PublishedAt string `json:"publishedAt"`
	Operator    string `json:"operator"`
}

type historyRow struct {
	ID          uint64 `json:"id"`
	FullKey     string `json:"fullKey"`
	TargetLevel string `json:"targetLevel"`
	TargetKey   string `json:"targetKey"`
	VersionTag  string `json:"versionTag"`
	Operation   string `json:"operation"`
	Operator    string `json:"operator"`
	Remark      string `json:"remark"`
	CreatedAt   string `json:"createdAt"`
}

var publishCmd = &cobra.Command{
	Use:   "publish <versionId> <targetLevel> <targetKey>",
	Short: "Publish a version to a target (terminal, line or merchant)",
	Long: `Publish assigns a version to a target. Republishing to an occupied target
replaces the active assignment and records the displaced one as a revoke in
the history trail.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		var created assignment
		err := newClient().postJSON("/api/v1/publish", map[string]string{
			"versionId":   args[0],
			"targetLevel": args[1],
			"targetKey":   args[2],
		}, &created)
		if err != nil {
			return err
		}
		fmt.Printf("published %s version %s to %s %s\n",
			created.FullKey, created.VersionTag, created.TargetLevel, created.TargetKey)
		return nil
	},
}

var revokeCmd = &cobra.Command{
	Use:   "revoke <fullKey> <targetLevel> <targetKey>",
	Short: "Revoke the active assignment for a target",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := newClient().postJSON("/api/v1/revoke", map[string]string{
			"fullKey":     args[0],
			"targetLevel": args[1],
			"targetKey":   args[2],
		}, nil)
		if err != nil {
			return err
		}
		fmt.Printf("revoked %s from %s %s\n", args[0], args[1], args[2])
		return nil
	},
}

var assignmentsCmd = &cobra.Command{
	Use:   "assignments <fullKey>",
	Short: "List active assignments for an artifact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var result struct {
			Assignments []assignment `json:"assignments"`
		}
		path := "/api/v1/assignments?fullKey=" + url.QueryEscape(args[0])
		if err := newClient().getJSON(path, &result); err != nil {
			return err
		}

		if outputFmt == "table" {
			rows := make([][]string, len(result.Assignments))
			for i, a := range result.Assignments {
				rows[i] = []string{a.TargetLevel, a.TargetKey, a.VersionTag, a.Operator, a.PublishedAt}
			}
			printTable([]string{"level", "target", "tag", "operator", "published at"}, rows)
			return nil
		}
		return printOutput(result.Assignments)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <fullKey>",
	Short: "Show the publish/revoke audit trail for an artifact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var result struct {
			History       []historyRow `json:"history"`
			NextPageToken string       `json:"nextPageToken"`
		}
		path := "/api/v1/history?pageSize=100&fullKey=" + url.QueryEscape(args[0])
		if err := newClient().getJSON(path, &result); err != nil {
			return err
		}

		if outputFmt == "table" {
			rows := make([][]string, len(result.History))
			for i, h := range result.History {
				rows[i] = []string{h.Operation, h.VersionTag, h.TargetLevel, h.TargetKey, h.Operator, truncate(h.Remark, 40), h.CreatedAt}
			}
			printTable([]string{"op", "tag", "level", "target", "operator", "remark", "at"}, rows)
			return nil
		}
		return printOutput(result.History)
	},
}
