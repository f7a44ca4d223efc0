package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store-wide statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out struct {
			Conversations int   `json:"conversations"`
			Archived      int   `json:"archived"`
			Messages      int64 `json:"messages"`
		}
		if _, err := apiGet("/admin/stats", &out); err != nil {
			return err
		}
		fmt.Printf("conversations: %d (archived: %d)\n", out.Conversations, out.Archived)
		fmt.Printf("message records: %d\n", out.Messages)
		return nil
	},
}

var keysPrefix string

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List raw store keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := ""
		if keysPrefix != "" {
			q = "?prefix=" + url.QueryEscape(keysPrefix)
		}
		var out struct {
			Keys []string `json:"keys"`
		}
		if _, err := apiGet("/admin/keys"+q, &out); err != nil {
			return err
		}
		for _, k := range out.Keys {
			fmt.Println(k)
		}
		return nil
	},
}

var getKeyCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Dump the raw value stored under a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := apiGet("/admin/keys/"+url.PathEscape(args[0]), nil)
		if err != nil {
			return err
		}
		fmt.Println(string(body))
		return nil
	},
}

func init() {
	keysCmd.Flags().StringVar(&keysPrefix, "prefix", "", "Key prefix filter")
	keysCmd.AddCommand(getKeyCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(keysCmd)
}
