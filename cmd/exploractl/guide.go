package main

import (
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

var (
	guideFormat string
	guideOut    string
)

var guideCmd = &cobra.Command{
	Use:   "guide <conversation-id>",
	Short: "Export the learning guide for a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := fmt.Sprintf("/v1/conversations/%s/guide?format=%s",
			url.PathEscape(args[0]), url.QueryEscape(guideFormat))
		body, err := apiGet(path, nil)
		if err != nil {
			return err
		}
		if guideOut == "" || guideOut == "-" {
			_, err = os.Stdout.Write(body)
			return err
		}
		if err := os.WriteFile(guideOut, body, 0o644); err != nil {
			return err
		}
		fmt.Println(metaStyle.Render("wrote " + guideOut))
		return nil
	},
}

func init() {
	guideCmd.Flags().StringVar(&guideFormat, "format", "md", "Guide format (md, json, yaml)")
	guideCmd.Flags().StringVarP(&guideOut, "output", "o", "", "Output file (default stdout)")
	rootCmd.AddCommand(guideCmd)
}
