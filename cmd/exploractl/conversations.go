package main

import (
	"fmt"
	"net/url"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"explora/pkg/models"
	"explora/pkg/thread"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	metaStyle   = lipgloss.NewStyle().Faint(true)
	anchorStyle = lipgloss.NewStyle().Bold(true)
	pinStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	archStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List and inspect conversations",
}

var listArchived string

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := ""
		if listArchived != "" {
			q = "?archived=" + url.QueryEscape(listArchived)
		}
		var out struct {
			Conversations []models.Conversation `json:"conversations"`
		}
		if _, err := apiGet("/v1/conversations"+q, &out); err != nil {
			return err
		}
		if len(out.Conversations) == 0 {
			fmt.Println(metaStyle.Render("no conversations"))
			return nil
		}
		for _, c := range out.Conversations {
			line := titleStyle.Render(c.Title)
			if c.Title == "" {
				line = titleStyle.Render(c.ID)
			}
			if c.Archived {
				line += " " + archStyle.Render("[archived]")
			}
			fmt.Println(line)
			fmt.Println(metaStyle.Render(fmt.Sprintf("  id=%s slug=%s updated=%s",
				c.ID, c.Slug, time.Unix(0, c.UpdatedTS).UTC().Format(time.RFC3339))))
		}
		return nil
	},
}

var conversationsShowCmd = &cobra.Command{
	Use:   "show <conversation-id>",
	Short: "Show the grouped thread view of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out struct {
			Groups []thread.Group `json:"groups"`
		}
		if _, err := apiGet("/v1/conversations/"+url.PathEscape(args[0])+"/groups", &out); err != nil {
			return err
		}
		for _, g := range out.Groups {
			fmt.Println(anchorStyle.Render(fmt.Sprintf("[%s] %s", g.Anchor.Role, g.Anchor.Content)))
			if g.Anchor.Highlight != nil {
				fmt.Println(metaStyle.Render("  branched from: " + g.Anchor.Highlight.Excerpt))
			}
			for _, r := range g.Replies {
				line := fmt.Sprintf("  [%s] %s", r.Role, r.Content)
				if r.Pinned {
					line += " " + pinStyle.Render("(pinned)")
				}
				if r.Confidence != "" {
					line += " " + metaStyle.Render("("+r.Confidence+")")
				}
				fmt.Println(line)
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	conversationsListCmd.Flags().StringVar(&listArchived, "archived", "", "Filter by archived state (true|false)")
	conversationsCmd.AddCommand(conversationsListCmd)
	conversationsCmd.AddCommand(conversationsShowCmd)
	rootCmd.AddCommand(conversationsCmd)
}
