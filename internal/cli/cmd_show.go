package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/glabrego/selfoss-cli/internal/render/article"
	"github.com/glabrego/selfoss-cli/internal/selfoss"
)

type showResponse struct {
	selfoss.Entry
	Markdown string   `json:"markdown"`
	Images   []string `json:"images"`
}

func newShowCmd(getApp func() *App, getOutput func() OutputFormat) *cobra.Command {
	var noImages bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a cached entry as markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(getApp)
			if err != nil {
				return err
			}
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			entry, err := app.repo.GetEntry(cmd.Context(), ids[0])
			if err != nil {
				return err
			}

			opts := article.DefaultOptions
			if noImages {
				opts.ImageMode = article.ImageModeNone
			}
			markdown := article.NewRenderer(opts).Markdown(entry)
			out := cmd.OutOrStdout()
			if getOutput() == OutputJSON {
				images := article.ImageURLs(entry.Content)
				if noImages || images == nil {
					images = []string{}
				}
				return writeJSON(out, showResponse{Entry: entry, Markdown: markdown, Images: images})
			}
			writeEntryText(out, entry, markdown)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noImages, "no-images", false, "Drop images from the rendered content")
	return cmd
}

func writeEntryText(out io.Writer, e selfoss.Entry, markdown string) {
	fmt.Fprintf(out, "# %s\n\n", displayTitle(e))
	fmt.Fprintf(out, "ID: %d\n", e.ID)
	if e.SourceTitle != "" {
		fmt.Fprintf(out, "Source: %s\n", e.SourceTitle)
	}
	if e.Author != "" {
		fmt.Fprintf(out, "Author: %s\n", e.Author)
	}
	fmt.Fprintf(out, "Date: %s\n", e.Datetime.UTC().Format(time.RFC3339))
	if len(e.Tags) > 0 {
		fmt.Fprintf(out, "Tags: %s\n", strings.Join(e.Tags.Names(), ", "))
	}
	fmt.Fprintf(out, "Flags: %s\n", entryFlags(e))
	if e.Link != "" {
		fmt.Fprintf(out, "URL: %s\n", e.Link)
	}
	if markdown != "" {
		fmt.Fprintf(out, "\n%s\n", markdown)
	}
}
