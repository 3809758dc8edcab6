package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

const doneSentinel = "[DONE]"

// AskRequest represents the ask API request.
type AskRequest struct {
	Query   string `json:"query"`
	SpaceID string `json:"space_id,omitempty"`
}

// AskSource is one citation attached to a streamed answer.
type AskSource struct {
	PageID     string  `json:"pageId"`
	Title      string  `json:"title"`
	SlugID     string  `json:"slugId"`
	SpaceSlug  string  `json:"spaceSlug"`
	Similarity float64 `json:"similarity"`
	Distance   float64 `json:"distance"`
	ChunkIndex int     `json:"chunkIndex"`
	Excerpt    string  `json:"excerpt"`
}

// askEvent is one NDJSON payload from the ask stream. Exactly one field
// is set per payload.
type askEvent struct {
	Content *string     `json:"content"`
	Sources []AskSource `json:"sources"`
	Error   *string     `json:"error"`
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var spaceID string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question",
		Long:  "Asks a question against the knowledge base and streams the answer with source citations.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(args[0], spaceID)
		},
	}

	cmd.Flags().StringVarP(&spaceID, "space", "s", "", "Limit retrieval to a single space")

	return cmd
}

func runAsk(query, spaceID string) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	body, err := api.PostStream("/ask", AskRequest{Query: query, SpaceID: spaceID})
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}
	defer body.Close()

	var sources []AskSource
	wroteContent := false

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == doneSentinel {
			break
		}

		var event askEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			return fmt.Errorf("failed to parse stream event: %w", err)
		}

		switch {
		case event.Error != nil:
			if wroteContent {
				fmt.Println()
			}
			return fmt.Errorf("answer failed: %s", *event.Error)
		case event.Content != nil:
			fmt.Print(*event.Content)
			wroteContent = true
		case event.Sources != nil:
			sources = event.Sources
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read failed: %w", err)
	}

	if wroteContent {
		fmt.Println()
	}

	if len(sources) > 0 {
		fmt.Printf("\nSources:\n")
		for i, src := range sources {
			fmt.Printf("%d. %s (%s/%s, similarity %.2f)\n", i+1, src.Title, src.SpaceSlug, src.SlugID, src.Similarity)
			if src.Excerpt != "" {
				fmt.Printf("   %s\n", src.Excerpt)
			}
		}
	}

	return nil
}
