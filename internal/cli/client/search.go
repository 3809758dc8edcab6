package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// SearchRequest represents the search API request.
type SearchRequest struct {
	Query   string `json:"query"`
	SpaceID string `json:"space_id,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// SearchResponse represents the search API response.
type SearchResponse struct {
	Results []AskSource `json:"results"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var (
		spaceID string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search pages",
		Long:  "Searches indexed pages using semantic similarity.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runSearch(args[0], spaceID, limit, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&spaceID, "space", "s", "", "Limit search to a single space")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results")

	return cmd
}

func runSearch(query, spaceID string, limit int, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	req := SearchRequest{
		Query:   query,
		SpaceID: spaceID,
		Limit:   limit,
	}

	resp, err := api.Post("/search", req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	var searchResp SearchResponse
	if err := json.Unmarshal(resp.Data, &searchResp); err != nil {
		return fmt.Errorf("failed to parse search results: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(searchResp, "", "  ")
		fmt.Println(string(output))
	} else {
		if len(searchResp.Results) == 0 {
			fmt.Println("No results found.")
			return nil
		}

		fmt.Printf("Found %d results:\n\n", len(searchResp.Results))
		for i, result := range searchResp.Results {
			fmt.Printf("%d. %s (%.2f)\n", i+1, result.Title, result.Similarity)
			if result.Excerpt != "" {
				fmt.Printf("   %s\n", result.Excerpt)
			}
			fmt.Printf("   Page: %s/%s\n", result.SpaceSlug, result.SlugID)
			if i < len(searchResp.Results)-1 {
				fmt.Println(strings.Repeat("-", 40))
			}
		}
	}

	return nil
}
