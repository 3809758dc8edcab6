package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/repository"
)

func ReindexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Enqueue embedding jobs",
		Long:  "Enqueue a background job to regenerate or delete embeddings for a page or a whole workspace",
		RunE:  runReindex,
	}

	cmd.Flags().StringP("page", "", "", "Page ID to reindex")
	cmd.Flags().StringP("workspace", "w", "", "Workspace ID to reindex")
	cmd.Flags().Bool("delete", false, "Delete embeddings instead of regenerating them")
	cmd.Flags().StringP("output", "", "text", "Output format (text or json)")

	return cmd
}

func runReindex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	pageID, _ := cmd.Flags().GetString("page")
	workspaceID, _ := cmd.Flags().GetString("workspace")
	deleteEmbeddings, _ := cmd.Flags().GetBool("delete")
	outputFormat, _ := cmd.Flags().GetString("output")

	if pageID == "" && workspaceID == "" {
		return fmt.Errorf("either --page or --workspace is required")
	}

	var kind domain.EmbeddingJobKind
	switch {
	case pageID != "" && deleteEmbeddings:
		kind = domain.JobPageDeleteEmbeddings
	case pageID != "":
		kind = domain.JobPageGenerateEmbeddings
	case deleteEmbeddings:
		kind = domain.JobWorkspaceDeleteEmbeddings
	default:
		kind = domain.JobWorkspaceCreateEmbeddings
	}

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	jobRepo := repository.NewEmbeddingJobRepository(pool)
	job := &domain.EmbeddingJob{
		ID:          uuid.NewString(),
		Kind:        kind,
		PageID:      pageID,
		WorkspaceID: workspaceID,
	}
	if err := jobRepo.Create(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"id":     job.ID,
			"kind":   string(job.Kind),
			"status": string(job.Status),
		}
		if pageID != "" {
			data["page"] = pageID
		}
		if workspaceID != "" {
			data["workspace"] = workspaceID
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("Enqueued %s job %s\n", job.Kind, job.ID)
		fmt.Println("The embedding worker will pick it up on its next poll.")
	}

	return nil
}
