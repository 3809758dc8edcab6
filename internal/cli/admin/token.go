package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lorekeep/lorekeep/internal/repository"
)

func TokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API tokens",
		Long:  "Create and revoke API tokens",
	}

	cmd.AddCommand(TokenCreateCmd())
	cmd.AddCommand(TokenRevokeCmd())

	return cmd
}

func TokenCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API token",
		Long:  "Create a new API token for a user in a workspace",
		RunE:  runTokenCreate,
	}

	cmd.Flags().StringP("user", "u", "", "User ID (required)")
	cmd.Flags().StringP("workspace", "w", "", "Workspace ID (required)")
	cmd.Flags().StringP("name", "n", "", "Token name")
	cmd.Flags().StringP("output", "", "text", "Output format (text or json)")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("workspace")

	return cmd
}

func runTokenCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	userID, _ := cmd.Flags().GetString("user")
	workspaceID, _ := cmd.Flags().GetString("workspace")
	name, _ := cmd.Flags().GetString("name")
	outputFormat, _ := cmd.Flags().GetString("output")

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	tokenRepo := repository.NewTokenRepository(pool)
	id, plaintext, err := tokenRepo.Create(ctx, userID, workspaceID, name)
	if err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"id":        id,
			"name":      name,
			"user":      userID,
			"workspace": workspaceID,
			"token":     plaintext,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("Token created for user %s in workspace %s\n", userID, workspaceID)
		fmt.Printf("Token ID: %s\n", id)
		fmt.Printf("Token: %s\n", plaintext)
		fmt.Println("\nSave this token now. You won't be able to see it again!")
	}

	return nil
}

func TokenRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API token",
		Long:  "Revoke an API token by its ID",
		Args:  cobra.ExactArgs(1),
		RunE:  runTokenRevoke,
	}

	cmd.Flags().StringP("output", "", "text", "Output format (text or json)")

	return cmd
}

func runTokenRevoke(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	tokenID := args[0]
	outputFormat, _ := cmd.Flags().GetString("output")

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	tokenRepo := repository.NewTokenRepository(pool)
	if err := tokenRepo.Revoke(ctx, tokenID); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"id":      tokenID,
			"revoked": true,
			"message": "Token revoked successfully",
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("Token %s revoked successfully\n", tokenID)
	}

	return nil
}
