package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/leaselens/internal/apikey"
	"github.com/kiranshivaraju/leaselens/internal/store"
)

var (
	keyName   string
	keyScopes []string
	keysJSON  bool
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys for the HTTP server",
	Long:  "Create, list and revoke API keys. Requires DATABASE_URL.",
}

var keysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an API key",
	Long:  "Creates an API key and prints it once. Only a hash is stored.",
	Args:  cobra.NoArgs,
	RunE:  runKeysCreate,
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active API keys",
	Args:  cobra.NoArgs,
	RunE:  runKeysList,
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke [id]",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeysRevoke,
}

func init() {
	keysCreateCmd.Flags().StringVar(&keyName, "name", "", "key name (required)")
	keysCreateCmd.Flags().StringSliceVar(&keyScopes, "scope", nil, "scope to grant, repeatable (e.g. admin)")
	keysListCmd.Flags().BoolVar(&keysJSON, "json", false, "output as JSON")

	keysCmd.AddCommand(keysCreateCmd, keysListCmd, keysRevokeCmd)
	rootCmd.AddCommand(keysCmd)
}

func runKeysCreate(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	raw, key, err := apikey.Generate(keyName, keyScopes)
	if err != nil {
		return err
	}

	st, closeStore, err := openKeyStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := st.CreateAPIKey(ctx, key); err != nil {
		return fmt.Errorf("failed to create key: %w", err)
	}

	cmd.Printf("Created key %q (%s)\n", key.Name, key.ID)
	cmd.Printf("  Key: %s\n", raw)
	cmd.Println("Store it now; it cannot be shown again.")
	return nil
}

func runKeysList(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	st, closeStore, err := openKeyStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	keys, err := st.ListAPIKeys(ctx)
	if err != nil {
		return fmt.Errorf("failed to list keys: %w", err)
	}

	if keysJSON {
		return printJSON(cmd, keys)
	}
	if len(keys) == 0 {
		cmd.Println("No API keys.")
		return nil
	}

	cmd.Printf("API keys (%d):\n\n", len(keys))
	for _, k := range keys {
		scopes := "-"
		if len(k.Scopes) > 0 {
			scopes = strings.Join(k.Scopes, ",")
		}
		lastUsed := "never"
		if k.LastUsedAt != nil {
			lastUsed = k.LastUsedAt.Format("2006-01-02 15:04")
		}
		cmd.Printf("  %s\n", k.Name)
		cmd.Printf("    ID:        %s\n", k.ID)
		cmd.Printf("    Prefix:    %s\n", k.KeyPrefix)
		cmd.Printf("    Scopes:    %s\n", scopes)
		cmd.Printf("    Last used: %s\n", lastUsed)
		cmd.Println()
	}
	return nil
}

func runKeysRevoke(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid key id %q", args[0])
	}

	st, closeStore, err := openKeyStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := st.RevokeAPIKey(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("key not found: %s", id)
		}
		return fmt.Errorf("failed to revoke key: %w", err)
	}

	cmd.Printf("Revoked key %s\n", id)
	return nil
}
