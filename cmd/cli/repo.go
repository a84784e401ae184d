package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sevigo/reposync/internal/core"
	"github.com/sevigo/reposync/internal/gitutil"
	"github.com/sevigo/reposync/internal/repomanager"
)

var (
	repoAddType   string
	repoAddToken  string
	repoAddOwner  string
	repoAddName   string
	repoAddIndex  bool
	repoListJSON  bool
	repoPrincipal string
)

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage repositories tracked by reposync",
}

var repoAddCmd = &cobra.Command{
	Use:   "add <url-or-path>",
	Short: "Register a repository and queue it for indexing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, cleanup, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		kind := core.ProviderKind(repoAddType)
		if kind == "" {
			kind = core.ProviderGitHub
		}

		desc := core.RepositoryDescriptor{
			Provider:    kind,
			Owner:       repoAddOwner,
			Name:        repoAddName,
			URL:         args[0],
			AccessToken: repoAddToken,
			Config:      core.DefaultRepoConfig(),
		}
		if kind != core.ProviderLocal && (desc.Owner == "" || desc.Name == "") {
			owner, name, err := gitutil.ParseRepositoryURL(desc.URL)
			if err != nil {
				return fmt.Errorf("derive owner/name from repository url: %w", err)
			}
			if desc.Owner == "" {
				desc.Owner = owner
			}
			if desc.Name == "" {
				desc.Name = name
			}
		}

		rec, err := a.RepoMgr.Register(ctx, desc, repomanager.RegisterOptions{AutoIndex: repoAddIndex}, repoPrincipal)
		if err != nil {
			return fmt.Errorf("register repository: %w", err)
		}
		fmt.Printf("repository registered: %s (status: %s)\n", rec.ID, rec.Status)
		return nil
	},
}

var repoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered repository and its status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := context.Background()
		a, cleanup, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		recs, err := a.RepoMgr.List(ctx)
		if err != nil {
			return fmt.Errorf("list repositories: %w", err)
		}

		if repoListJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(recs)
		}

		if len(recs) == 0 {
			fmt.Println("no repositories registered")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tREPOSITORY\tSTATUS\tPROGRESS\tUPDATED")
		for _, rec := range recs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%.0f%%\t%s\n",
				rec.ID, rec.Descriptor.FullName(), rec.Status, rec.Progress*100,
				rec.UpdatedAt.Format(time.RFC822))
		}
		return w.Flush()
	},
}

var repoRemoveCmd = &cobra.Command{
	Use:   "remove <repository-id>",
	Short: "Delete a repository and its indexed vectors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid repository id: %w", err)
		}

		ctx := context.Background()
		a, cleanup, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := a.RepoMgr.Delete(ctx, id, repoPrincipal); err != nil {
			return fmt.Errorf("delete repository: %w", err)
		}
		fmt.Printf("repository %s deleted\n", id)
		return nil
	},
}

var repoReindexCmd = &cobra.Command{
	Use:   "reindex <repository-id>",
	Short: "Re-queue a repository for a full reindex",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid repository id: %w", err)
		}

		ctx := context.Background()
		a, cleanup, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := a.RepoMgr.Reindex(ctx, id, repoPrincipal); err != nil {
			return fmt.Errorf("reindex repository: %w", err)
		}
		fmt.Printf("repository %s queued for reindex\n", id)
		return nil
	},
}

func init() { //nolint:gochecknoinits // Cobra command registration
	repoAddCmd.Flags().StringVar(&repoAddType, "type", "github", "provider kind: github, gitlab, bitbucket, gitea, local")
	repoAddCmd.Flags().StringVar(&repoAddToken, "token", os.Getenv("REPOSYNC_ACCESS_TOKEN"), "access token for private repositories")
	repoAddCmd.Flags().StringVar(&repoAddOwner, "owner", "", "repository owner, for hosted providers")
	repoAddCmd.Flags().StringVar(&repoAddName, "name", "", "repository name, defaults to the last path segment of the URL")
	repoAddCmd.Flags().BoolVar(&repoAddIndex, "index", true, "queue an indexing run immediately after registration")
	repoListCmd.Flags().BoolVar(&repoListJSON, "json", false, "output as JSON")

	repoCmd.PersistentFlags().StringVar(&repoPrincipal, "principal", "cli", "principal to attribute this action to")

	repoCmd.AddCommand(repoAddCmd, repoListCmd, repoRemoveCmd, repoReindexCmd)
}
