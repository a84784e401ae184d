package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sevigo/reposync/internal/core"
)

var (
	queryTopK   int
	queryStream bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Ask retrieval-augmented questions against an indexed repository",
}

var queryAskCmd = &cobra.Command{
	Use:   "ask <repository-id> <question>",
	Short: "Answer a question against a repository's indexed content",
	Args:  cobra.ExactArgs(2),
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

		req := core.QueryRequest{RepositoryID: id, Question: args[1], TopK: queryTopK}

		if queryStream {
			for frame := range a.Engine.Stream(ctx, req) {
				switch frame.Kind {
				case core.StreamContent:
					fmt.Print(frame.Content)
				case core.StreamSource:
					if frame.Source != nil {
						fmt.Printf("\n[source: %s:%d-%d]", frame.Source.Path, frame.Source.Start, frame.Source.End)
					}
				case core.StreamError:
					if frame.Err != nil {
						return frame.Err
					}
				case core.StreamComplete:
					fmt.Println()
				}
			}
			return nil
		}

		resp, err := a.Engine.Answer(ctx, req)
		if err != nil {
			return fmt.Errorf("answer query: %w", err)
		}

		fmt.Println(resp.Answer)
		if len(resp.Citations) > 0 {
			fmt.Println("\nsources:")
			for _, c := range resp.Citations {
				fmt.Printf("  %s:%d-%d (score %.3f)\n", c.Path, c.Start, c.End, c.Score)
			}
		}
		return nil
	},
}

func init() { //nolint:gochecknoinits // Cobra command registration
	queryAskCmd.Flags().IntVar(&queryTopK, "top-k", 0, "override the configured retrieval top-k")
	queryAskCmd.Flags().BoolVar(&queryStream, "stream", false, "stream the answer as it is generated")
	queryCmd.AddCommand(queryAskCmd)
}
