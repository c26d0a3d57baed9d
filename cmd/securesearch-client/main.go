// Command securesearch-client is the client half of the search protocol:
// it registers a client identity, uploads text as homomorphically
// encrypted embeddings, and queries the server for encrypted nearest
// neighbors which it decrypts and ranks locally. The server never
// observes a plaintext vector or similarity score.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/securesearch/securesearch/internal/clientpipeline"
	"github.com/securesearch/securesearch/internal/config"
)

var (
	flagServerURL   string
	flagAPIKey      string
	flagSessionFile string
)

func apiKeyFromEnv() string {
	if v := os.Getenv("DB_SERVER_API_KEY"); v != "" {
		return v
	}
	return os.Getenv("SECURE_SEARCH_API_KEY")
}

func stripPlaintextMetadata() bool {
	return config.GetEnvAsBool("SECURE_SEARCH_STRIP_PLAINTEXT_METADATA", false)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "securesearch-client",
		Short: "Client for the privacy-preserving nearest-neighbor search server",
	}

	root.PersistentFlags().StringVar(&flagServerURL, "server-url", config.GetEnv("SECURE_SEARCH_SERVER_URL", "http://localhost:8090"), "target server URL")
	root.PersistentFlags().StringVar(&flagAPIKey, "api-key", apiKeyFromEnv(), "bearer token (defaults to DB_SERVER_API_KEY or SECURE_SEARCH_API_KEY)")
	root.PersistentFlags().StringVar(&flagSessionFile, "session-file", defaultSessionPath(), "where the client identity and LSH planes are cached between invocations")

	root.AddCommand(newInitCmd())
	root.AddCommand(newAddCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newStatsCmd())

	return root
}

func newInitCmd() *cobra.Command {
	var (
		displayName   string
		embeddingDim  int
		numTables     int
		hashSize      int
		numCandidates int
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Register (or re-initialize) a client and cache its session locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := clientpipeline.Initialize(cmd.Context(), flagServerURL, flagAPIKey, clientpipeline.InitializeParams{
				DisplayName:       displayName,
				EmbeddingDim:      embeddingDim,
				NumTables:         numTables,
				HashSize:          hashSize,
				NumCandidates:     numCandidates,
				PolyModulusDegree: 8192,
				Scale:             1 << 40,
				PublicKey:         []byte("client-public-key-placeholder"),
			})
			if err != nil {
				return err
			}

			if err := saveSession(flagSessionFile, pipeline.Session()); err != nil {
				return err
			}

			return json.NewEncoder(os.Stdout).Encode(pipeline.Session())
		},
	}

	cmd.Flags().StringVar(&displayName, "name", "", "display name for this client")
	cmd.Flags().IntVar(&embeddingDim, "dim", 384, "embedding vector dimension")
	cmd.Flags().IntVar(&numTables, "num-tables", 20, "number of LSH tables")
	cmd.Flags().IntVar(&hashSize, "hash-size", 16, "bits of hash per table")
	cmd.Flags().IntVar(&numCandidates, "num-candidates", 100, "candidate ceiling per search")

	return cmd
}

func newAddCmd() *cobra.Command {
	var (
		text       string
		externalID string
		metadata   string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Embed, hash, encrypt, and upload one piece of text",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := loadSession(flagSessionFile)
			if err != nil {
				return err
			}
			pipeline, err := clientpipeline.Resume(session)
			if err != nil {
				return err
			}

			meta, err := parseMetadata(metadata)
			if err != nil {
				return err
			}

			var externalIDPtr *string
			if externalID != "" {
				externalIDPtr = &externalID
			}

			embeddingID, err := pipeline.AddEmbedding(cmd.Context(), text, meta, externalIDPtr, stripPlaintextMetadata())
			if err != nil {
				return err
			}

			return json.NewEncoder(os.Stdout).Encode(map[string]any{"embedding_id": embeddingID})
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "text to embed and upload")
	cmd.Flags().StringVar(&externalID, "external-id", "", "caller-supplied unique ID for this embedding")
	cmd.Flags().StringVar(&metadata, "metadata", "", "JSON object of metadata to attach")
	_ = cmd.MarkFlagRequired("text")

	return cmd
}

func newSearchCmd() *cobra.Command {
	var (
		text             string
		topK             int
		rerankCandidates int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Query for the nearest embeddings to a piece of text",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := loadSession(flagSessionFile)
			if err != nil {
				return err
			}
			pipeline, err := clientpipeline.Resume(session)
			if err != nil {
				return err
			}

			result, err := pipeline.Search(cmd.Context(), text, topK, rerankCandidates)
			if err != nil {
				return err
			}

			return json.NewEncoder(os.Stdout).Encode(result)
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "query text")
	cmd.Flags().IntVar(&topK, "top-k", 10, "number of results to keep after client-side ranking")
	cmd.Flags().IntVar(&rerankCandidates, "rerank", 100, "candidate budget passed to the server")
	_ = cmd.MarkFlagRequired("text")

	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show this client's usage counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := loadSession(flagSessionFile)
			if err != nil {
				return err
			}
			pipeline, err := clientpipeline.Resume(session)
			if err != nil {
				return err
			}

			stats, err := pipeline.Stats(cmd.Context())
			if err != nil {
				return err
			}

			return json.NewEncoder(os.Stdout).Encode(stats)
		},
	}
}

func parseMetadata(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("parsing --metadata: %w", err)
	}
	return out, nil
}

func main() {
	root := newRootCmd()
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCodeFor(err))
	}
	os.Exit(exitSuccess)
}
