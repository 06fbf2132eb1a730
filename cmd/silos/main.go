package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lavafroth/silos/corpus"
	"github.com/lavafroth/silos/embed"
	"github.com/lavafroth/silos/mcp"
	"github.com/lavafroth/silos/state"
)

func main() {
	// Best effort: a missing .env file is fine
	godotenv.Load()

	root := &cobra.Command{
		Use:          "silos",
		Short:        "Semantic snippet retrieval and structural refactoring over tree-sitter",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), dumpCmd(), capturesCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var (
		rulesDir string
		dbURL    string
		debug    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Build the rule corpora and serve MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := mcp.ConfigFromEnv()
			if cmd.Flags().Changed("db") {
				config.DatabaseURL = dbURL
			}
			if debug {
				config.Debug = true
			}

			embedder, err := embedderFromEnv()
			if err != nil {
				return err
			}

			corpora, err := corpus.Build(cmd.Context(), rulesDir, embedder)
			if err != nil {
				return fmt.Errorf("failed to build corpora from %s: %w", rulesDir, err)
			}

			logf := func(string, ...any) {}
			if config.Debug {
				logf = func(format string, args ...any) {
					fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
				}
			}
			st := state.New(embedder, corpora.Generate, corpora.Refactor, corpora.Collections, state.WithLogf(logf))

			server, err := mcp.NewStdioServer(config, st)
			if err != nil {
				return err
			}
			return server.Start()
		},
	}

	cmd.Flags().StringVar(&rulesDir, "rules", "./rules", "Root directory of the rule corpus")
	cmd.Flags().StringVar(&dbURL, "db", "", "Request history database DSN (file path, :memory:, or libsql URL)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Log debug output to stderr")
	return cmd
}

func dumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <language> <file>",
		Short: "Print the parse tree of a source file as an s-expression",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			tree, err := state.DumpExpression(src, args[0])
			if err != nil {
				return err
			}
			fmt.Println(tree)
			return nil
		},
	}
}

func capturesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "captures <language> <file> <expression>",
		Short: "Execute a query expression against a source file and print its captures",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			result, err := state.ShowCaptures(src, args[0], args[2])
			if err != nil {
				return err
			}
			fmt.Printf("span: [%d, %d)\n", result.Start, result.End)
			for name, text := range result.Captures {
				fmt.Printf("%s: %s\n", name, text)
			}
			return nil
		},
	}
}

// embedderFromEnv wires the embedding collaborator from SILOS_EMBED_*
// variables, falling back to a local OpenAI-compatible endpoint.
func embedderFromEnv() (embed.Embedder, error) {
	baseURL := os.Getenv("SILOS_EMBED_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080/v1"
	}
	model := os.Getenv("SILOS_EMBED_MODEL")
	if model == "" {
		model = embed.DefaultModel
	}
	dimension := embed.DefaultDimension
	if v := os.Getenv("SILOS_EMBED_DIMENSION"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid SILOS_EMBED_DIMENSION %q", v)
		}
		dimension = d
	}
	return embed.NewOpenAI(baseURL, os.Getenv("SILOS_EMBED_API_KEY"), model, dimension), nil
}
