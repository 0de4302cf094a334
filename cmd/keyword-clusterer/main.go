package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/grykalski/keyword-clusterer/adapters"
	"github.com/grykalski/keyword-clusterer/clusterer"
	"github.com/grykalski/keyword-clusterer/server"
	"github.com/grykalski/keyword-clusterer/store"
)

type rootFlags struct {
	noAI      bool
	model     string
	batchSize int
	timeout   time.Duration
	dbPath    string
	verbose   bool
}

func main() {
	// A missing .env file is fine; the environment may carry the keys.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "keyword-clusterer",
		Short: "Cluster keyword phrases into semantic groups",
		Long: `keyword-clusterer partitions keyword phrases into semantically coherent
groups using an AI batch pipeline with cross-batch memory, falling back to
density clustering over embeddings when the AI path is unavailable.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVar(&flags.noAI, "no-ai", false, "skip the AI pipeline and cluster by embedding density only")
	root.PersistentFlags().StringVar(&flags.model, "model", "", "chat model for the AI pipeline (default gpt-4o)")
	root.PersistentFlags().IntVar(&flags.batchSize, "batch-size", 0, "phrases per AI batch (default 25)")
	root.PersistentFlags().DurationVar(&flags.timeout, "timeout", 0, "AI session budget before falling back (default 5m)")
	root.PersistentFlags().StringVar(&flags.dbPath, "db", "", "SQLite path for persisting runs (empty disables persistence)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newClusterCmd(flags))
	root.AddCommand(newServeCmd(flags))
	return root
}

func newClusterCmd(flags *rootFlags) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "cluster [phrases...]",
		Short: "Cluster phrases given as arguments or read from a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(flags.verbose)

			texts := args
			if file != "" {
				fromFile, err := readPhraseFile(file)
				if err != nil {
					return err
				}
				texts = append(texts, fromFile...)
			}
			if len(texts) == 0 {
				return fmt.Errorf("no phrases given: pass them as arguments or via --file")
			}

			c, err := newClusterer(flags, logger)
			if err != nil {
				return err
			}

			res, err := c.Cluster(cmd.Context(), clusterer.Texts(texts))
			if err != nil {
				return err
			}

			if flags.dbPath != "" {
				st, err := store.Open(flags.dbPath)
				if err != nil {
					return err
				}
				sessionID, err := st.SaveResult(cmd.Context(), res)
				if err != nil {
					return err
				}
				logger.Info().Str("session", sessionID).Msg("run persisted")
			}

			out, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "file with one phrase per line")
	return cmd
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the clustering pipeline over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(flags.verbose)

			c, err := newClusterer(flags, logger)
			if err != nil {
				return err
			}

			var storage server.Storage
			if flags.dbPath != "" {
				st, err := store.Open(flags.dbPath)
				if err != nil {
					return err
				}
				storage = st
			}

			srv := server.New(c, storage, logger)
			logger.Info().Str("addr", addr).Msg("listening")
			return http.ListenAndServe(addr, srv.Router())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}

// newClusterer wires the pipeline from flags and environment. The Pinecone
// vector cache is optional and attached only when its credentials are present.
func newClusterer(flags *rootFlags, logger zerolog.Logger) (*clusterer.Clusterer, error) {
	opts := clusterer.Options{
		UseAI:          !flags.noAI,
		Model:          flags.model,
		Logger:         logger,
		BatchSize:      flags.batchSize,
		SessionTimeout: flags.timeout,
	}

	if os.Getenv("PINECONE_API_KEY") != "" && os.Getenv("PINECONE_HOST") != "" {
		cache, err := adapters.NewPineconeVectorCache(nil, nil, "keywords")
		if err != nil {
			logger.Warn().Err(err).Msg("vector cache unavailable, embeddings will not be cached")
		} else {
			opts.VectorCache = cache
		}
	}

	return clusterer.New(opts)
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func readPhraseFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open phrase file: %w", err)
	}
	defer f.Close()

	var phrases []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		phrases = append(phrases, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read phrase file: %w", err)
	}
	return phrases, nil
}
