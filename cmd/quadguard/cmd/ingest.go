package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/quadguard/quadguard/internal/adapter/outbound/filecache"
	"github.com/quadguard/quadguard/internal/adapter/outbound/llmclient"
	"github.com/quadguard/quadguard/internal/adapter/outbound/sqlitestore"
	"github.com/quadguard/quadguard/internal/config"
	"github.com/quadguard/quadguard/internal/domain/ingestion"
	"github.com/quadguard/quadguard/internal/domain/predicate"
)

var ingestOrigin string

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>",
	Short: "Extract a policy set from a document into the cache",
	Long: `Run a policy document through the extraction pipeline (chunk, extract
natural-language rules, logicize, verify, refine) and write the result to
the document's "<path>.cache.json" sidecar.

If decisions.sqlite_path is configured, the extracted predicates and rules
are also persisted to SQLite so a restarted server can reload them without
re-running extraction.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestOrigin, "origin", "message", "policy origin: 'message' or 'action'")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := args[0]

	var origin predicate.PolicyOrigin
	switch ingestOrigin {
	case "message":
		origin = predicate.OriginMessage
	case "action":
		origin = predicate.OriginAction
	default:
		return fmt.Errorf("--origin must be 'message' or 'action', got %q", ingestOrigin)
	}

	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	timeout := time.Duration(cfg.LLM.RequestTimeoutSeconds) * time.Second
	provider, err := llmclient.New(cfg.LLM.PrimaryProvider, cfg.LLM.PrimaryModel, "", cfg.LLM.PrimaryAPIKeyEnv, timeout)
	if err != nil {
		return fmt.Errorf("failed to build LLM provider: %w", err)
	}

	pipeline := ingestion.New(provider, filecache.New())

	ctx := context.Background()
	extracted, err := pipeline.Ingest(ctx, path, string(content))
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	predicates, rules := ingestion.ToRules(extracted, origin, string(origin))
	fmt.Fprintf(os.Stderr, "extracted %d predicates, %d rules from %s\n", len(predicates), len(rules), path)

	if cfg.Decisions.SQLitePath != "" {
		store, err := sqlitestore.Open(cfg.Decisions.SQLitePath, nil)
		if err != nil {
			return fmt.Errorf("failed to open decision store: %w", err)
		}
		defer store.Close()
		if err := store.PersistPolicySet(ctx, origin, predicates, rules); err != nil {
			return fmt.Errorf("failed to persist policy set: %w", err)
		}
		fmt.Fprintf(os.Stderr, "persisted policy set to %s\n", cfg.Decisions.SQLitePath)
	}

	return nil
}
