package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nadzzz/moodshift/internal/config"
	"github.com/nadzzz/moodshift/internal/natsconn"
	"github.com/nadzzz/moodshift/internal/settings"
)

func newSeedCmd(configFile *string) *cobra.Command {
	var (
		file     string
		defaults bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write runtime settings documents to the config bucket",
		Long: `Seed writes the runtime settings documents (llm, prompts, polly, voices,
prosody, fallbacks) to the config bucket. With --file, each top-level table of
the TOML file becomes one document; with --defaults, the built-in defaults
are written. Running services pick up changes within the settings TTL.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (file == "") == !defaults {
				return fmt.Errorf("exactly one of --file or --defaults is required")
			}

			cfg, err := config.Load(*configFile)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			config.SetupLogging(cfg.Logging)

			docs, err := seedDocuments(file, defaults)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			conn, err := natsconn.Open(cfg.NATS)
			if err != nil {
				return err
			}
			defer conn.Close()

			source, err := settings.NewKVSource(ctx, conn.JS, cfg.NATS.ConfigBucket)
			if err != nil {
				return err
			}

			for _, name := range settings.Documents {
				doc, ok := docs[name]
				if !ok {
					continue
				}
				if err := source.Put(ctx, name, doc); err != nil {
					return fmt.Errorf("writing %s: %w", name, err)
				}
				slog.Info("settings document written", "name", name, "bytes", len(doc))
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %s\n", name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "TOML file with one table per settings document")
	cmd.Flags().BoolVar(&defaults, "defaults", false, "write the built-in defaults")
	return cmd
}

func seedDocuments(file string, defaults bool) (map[string][]byte, error) {
	if defaults {
		docs := make(map[string][]byte, len(settings.Documents))
		for _, name := range settings.Documents {
			doc, err := settings.DefaultDocument(name)
			if err != nil {
				return nil, err
			}
			docs[name] = doc
		}
		return docs, nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return settings.DocumentsFromTOML(data)
}
