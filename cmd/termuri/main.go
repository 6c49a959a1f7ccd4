package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pbaille/termuri/internal/api"
	"github.com/pbaille/termuri/internal/config"
	"github.com/pbaille/termuri/internal/domain"
	"github.com/pbaille/termuri/internal/fetcher"
	"github.com/pbaille/termuri/internal/media"
	"github.com/pbaille/termuri/internal/selection"
	"github.com/pbaille/termuri/internal/store"
	"github.com/pbaille/termuri/internal/uri"
	"github.com/spf13/cobra"
)

var (
	configPath string
	dbPath     string
	logLevel   string
	cfg        *config.Config
	logger     *slog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "termuri",
		Short: "Taxonomy terms with external URIs",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.Storage.Path = dbPath
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			level, err := config.ParseLevel(cfg.Log.Level)
			if err != nil {
				return err
			}
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)
			return nil
		},
		SilenceUsage: true,
	}

	home, _ := os.UserHomeDir()
	rootCmd.PersistentFlags().StringVar(&configPath, "config", filepath.Join(home, ".termuri", "config.yaml"), "config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(fieldCmd())
	rootCmd.AddCommand(termCmd())
	rootCmd.AddCommand(nodeCmd())
	rootCmd.AddCommand(mediaCmd())
	rootCmd.AddCommand(optionsCmd())
	rootCmd.AddCommand(loadCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getStore() (*store.Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(cfg.Storage.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return store.New(cfg.Storage.Path, logger)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func loadEntity(ctx context.Context, s *store.Store, entityType string, id int64) (*domain.Entity, error) {
	storage, err := s.Storage(ctx, entityType)
	if err != nil {
		return nil, err
	}
	e, err := storage.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("%s %d not found", entityType, id)
	}
	return e, nil
}

func fieldCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "field",
		Short: "Manage field configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add [entity-type] [name] [type]",
		Short: "Attach a field to an entity type",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.AddField(cmd.Context(), args[0], args[1], args[2]); err != nil {
				return err
			}
			fmt.Printf("Added field %s.%s (%s)\n", args[0], args[1], args[2])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			fm, err := s.FieldMap(cmd.Context())
			if err != nil {
				return err
			}
			if len(fm) == 0 {
				fmt.Println("No fields yet. Use 'termuri field add' to create one.")
				return nil
			}

			for _, entityType := range []string{domain.TermEntityType, domain.MediaEntityType, domain.NodeEntityType} {
				for _, f := range fm[entityType] {
					fmt.Printf("%s.%s  %s\n", entityType, f.Name, f.Type)
				}
			}
			fmt.Printf("\nURI fields (scan order): %s\n", strings.Join(uri.BroadURIFieldNames(fm), ", "))
			info := selection.Describe()
			fmt.Printf("Selection: %s (%s, group %s, weight %d)\n", info.Label, info.ID, info.Group, info.Weight)
			return nil
		},
	})

	return cmd
}

func termCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "term",
		Short: "Create and resolve taxonomy terms",
	}
	cmd.AddCommand(termAddCmd(), termImportCmd(), termURICmd(), termForURICmd())
	return cmd
}

func termAddCmd() *cobra.Command {
	var uriValue, field string

	cmd := &cobra.Command{
		Use:   "add [vocabulary] [name]",
		Short: "Add a term, optionally with a URI",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			e := &domain.Entity{
				Type:   domain.TermEntityType,
				Bundle: args[0],
				Label:  strings.Join(args[1:], " "),
			}
			if uriValue != "" {
				e.Fields = map[string]domain.FieldItemList{field: {{URI: uriValue}}}
			}

			term, err := s.CreateEntity(cmd.Context(), e)
			if err != nil {
				return err
			}
			fmt.Printf("Added term %d: %s (%s)\n", term.ID, term.Label, term.Bundle)
			return nil
		},
	}

	cmd.Flags().StringVar(&uriValue, "uri", "", "external URI of the term")
	cmd.Flags().StringVar(&field, "field", domain.ExternalURIField, "field holding the URI")
	return cmd
}

func termImportCmd() *cobra.Command {
	var name, field string

	cmd := &cobra.Command{
		Use:   "import [vocabulary] [uri]",
		Short: "Add a term labelled from its authority page",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vocab, u := args[0], args[1]
			if !fetcher.IsURL(u) {
				return fmt.Errorf("not a URL: %s", u)
			}

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			r := uri.NewResolver(s, s, logger)
			existing, err := r.TermForURI(cmd.Context(), u)
			if err != nil {
				return err
			}
			if existing != nil {
				fmt.Printf("Term %d already has this URI: %s\n", existing.ID, existing.Label)
				return nil
			}

			if name == "" {
				fmt.Print("Fetching label... ")
				name, err = fetcher.FetchTitle(cmd.Context(), nil, u)
				if err != nil {
					fmt.Println("failed")
					return err
				}
				fmt.Println("done")
			}

			term, err := s.CreateEntity(cmd.Context(), &domain.Entity{
				Type:   domain.TermEntityType,
				Bundle: vocab,
				Label:  name,
				Fields: map[string]domain.FieldItemList{field: {{URI: u, Title: name}}},
			})
			if err != nil {
				return err
			}
			fmt.Printf("Added term %d: %s\n", term.ID, term.Label)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "term name (default: authority page title)")
	cmd.Flags().StringVar(&field, "field", domain.ExternalURIField, "field holding the URI")
	return cmd
}

func termURICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uri [term-id]",
		Short: "Show the external URI of a term",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			term, err := loadEntity(cmd.Context(), s, domain.TermEntityType, id)
			if err != nil {
				return err
			}

			u, err := uri.NewResolver(s, s, logger).URIForTerm(cmd.Context(), term)
			if err != nil {
				return err
			}
			if u == "" {
				fmt.Printf("Term %d (%s) has no external URI.\n", term.ID, term.Label)
				return nil
			}
			fmt.Println(u)
			return nil
		},
	}
}

func termForURICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "for-uri [uri]",
		Short: "Find the term with an external URI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			term, err := uri.NewResolver(s, s, logger).TermForURI(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if term == nil {
				fmt.Println("No term found for this URI.")
				return nil
			}
			fmt.Printf("%d  %s  (%s)\n", term.ID, term.Label, term.Bundle)
			return nil
		},
	}
}

func nodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Manage content nodes",
	}

	var bundle string
	add := &cobra.Command{
		Use:   "add [title]",
		Short: "Add a node",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			node, err := s.CreateEntity(cmd.Context(), &domain.Entity{
				Type:   domain.NodeEntityType,
				Bundle: bundle,
				Label:  strings.Join(args, " "),
			})
			if err != nil {
				return err
			}
			fmt.Printf("Added node %d: %s\n", node.ID, node.Label)
			return nil
		},
	}
	add.Flags().StringVar(&bundle, "type", "islandora_object", "content type")

	cmd.AddCommand(add)
	return cmd
}

func mediaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "media",
		Short: "Manage media and find their parent node",
	}

	var bundle string
	var of int64
	add := &cobra.Command{
		Use:   "add [name]",
		Short: "Add a media item",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			e := &domain.Entity{
				Type:   domain.MediaEntityType,
				Bundle: bundle,
				Label:  strings.Join(args, " "),
			}
			if of != 0 {
				e.Fields = map[string]domain.FieldItemList{
					domain.MediaOfField: {{TargetType: domain.NodeEntityType, TargetID: of}},
				}
			}

			m, err := s.CreateEntity(cmd.Context(), e)
			if err != nil {
				return err
			}
			fmt.Printf("Added media %d: %s\n", m.ID, m.Label)
			return nil
		},
	}
	add.Flags().StringVar(&bundle, "type", "image", "media type")
	add.Flags().Int64Var(&of, "of", 0, "id of the node this media belongs to")

	parent := &cobra.Command{
		Use:   "parent [media-id]",
		Short: "Show the node a media item belongs to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			m, err := loadEntity(cmd.Context(), s, domain.MediaEntityType, id)
			if err != nil {
				return err
			}

			node, err := media.ParentNode(cmd.Context(), s, m)
			if err != nil {
				return err
			}
			if node == nil {
				fmt.Printf("Media %d has no parent node.\n", m.ID)
				return nil
			}
			fmt.Printf("%d  %s\n", node.ID, node.Label)
			return nil
		},
	}

	cmd.AddCommand(add, parent)
	return cmd
}

func optionsCmd() *cobra.Command {
	var op string
	var limit int
	var vocabularies []string

	cmd := &cobra.Command{
		Use:   "options [match]",
		Short: "List terms offered by the external URI selection",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			req := cfg.SelectionRequest(strings.Join(args, ""))
			if cmd.Flags().Changed("op") {
				req.MatchOperator = op
			}
			if cmd.Flags().Changed("limit") {
				req.Limit = limit
			}
			if len(vocabularies) > 0 {
				req.TargetBundles = vocabularies
			}

			sel := selection.NewExternalURISelection(s, uri.NewResolver(s, s, logger), nil)
			opts, err := sel.ReferenceableEntities(cmd.Context(), req)
			if err != nil {
				return err
			}

			if len(opts) == 0 {
				fmt.Println("No terms with an external URI match.")
				return nil
			}

			for _, v := range opts {
				fmt.Println(v.Vocabulary)
				for _, t := range v.Terms {
					fmt.Printf("  %d  %s\n", t.ID, t.Label)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&op, "op", domain.MatchContains, "match operator: CONTAINS, STARTS_WITH, ENDS_WITH, =")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of candidate terms (0 = no limit)")
	cmd.Flags().StringSliceVar(&vocabularies, "vocabulary", nil, "restrict to these vocabularies")
	return cmd
}

func loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load [fixture.yaml]",
		Short: "Seed the database from a YAML fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			created, err := s.LoadFixture(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Printf("Loaded %s (%d keyed entities)\n", args[0], len(created))
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.Server.Addr = addr
			}

			s, err := getStore()
			if err != nil {
				return err
			}
			// Note: don't defer s.Close() as server runs indefinitely

			server := api.New(s, cfg, logger)
			return server.Run()
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "server address (overrides config)")
	return cmd
}
