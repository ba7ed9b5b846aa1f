package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/kithlabs/kith/internal/config"
	"github.com/kithlabs/kith/internal/db"
	"github.com/kithlabs/kith/internal/discovery"
	"github.com/kithlabs/kith/internal/graph"
	"github.com/kithlabs/kith/internal/people"
	"github.com/kithlabs/kith/internal/watch"
)

var (
	version    = "dev"
	commit     = "none"
	buildDate  = "unknown"
	jsonOutput bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "kith",
		Short: "Personal relationship graph builder",
		Long: `Kith turns your interaction history (calendar, mail, messages,
calls, slack, photos) into a relationship graph: who you know,
how you know them, and how strong the connection is.`,
	}

	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(meCmd())
	rootCmd.AddCommand(discoverCmd())
	rootCmd.AddCommand(suggestCmd())
	rootCmd.AddCommand(overlapCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(watchCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOutput {
				printJSON(map[string]string{
					"version": version,
					"commit":  commit,
					"date":    buildDate,
				})
			} else {
				fmt.Printf("kith %s (%s, %s)\n", version, commit, buildDate)
			}
		},
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize kith config and database",
		Run: func(cmd *cobra.Command, args []string) {
			type Result struct {
				OK        bool   `json:"ok"`
				ConfigDir string `json:"config_dir,omitempty"`
				DataDir   string `json:"data_dir,omitempty"`
				DBPath    string `json:"db_path,omitempty"`
			}

			configDir, err := config.GetConfigDir()
			if err != nil {
				fatal("get config directory: %v", err)
			}
			dataDir, err := config.GetDataDir()
			if err != nil {
				fatal("get data directory: %v", err)
			}
			if err := os.MkdirAll(configDir, 0755); err != nil {
				fatal("create config directory: %v", err)
			}
			if err := os.MkdirAll(dataDir, 0755); err != nil {
				fatal("create data directory: %v", err)
			}

			dbPath, err := db.DefaultPath()
			if err != nil {
				fatal("get database path: %v", err)
			}
			if err := db.Init(dbPath); err != nil {
				fatal("initialize database: %v", err)
			}

			result := Result{OK: true, ConfigDir: configDir, DataDir: dataDir, DBPath: dbPath}
			if jsonOutput {
				printJSON(result)
			} else {
				fmt.Println("Initialized kith")
				fmt.Printf("  Config: %s\n", configDir)
				fmt.Printf("  Data:   %s\n", dataDir)
				fmt.Printf("  DB:     %s\n", dbPath)
			}
		},
	}
}

func meCmd() *cobra.Command {
	meCmd := &cobra.Command{
		Use:   "me",
		Short: "Manage the owner identity",
	}

	meCmd.AddCommand(&cobra.Command{
		Use:   "set <person-id>",
		Short: "Mark a person as the owner",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			database := mustOpenDB()
			defer database.Close()

			personID := args[0]
			directory := people.NewDirectory(database)
			if err := directory.SetMe(personID); err != nil {
				fatal("set owner: %v", err)
			}

			cfg, err := config.Load()
			if err != nil {
				fatal("load config: %v", err)
			}
			cfg.Owner.PersonID = personID
			if err := cfg.Save(); err != nil {
				fatal("save config: %v", err)
			}

			person, err := directory.GetByID(personID)
			if err != nil {
				fatal("load person: %v", err)
			}
			if jsonOutput {
				printJSON(map[string]string{"owner": personID, "name": person.CanonicalName})
			} else {
				fmt.Printf("Owner set to %s (%s)\n", person.CanonicalName, personID)
			}
		},
	})

	meCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the configured owner",
		Run: func(cmd *cobra.Command, args []string) {
			database := mustOpenDB()
			defer database.Close()

			me, err := people.NewDirectory(database).GetMe()
			if err != nil {
				fatal("load owner: %v", err)
			}
			if me == nil {
				if jsonOutput {
					printJSON(map[string]any{"owner": nil})
				} else {
					fmt.Println("No owner set. Run: kith me set <person-id>")
				}
				return
			}
			if jsonOutput {
				printJSON(map[string]string{"owner": me.ID, "name": me.CanonicalName})
			} else {
				fmt.Printf("%s (%s)\n", me.CanonicalName, me.ID)
			}
		},
	})

	return meCmd
}

func discoverCmd() *cobra.Command {
	var (
		days   int
		source string
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Run relationship discovery over all sources",
		Run: func(cmd *cobra.Command, args []string) {
			database := mustOpenDB()
			defer database.Close()

			engine := mustEngine(database, days)
			var (
				report *discovery.Report
				err    error
			)
			if source != "" {
				report, err = engine.RunSource(cmd.Context(), source)
			} else {
				report, err = engine.RunFullDiscovery(cmd.Context())
			}
			if err != nil {
				fatal("discovery: %v", err)
			}

			if jsonOutput {
				printJSON(report)
				return
			}
			names := make([]string, 0, len(report.BySource))
			for name := range report.BySource {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				marker := ""
				if report.Errors[name] != "" {
					marker = "  (failed: " + report.Errors[name] + ")"
				}
				fmt.Printf("  %-18s %d%s\n", name, report.BySource[name], marker)
			}
			fmt.Printf("Total: %d relationships updated\n", report.Total)
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Days of history to scan (default: config)")
	cmd.Flags().StringVar(&source, "source", "", "Run a single extractor (e.g. calendar, slack_direct)")
	return cmd
}

func suggestCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "suggest <person-id>",
		Short: "Suggest likely connections for a person",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			database := mustOpenDB()
			defer database.Close()

			engine := mustEngine(database, 0)
			suggestions, err := engine.SuggestedConnections(args[0], limit)
			if err != nil {
				fatal("suggestions: %v", err)
			}

			if jsonOutput {
				printJSON(suggestions)
				return
			}
			if len(suggestions) == 0 {
				fmt.Println("No suggestions")
				return
			}
			for _, s := range suggestions {
				fmt.Printf("  %.3f  %s", s.Score, s.Name)
				if s.Company != "" {
					fmt.Printf(" (%s)", s.Company)
				}
				fmt.Printf("  via %v\n", s.SharedContexts)
			}
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum suggestions")
	return cmd
}

func overlapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overlap <person-a> <person-b>",
		Short: "Show everything two people share",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			database := mustOpenDB()
			defer database.Close()

			engine := mustEngine(database, 0)
			overlap, err := engine.ConnectionOverlap(args[0], args[1])
			if err != nil {
				fatal("overlap: %v", err)
			}

			if jsonOutput {
				printJSON(overlap)
				return
			}
			fmt.Printf("%s <-> %s\n", overlap.PersonA.Name, overlap.PersonB.Name)
			if overlap.Relationship.Exists {
				fmt.Printf("  Relationship: %s (%d events, %d threads)\n",
					overlap.Relationship.Type,
					overlap.Relationship.SharedEventsCount,
					overlap.Relationship.SharedThreadsCount)
				if overlap.Relationship.LastSeenTogether != nil {
					fmt.Printf("  Last seen together: %s\n",
						overlap.Relationship.LastSeenTogether.Format("2006-01-02"))
				}
			} else {
				fmt.Println("  No relationship on record")
			}
			fmt.Printf("  Shared contexts: %v\n", overlap.SharedContexts)
			fmt.Printf("  Shared sources:  %v\n", overlap.SharedSources)
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show graph statistics",
		Run: func(cmd *cobra.Command, args []string) {
			database := mustOpenDB()
			defer database.Close()

			stats, err := graph.NewStore(database).GetStatistics()
			if err != nil {
				fatal("statistics: %v", err)
			}
			persons, err := people.NewDirectory(database).Count()
			if err != nil {
				fatal("count persons: %v", err)
			}

			if jsonOutput {
				printJSON(map[string]any{
					"persons":       persons,
					"relationships": stats,
				})
				return
			}
			fmt.Printf("Persons:       %d\n", persons)
			fmt.Printf("Relationships: %d\n", stats.Total)
			for relType, n := range stats.ByType {
				fmt.Printf("  %-10s %d\n", relType, n)
			}
			fmt.Printf("Avg shared interactions: %.1f\n", stats.AvgSharedInteractions)
		},
	}
}

func watchCmd() *cobra.Command {
	var debounceSec int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run discovery whenever the database changes",
		Run: func(cmd *cobra.Command, args []string) {
			dbPath, err := db.DefaultPath()
			if err != nil {
				fatal("get database path: %v", err)
			}
			database := mustOpenDB()
			defer database.Close()

			engine := mustEngine(database, 0)
			logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})

			watcher := watch.New(dbPath, time.Duration(debounceSec)*time.Second,
				func(ctx context.Context) error {
					_, err := engine.RunFullDiscovery(ctx)
					return err
				}, logger)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := watcher.Watch(ctx); err != nil {
				fatal("watch: %v", err)
			}
		},
	}

	cmd.Flags().IntVar(&debounceSec, "debounce", 2, "Seconds to wait after a change before running")
	return cmd
}

func mustOpenDB() *sql.DB {
	path, err := db.DefaultPath()
	if err != nil {
		fatal("get database path: %v", err)
	}
	database, err := db.Open(path)
	if err != nil {
		fatal("open database: %v", err)
	}
	return database
}

// mustEngine wires a discovery engine from config. days overrides the
// configured lookback when positive.
func mustEngine(database *sql.DB, days int) *discovery.Engine {
	cfg, err := config.Load()
	if err != nil {
		fatal("load config: %v", err)
	}

	owner := cfg.Owner.PersonID
	if owner == "" {
		// fall back to the is_me flag when config has no owner
		me, err := people.NewDirectory(database).GetMe()
		if err != nil {
			fatal("load owner: %v", err)
		}
		if me != nil {
			owner = me.ID
		}
	}

	dcfg := cfg.Discovery
	if days > 0 {
		dcfg.LookbackDays = days
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	return discovery.New(database, owner, dcfg, logger)
}

func fatal(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if jsonOutput {
		printJSON(map[string]any{"ok": false, "error": msg})
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}
