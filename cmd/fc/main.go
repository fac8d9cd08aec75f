package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"flowcanvas/internal/config"
	"flowcanvas/internal/db"
	"flowcanvas/internal/domain"
	"flowcanvas/internal/editor"
	"flowcanvas/internal/engine"
	"flowcanvas/internal/events"
	"flowcanvas/internal/migrate"
	"flowcanvas/internal/repo"
	"flowcanvas/internal/server"
	"flowcanvas/internal/tui"
	flowcanvassdk "flowcanvas/sdk/go"
)

var rootCmd = &cobra.Command{
	Use:   "fc",
	Short: "FlowCanvas CLI",
	Long: `FlowCanvas stores and edits BPMN process diagrams.
- Workspace: a .flowcanvas directory holding the SQLite document store.
- Process: a named record with an optional description and an opaque
  diagram document produced by the diagram engine.
- Serve: 'fc serve' exposes the process API over HTTP (OpenAPI included).
- UI: 'fc ui' opens the terminal library/editor shell against a running API.
- Event log: every create, update, and delete lands in 'fc log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	_ = godotenv.Load()
	viper.SetEnvPrefix("FLOWCANVAS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(uiCmd())
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default flowcanvas.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	return cmd
}

func processCmd() *cobra.Command {
	prc := &cobra.Command{Use: "process", Short: "Manage processes"}
	prc.AddCommand(processListCmd())
	prc.AddCommand(processShowCmd())
	prc.AddCommand(processCreateCmd())
	prc.AddCommand(processUpdateCmd())
	prc.AddCommand(processDeleteCmd())
	prc.AddCommand(processExportCmd())
	prc.AddCommand(processImportCmd())
	return prc
}

func processListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List processes, newest change first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListProcesses(ctx, repo.ProcessFilters{Limit: limit})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Description", "Updated"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Name, p.Description, p.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "max rows")
	return cmd
}

func processShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				p, err := r.GetProcess(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func processCreateCmd() *cobra.Command {
	var name, desc, file string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a process",
		RunE: func(cmd *cobra.Command, args []string) error {
			diagram, err := readDiagramFile(file)
			if err != nil {
				return err
			}
			if strings.TrimSpace(name) == "" {
				name = defaultProcessName()
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				now := time.Now().UTC().Format(time.RFC3339)
				p := domain.Process{
					ID:          uuid.NewString(),
					Name:        name,
					Description: desc,
					DiagramXML:  diagram,
					CreatedAt:   now,
					UpdatedAt:   now,
				}
				err := mutate(ctx, r, func(tx execTx) error {
					if err := r.InsertProcessTx(ctx, tx.tx, p); err != nil {
						return err
					}
					return tx.events.Append(ctx, tx.tx, events.TypeProcessCreated, p.ID, events.EventPayload{"name": p.Name})
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "process name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&file, "file", "", "path to a .bpmn diagram file")
	return cmd
}

func processUpdateCmd() *cobra.Command {
	var name, desc, file string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a process (full replace of changed fields)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				p, err := r.GetProcess(ctx, args[0])
				if err != nil {
					return err
				}
				if cmd.Flags().Changed("name") {
					p.Name = name
				}
				if strings.TrimSpace(p.Name) == "" {
					p.Name = defaultProcessName()
				}
				if cmd.Flags().Changed("description") {
					p.Description = desc
				}
				if cmd.Flags().Changed("file") {
					diagram, err := readDiagramFile(file)
					if err != nil {
						return err
					}
					p.DiagramXML = diagram
				}
				p.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
				err = mutate(ctx, r, func(tx execTx) error {
					if err := r.UpdateProcessTx(ctx, tx.tx, p); err != nil {
						return err
					}
					return tx.events.Append(ctx, tx.tx, events.TypeProcessUpdated, p.ID, events.EventPayload{"name": p.Name})
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "process name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&file, "file", "", "path to a .bpmn diagram file")
	return cmd
}

func processDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return mutate(ctx, r, func(tx execTx) error {
					if err := r.DeleteProcessTx(ctx, tx.tx, args[0]); err != nil {
						return err
					}
					return tx.events.Append(ctx, tx.tx, events.TypeProcessDeleted, args[0], nil)
				})
			})
		},
	}
	return cmd
}

func processExportCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a process diagram to <name>.bpmn",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				p, err := r.GetProcess(ctx, args[0])
				if err != nil {
					return err
				}
				if p.DiagramXML == "" {
					return fmt.Errorf("process %s has no diagram content", p.ID)
				}
				path := filepath.Join(outDir, editor.ExportFilename(p.Name))
				if err := renameio.WriteFile(path, []byte(p.DiagramXML), 0o644); err != nil {
					return err
				}
				fmt.Printf("Wrote %s\n", path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&outDir, "out", ".", "output directory")
	return cmd
}

func processImportCmd() *cobra.Command {
	var name, desc string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Create a process from a .bpmn file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			diagram, err := readDiagramFile(args[0])
			if err != nil {
				return err
			}
			if strings.TrimSpace(name) == "" {
				base := filepath.Base(args[0])
				name = strings.TrimSuffix(base, filepath.Ext(base))
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				now := time.Now().UTC().Format(time.RFC3339)
				p := domain.Process{
					ID:          uuid.NewString(),
					Name:        name,
					Description: desc,
					DiagramXML:  diagram,
					CreatedAt:   now,
					UpdatedAt:   now,
				}
				err := mutate(ctx, r, func(tx execTx) error {
					if err := r.InsertProcessTx(ctx, tx.tx, p); err != nil {
						return err
					}
					return tx.events.Append(ctx, tx.tx, events.TypeProcessCreated, p.ID, events.EventPayload{"name": p.Name, "source": "import"})
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "process name (default: file name)")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	return cmd
}

func statusCmd() *cobra.Command {
	st := &cobra.Command{Use: "status", Short: "Status checks"}
	st.AddCommand(statusPingCmd())
	st.AddCommand(statusListCmd())
	return st
}

func statusPingCmd() *cobra.Command {
	var clientName string
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Record a status check",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(clientName) == "" {
				return fmt.Errorf("--client-name required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				sc := domain.StatusCheck{
					ID:         uuid.NewString(),
					ClientName: clientName,
					Timestamp:  time.Now().UTC().Format(time.RFC3339),
				}
				if err := r.InsertStatusCheck(ctx, sc); err != nil {
					return err
				}
				return printJSONOrTable(sc)
			})
		},
	}
	cmd.Flags().StringVar(&clientName, "client-name", "", "reporting client name")
	return cmd
}

func statusListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent status checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListStatusChecks(ctx, limit)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "max rows")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.LatestEvents(ctx, n, evtType, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP process API",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("base-path") {
				cfg.Server.BasePath = basePath
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			handler, err := server.New(server.Config{
				Repo:           repo.Repo{DB: conn},
				Events:         events.Writer{DB: conn},
				BasePath:       cfg.Server.BasePath,
				AllowedOrigins: cfg.Server.CORS.AllowedOrigins,
				DefaultName:    cfg.Editor.DefaultName,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving FlowCanvas API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n",
				cfg.Server.Addr, cfg.Server.BasePath, cfg.Server.BasePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/api", "API base path")
	return cmd
}

func uiCmd() *cobra.Command {
	var baseURL string
	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Open the terminal library/editor shell",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			client := flowcanvassdk.New(baseURL)
			return tui.Run(client, tui.Options{
				DefaultName: cfg.Editor.DefaultName,
				ExportDir:   cfg.Editor.ExportDir,
			})
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "http://127.0.0.1:8080", "process API base URL")
	return cmd
}

// --- helpers ---

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

type execTx struct {
	tx     *sql.Tx
	events events.Writer
}

// mutate runs fn inside a transaction with an event writer bound to it.
func mutate(ctx context.Context, r repo.Repo, fn func(execTx) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(execTx{tx: tx, events: events.Writer{DB: r.DB}}); err != nil {
		return err
	}
	return tx.Commit()
}

// readDiagramFile loads and sanity-checks a diagram file. Empty path means no
// diagram.
func readDiagramFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	canvas := engine.NewCanvas()
	defer canvas.Close()
	if err := canvas.ImportXML(string(data)); err != nil {
		return "", err
	}
	return string(data), nil
}

func defaultProcessName() string {
	cfg, err := config.LoadOptional(viper.GetString("workspace"))
	if err != nil {
		return "Untitled Process"
	}
	return cfg.Editor.DefaultName
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
