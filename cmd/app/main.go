package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sqliteadapter "github.com/atvirokodosprendimai/archmap/internal/adapters/db/sqlite"
	httpadapter "github.com/atvirokodosprendimai/archmap/internal/adapters/http"
	rpcadapter "github.com/atvirokodosprendimai/archmap/internal/adapters/rpcjson"
	"github.com/atvirokodosprendimai/archmap/internal/application"
	"github.com/atvirokodosprendimai/archmap/internal/domain"
	"github.com/atvirokodosprendimai/archmap/internal/view"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "archmap",
		Usage: "Architecture repository server and CLI",
		Commands: []*cli.Command{
			serverCommand(),
			authCommand(),
			projectCommand(),
			elementsCommand(),
			relationshipsCommand(),
			historyCommand(),
			viewsCommand(),
			governanceCommand(),
			accessCommand(),
			auditCommand(),
			importCommand(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runServer(ctx, ":8080", "/tmp/archmap.sock", "archmap.db", "admin@archmap.local", "admin")
		},
	}

	if err := root.Run(context.Background(), args); err != nil {
		log.Fatal(err)
	}
}

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Run HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: ":8080", Usage: "HTTP listen address"},
			&cli.StringFlag{Name: "rpc-socket", Value: "/tmp/archmap.sock", Usage: "JSON-RPC unix socket path"},
			&cli.StringFlag{Name: "db-path", Value: "archmap.db", Usage: "SQLite database path"},
			&cli.StringFlag{Name: "bootstrap-admin-email", Value: "admin@archmap.local", Usage: "initial admin email"},
			&cli.StringFlag{Name: "bootstrap-admin-password", Value: "admin", Usage: "initial admin password when users are empty"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runServer(ctx, c.String("addr"), c.String("rpc-socket"), c.String("db-path"), c.String("bootstrap-admin-email"), c.String("bootstrap-admin-password"))
		},
	}
}

func runServer(ctx context.Context, addr, rpcSocket, dbPath, bootstrapEmail, bootstrapPassword string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := sqliteadapter.Open(dbPath)
	if err != nil {
		return err
	}
	if err := sqliteadapter.RunMigrations(ctx, db); err != nil {
		return err
	}

	store := sqliteadapter.NewStore(db)
	service := application.NewService(logger, store, store)
	if err := service.BootstrapAdmin(ctx, bootstrapEmail, bootstrapPassword); err != nil {
		return err
	}

	router := httpadapter.NewRouter(service)
	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	rpcSrv, err := rpcadapter.Start(rpcSocket, service)
	if err != nil {
		return err
	}

	defer func() {
		_ = rpcSrv.Close()
	}()
	logger.Info("json-rpc listening", zap.String("socket", rpcSocket))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authentication commands",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Login and store CLI token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "transport", Value: "uds"},
					&cli.StringFlag{Name: "server", Value: "http://127.0.0.1:8080"},
					&cli.StringFlag{Name: "socket", Value: "/tmp/archmap.sock"},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
					&cli.StringFlag{Name: "token-name", Value: "cli"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg := cliConfig{Transport: c.String("transport"), Server: c.String("server"), Socket: c.String("socket")}
					var out struct {
						Token string `json:"token"`
						Email string `json:"email"`
					}
					err := doLogin(ctx, cfg, c.String("email"), c.String("password"), c.String("token-name"), &out)
					if err != nil {
						return err
					}
					cfg.Token = out.Token
					if err := saveConfig(cfg); err != nil {
						return err
					}
					fmt.Printf("logged in as %s\n", out.Email)
					return nil
				},
			},
			{
				Name:  "whoami",
				Usage: "Show current authenticated user",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out struct {
						ID    uint   `json:"id"`
						Email string `json:"email"`
					}
					if err := doWhoAmI(ctx, cfg, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printKV([][2]string{{"id", uintToString(out.ID)}, {"email", out.Email}})
					return nil
				},
			},
			{
				Name:  "logout",
				Usage: "Clear local CLI auth token",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					cfg.Token = ""
					if err := saveConfig(cfg); err != nil {
						return err
					}
					fmt.Println("logged out")
					return nil
				},
			},
		},
	}
}

func projectCommand() *cli.Command {
	return &cli.Command{
		Name:  "project",
		Usage: "Project lifecycle commands",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a new project in memory",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "scope", Value: "enterprise", Usage: "enterprise|business-unit|domain|programme"},
					&cli.StringFlag{Name: "framework", Value: "none", Usage: "none|archimate|togaf"},
					&cli.StringFlag{Name: "enforcement", Value: "advisory", Usage: "advisory|guided|enforced"},
					&cli.StringFlag{Name: "governance", Value: "advisory", Usage: "advisory|strict"},
					&cli.StringFlag{Name: "coverage", Value: "baseline", Usage: "baseline|target|both"},
					&cli.StringFlag{Name: "horizon"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.Metadata
					err = doProjectCreate(ctx, cfg, projectParams{
						Name:              c.String("name"),
						Scope:             c.String("scope"),
						Framework:         c.String("framework"),
						EnforcementMode:   c.String("enforcement"),
						GovernanceMode:    c.String("governance"),
						LifecycleCoverage: c.String("coverage"),
						TimeHorizon:       c.String("horizon"),
					}, &out)
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printMetadata(out)
					return nil
				},
			},
			{
				Name:  "show",
				Usage: "Show loaded project metadata and revision",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out struct {
						Metadata domain.Metadata `json:"metadata"`
						Revision uint64          `json:"revision"`
					}
					if err := doProjectGet(ctx, cfg, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printMetadata(out.Metadata)
					printKV([][2]string{{"revision", strconvUint64(out.Revision)}})
					return nil
				},
			},
			{
				Name:  "save",
				Usage: "Persist the loaded project as a snapshot",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out struct {
						Revision uint64 `json:"revision"`
					}
					if err := doProjectSave(ctx, cfg, &out); err != nil {
						return err
					}
					fmt.Printf("saved at revision %d\n", out.Revision)
					return nil
				},
			},
			{
				Name:  "load",
				Usage: "Load a project snapshot by project id",
				Flags: []cli.Flag{&cli.StringFlag{Name: "project-id", Required: true}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out struct {
						Revision uint64 `json:"revision"`
					}
					if err := doProjectLoad(ctx, cfg, c.String("project-id"), &out); err != nil {
						return err
					}
					fmt.Printf("loaded at revision %d\n", out.Revision)
					return nil
				},
			},
		},
	}
}

func elementsCommand() *cli.Command {
	return &cli.Command{
		Name:  "elements",
		Usage: "Element commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List elements",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.EaObject
					if err := doElementsList(ctx, cfg, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printElements(out)
					return nil
				},
			},
			{
				Name:  "create",
				Usage: "Create element",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true},
					&cli.StringFlag{Name: "type", Required: true},
					&cli.StringFlag{Name: "attrs", Usage: "key=value,key=value"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					attrs, err := parseAttrs(c.String("attrs"))
					if err != nil {
						return err
					}
					if err := doElementCreate(ctx, cfg, c.String("id"), c.String("type"), attrs); err != nil {
						return err
					}
					fmt.Printf("created %s\n", c.String("id"))
					return nil
				},
			},
			{
				Name:  "update",
				Usage: "Update element attributes",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true},
					&cli.StringFlag{Name: "attrs", Required: true, Usage: "key=value,key=value"},
					&cli.StringFlag{Name: "mode", Value: "merge", Usage: "merge|replace"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					attrs, err := parseAttrs(c.String("attrs"))
					if err != nil {
						return err
					}
					if err := doElementUpdate(ctx, cfg, c.String("id"), attrs, c.String("mode")); err != nil {
						return err
					}
					fmt.Printf("updated %s\n", c.String("id"))
					return nil
				},
			},
			{
				Name:  "delete",
				Usage: "Soft-delete element",
				Flags: []cli.Flag{&cli.StringFlag{Name: "id", Required: true}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					if err := doElementDelete(ctx, cfg, c.String("id")); err != nil {
						return err
					}
					fmt.Printf("deleted %s\n", c.String("id"))
					return nil
				},
			},
			{
				Name:  "restore",
				Usage: "Restore a soft-deleted element",
				Flags: []cli.Flag{&cli.StringFlag{Name: "id", Required: true}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					if err := doElementRestore(ctx, cfg, c.String("id")); err != nil {
						return err
					}
					fmt.Printf("restored %s\n", c.String("id"))
					return nil
				},
			},
		},
	}
}

func relationshipsCommand() *cli.Command {
	return &cli.Command{
		Name:  "relationships",
		Usage: "Relationship commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List relationships",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.EaRelationship
					if err := doRelationshipsList(ctx, cfg, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printRelationships(out)
					return nil
				},
			},
			{
				Name:  "create",
				Usage: "Connect two elements",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Required: true},
					&cli.StringFlag{Name: "to", Required: true},
					&cli.StringFlag{Name: "type", Required: true},
					&cli.StringFlag{Name: "attrs", Usage: "key=value,key=value"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					attrs, err := parseAttrs(c.String("attrs"))
					if err != nil {
						return err
					}
					if err := doRelationshipCreate(ctx, cfg, c.String("from"), c.String("to"), c.String("type"), attrs); err != nil {
						return err
					}
					fmt.Printf("connected %s -%s-> %s\n", c.String("from"), c.String("type"), c.String("to"))
					return nil
				},
			},
			{
				Name:  "delete",
				Usage: "Delete relationship",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Required: true},
					&cli.StringFlag{Name: "to", Required: true},
					&cli.StringFlag{Name: "type", Required: true},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					if err := doRelationshipDelete(ctx, cfg, c.String("from"), c.String("to"), c.String("type")); err != nil {
						return err
					}
					fmt.Println("deleted")
					return nil
				},
			},
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Undo and redo commands",
		Commands: []*cli.Command{
			{
				Name:  "undo",
				Usage: "Undo the last committed change",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out struct {
						Revision uint64 `json:"revision"`
					}
					if err := doHistory(ctx, cfg, "history.undo", "/api/history/undo", &out); err != nil {
						return err
					}
					fmt.Printf("undone, now at revision %d\n", out.Revision)
					return nil
				},
			},
			{
				Name:  "redo",
				Usage: "Redo the last undone change",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out struct {
						Revision uint64 `json:"revision"`
					}
					if err := doHistory(ctx, cfg, "history.redo", "/api/history/redo", &out); err != nil {
						return err
					}
					fmt.Printf("redone, now at revision %d\n", out.Revision)
					return nil
				},
			},
		},
	}
}

func viewsCommand() *cli.Command {
	return &cli.Command{
		Name:  "views",
		Usage: "View commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List views",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Usage: "filter by view type"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []view.Definition
					if err := doViewsList(ctx, cfg, c.String("type"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printViews(out)
					return nil
				},
			},
			{
				Name:  "create",
				Usage: "Create view from a definition file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Required: true, Usage: "path to a JSON view definition"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					payload, err := os.ReadFile(c.String("file"))
					if err != nil {
						return err
					}
					var out view.Definition
					if err := doViewCreate(ctx, cfg, payload, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printViews([]view.Definition{out})
					return nil
				},
			},
			{
				Name:  "resolve",
				Usage: "Resolve view against the current repository",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out view.Resolved
					if err := doViewResolve(ctx, cfg, c.String("id"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printResolvedView(out)
					return nil
				},
			},
			{
				Name:  "delete",
				Usage: "Delete view",
				Flags: []cli.Flag{&cli.StringFlag{Name: "id", Required: true}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					if err := doViewDelete(ctx, cfg, c.String("id")); err != nil {
						return err
					}
					fmt.Printf("deleted %s\n", c.String("id"))
					return nil
				},
			},
		},
	}
}

func governanceCommand() *cli.Command {
	return &cli.Command{
		Name:  "governance",
		Usage: "Governance commands",
		Commands: []*cli.Command{
			{
				Name:  "report",
				Usage: "Show the current governance debt report",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out governanceReport
					if err := doGovernanceReport(ctx, cfg, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printGovernanceReport(out)
					return nil
				},
			},
		},
	}
}

func accessCommand() *cli.Command {
	return &cli.Command{
		Name:  "access",
		Usage: "User and role commands",
		Commands: []*cli.Command{
			{
				Name:  "users",
				Usage: "Manage users",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Usage: "List users",
						Flags: []cli.Flag{&cli.StringFlag{Name: "q"}, &cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
						Action: func(ctx context.Context, c *cli.Command) error {
							cfg, err := loadConfig()
							if err != nil {
								return err
							}
							var out []userRow
							if err := doUsersList(ctx, cfg, c.String("q"), &out); err != nil {
								return err
							}
							if c.Bool("json") {
								return printJSON(out)
							}
							printUsers(out)
							return nil
						},
					},
					{
						Name:  "create",
						Usage: "Create user with a role and permissions",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "email", Required: true},
							&cli.StringFlag{Name: "password", Required: true},
							&cli.StringFlag{Name: "role", Value: "architect"},
							&cli.StringFlag{Name: "permissions", Value: "repo.read,repo.write", Usage: "comma-separated permission keys"},
						},
						Action: func(ctx context.Context, c *cli.Command) error {
							cfg, err := loadConfig()
							if err != nil {
								return err
							}
							permissions := splitCSVFlag(c.String("permissions"))
							var out struct {
								ID    uint   `json:"id"`
								Email string `json:"email"`
							}
							if err := doUsersCreate(ctx, cfg, c.String("email"), c.String("password"), c.String("role"), permissions, &out); err != nil {
								return err
							}
							fmt.Printf("created user %d (%s) with role %s\n", out.ID, out.Email, c.String("role"))
							return nil
						},
					},
				},
			},
			{
				Name:  "roles",
				Usage: "Manage roles",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Usage: "List roles",
						Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
						Action: func(ctx context.Context, c *cli.Command) error {
							cfg, err := loadConfig()
							if err != nil {
								return err
							}
							var out []roleRow
							if err := doRolesList(ctx, cfg, &out); err != nil {
								return err
							}
							if c.Bool("json") {
								return printJSON(out)
							}
							printRoles(out)
							return nil
						},
					},
				},
			},
		},
	}
}

func auditCommand() *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "Audit log commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List audit logs",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.AuditRecord
					if err := doAuditList(ctx, cfg, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printAuditRecords(out)
					return nil
				},
			},
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Bulk import elements and relationships from CSV sheets",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "elements", Usage: "path to element CSV (id,type,...)"},
			&cli.StringFlag{Name: "relationships", Usage: "path to relationship CSV (fromId,toId,type,...)"},
			&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			batch := application.ImportBatch{}
			if path := c.String("elements"); path != "" {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				batch.Elements, err = application.ParseElementCSV(f)
				_ = f.Close()
				if err != nil {
					return err
				}
			}
			if path := c.String("relationships"); path != "" {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				batch.Relationships, err = application.ParseRelationshipCSV(f)
				_ = f.Close()
				if err != nil {
					return err
				}
			}
			if len(batch.Elements) == 0 && len(batch.Relationships) == 0 {
				return fmt.Errorf("nothing to import: pass --elements and/or --relationships")
			}

			var out importResult
			if err := doImportBatch(ctx, cfg, batch, &out); err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(out)
			}
			if !out.OK {
				printRowErrors(out.RowErrors)
				return fmt.Errorf("import rejected: %s", out.Error)
			}
			fmt.Printf("imported %d elements, %d relationships\n", out.Summary.ElementCount, out.Summary.RelationshipCount)
			return nil
		},
	}
}

func jsonMarshal(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
