package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fieldbook/internal/app"
	"fieldbook/internal/config"
	"fieldbook/internal/db"
	"fieldbook/internal/engine"
	"fieldbook/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "fb",
	Short: "Fieldbook CLI",
	Long: `Fieldbook builds sales playbooks for selling education products to school districts.
Core concepts:
- Workspace: a directory with fieldbook.yml and a .fieldbook database; create one with 'fb init'.
- Districts and products: the catalog the playbooks draw from; import them before generating.
- Playbook: one district + a set of products; generation fans out one task per section and the
  playbook's overall status is derived from its sections (generating, complete, failed, partial).
- Sections: key_themes, product_fit, objections and stakeholders come from the language model;
  district_data and fit_assessment are composed deterministically from the catalog and cannot
  be regenerated on their own.
- Edits: 'fb section edit' overrides generated content and is never clobbered by a stale
  generation; 'fb section regenerate' explicitly replaces it.`,
}

func main() {
	cobra.OnInitialize(initViper)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initViper() {
	viper.SetEnvPrefix("FIELDBOOK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(districtCmd())
	rootCmd.AddCommand(productCmd())
	rootCmd.AddCommand(playbookCmd())
	rootCmd.AddCommand(sectionCmd())
	rootCmd.AddCommand(noteCmd())
	rootCmd.AddCommand(attachCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(name)), 0o644); err != nil {
				return err
			}
			ws, err := app.Open(workspace)
			if err != nil {
				return err
			}
			defer ws.Close()
			fmt.Printf("Initialized workspace %q in %s\n", name, workspace)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "fieldbook", "workspace name")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Inspect workspace config"}
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(func(ctx context.Context, ws *app.Workspace) error {
				return printJSONOrIndent(ws.Config)
			})
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate fieldbook.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	})
	return cfg
}

func districtCmd() *cobra.Command {
	d := &cobra.Command{Use: "district", Short: "Manage the district catalog"}
	d.AddCommand(districtImportCmd())
	d.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List districts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(func(ctx context.Context, ws *app.Workspace) error {
				items, err := ws.Engine.Repo.ListDistricts(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "State", "Enrollment"})
				for _, it := range items {
					tw.AppendRow(table.Row{it.ID, it.Name, it.State, it.Enrollment})
				}
				tw.Render()
				return nil
			})
		},
	})
	d.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show district",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(func(ctx context.Context, ws *app.Workspace) error {
				it, err := ws.Engine.Repo.GetDistrict(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrIndent(it)
			})
		},
	})
	return d
}

func districtImportCmd() *cobra.Command {
	var id, name, state, budgetJSON string
	var enrollment int
	var priorities []string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import or update a district",
		RunE: func(cmd *cobra.Command, args []string) error {
			imp := engine.DistrictImport{
				Name:       name,
				State:      state,
				Enrollment: enrollment,
				Priorities: priorities,
			}
			if budgetJSON != "" {
				if err := json.Unmarshal([]byte(budgetJSON), &imp.Budget); err != nil {
					return fmt.Errorf("invalid --budget-json: %w", err)
				}
			}
			return withWorkspace(func(ctx context.Context, ws *app.Workspace) error {
				d, err := ws.Engine.ImportDistrict(ctx, id, imp)
				if err != nil {
					return err
				}
				return printJSONOrIndent(d)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "district id")
	cmd.Flags().StringVar(&name, "name", "", "district name")
	cmd.Flags().StringVar(&state, "state", "", "US state code")
	cmd.Flags().IntVar(&enrollment, "enrollment", 0, "student enrollment")
	cmd.Flags().StringArrayVar(&priorities, "priority", []string{}, "district priority (repeatable)")
	cmd.Flags().StringVar(&budgetJSON, "budget-json", "", "budget JSON document")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func productCmd() *cobra.Command {
	p := &cobra.Command{Use: "product", Short: "Manage the product catalog"}
	p.AddCommand(productImportCmd())
	p.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List products",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(func(ctx context.Context, ws *app.Workspace) error {
				items, err := ws.Engine.Repo.ListProducts(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Category"})
				for _, it := range items {
					tw.AppendRow(table.Row{it.ID, it.Name, it.Category})
				}
				tw.Render()
				return nil
			})
		},
	})
	p.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(func(ctx context.Context, ws *app.Workspace) error {
				it, err := ws.Engine.Repo.GetProduct(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrIndent(it)
			})
		},
	})
	return p
}

func productImportCmd() *cobra.Command {
	var id, name, category, description string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import or update a product",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(func(ctx context.Context, ws *app.Workspace) error {
				p, err := ws.Engine.ImportProduct(ctx, id, engine.ProductImport{
					Name:        name,
					Category:    category,
					Description: description,
				})
				if err != nil {
					return err
				}
				return printJSONOrIndent(p)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "product id")
	cmd.Flags().StringVar(&name, "name", "", "product name")
	cmd.Flags().StringVar(&category, "category", "", "product category")
	cmd.Flags().StringVar(&description, "description", "", "description")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func playbookCmd() *cobra.Command {
	pb := &cobra.Command{Use: "playbook", Short: "Generate and inspect playbooks"}
	pb.AddCommand(playbookGenerateCmd())
	pb.AddCommand(playbookListCmd())
	pb.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show full playbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(func(ctx context.Context, ws *app.Workspace) error {
				view, err := ws.Engine.GetPlaybookView(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrIndent(view)
			})
		},
	})
	pb.AddCommand(&cobra.Command{
		Use:   "status <id>",
		Short: "Show playbook generation status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(func(ctx context.Context, ws *app.Workspace) error {
				status, err := ws.Engine.GetStatus(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(status)
				}
				fmt.Printf("Playbook %s: %s\n", status.PlaybookID, status.OverallStatus)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Section", "Status", "Edited", "Retryable"})
				for _, s := range status.Sections {
					tw.AppendRow(table.Row{s.Type, s.Status, s.IsEdited, s.Retryable})
				}
				tw.Render()
				return nil
			})
		},
	})
	pb.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete playbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(func(ctx context.Context, ws *app.Workspace) error {
				if err := ws.Engine.DeletePlaybook(ctx, args[0], viper.GetString("actor-id")); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	})
	return pb
}

func playbookGenerateCmd() *cobra.Command {
	var districtID string
	var productIDs []string
	var noWait bool
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a playbook",
		Long:  "Creates a playbook with all sections pending and generates them concurrently. By default the command waits for every section to finish; --no-wait prints the id and exits (generation does not survive process exit).",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(func(ctx context.Context, ws *app.Workspace) error {
				view, err := ws.Engine.GeneratePlaybook(ctx, engine.GenerateOptions{
					DistrictID: districtID,
					ProductIDs: productIDs,
					ActorID:    viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				if noWait {
					return printJSONOrIndent(view)
				}
				ws.Engine.Runner.Wait()
				final, err := ws.Engine.GetPlaybookView(ctx, view.ID)
				if err != nil {
					return err
				}
				return printJSONOrIndent(final)
			})
		},
	}
	cmd.Flags().StringVar(&districtID, "district", "", "district id")
	cmd.Flags().StringArrayVar(&productIDs, "product", []string{}, "product id (repeatable)")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "do not wait for generation to finish")
	_ = cmd.MarkFlagRequired("district")
	_ = cmd.MarkFlagRequired("product")
	return cmd
}

func playbookListCmd() *cobra.Command {
	var districtID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List playbooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(func(ctx context.Context, ws *app.Workspace) error {
				items, err := ws.Engine.Repo.ListPlaybooks(ctx, districtID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "District", "Products", "Created By", "Generated At"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.DistrictID, strings.Join(p.ProductIDs, ","), p.CreatedBy, p.GeneratedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&districtID, "district", "", "filter by district id")
	return cmd
}

func sectionCmd() *cobra.Command {
	sec := &cobra.Command{Use: "section", Short: "Inspect and revise sections"}
	sec.AddCommand(&cobra.Command{
		Use:   "show <playbook-id> <section-id>",
		Short: "Show section",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(func(ctx context.Context, ws *app.Workspace) error {
				s, err := ws.Engine.GetSection(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSONOrIndent(s)
			})
		},
	})
	sec.AddCommand(sectionEditCmd())
	sec.AddCommand(sectionRegenerateCmd())
	return sec
}

func sectionEditCmd() *cobra.Command {
	var content, contentFile string
	cmd := &cobra.Command{
		Use:   "edit <playbook-id> <section-id>",
		Short: "Override section content",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if content == "" && contentFile == "" {
				return fmt.Errorf("--content or --content-file required")
			}
			if contentFile != "" {
				data, err := os.ReadFile(contentFile)
				if err != nil {
					return err
				}
				content = string(data)
			}
			return withWorkspace(func(ctx context.Context, ws *app.Workspace) error {
				s, err := ws.Engine.UpdateSectionContent(ctx, args[0], args[1], content, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrIndent(s)
			})
		},
	}
	cmd.Flags().StringVar(&content, "content", "", "new content")
	cmd.Flags().StringVar(&contentFile, "content-file", "", "read content from file")
	return cmd
}

func sectionRegenerateCmd() *cobra.Command {
	var noWait bool
	cmd := &cobra.Command{
		Use:   "regenerate <playbook-id> <section-id>",
		Short: "Regenerate a section",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(func(ctx context.Context, ws *app.Workspace) error {
				s, err := ws.Engine.RegenerateSection(ctx, args[0], args[1], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if noWait {
					return printJSONOrIndent(s)
				}
				ws.Engine.Runner.Wait()
				s, err = ws.Engine.GetSection(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSONOrIndent(s)
			})
		},
	}
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "do not wait for the new content")
	return cmd
}

func noteCmd() *cobra.Command {
	n := &cobra.Command{Use: "note", Short: "Manage playbook notes"}

	var addContent string
	add := &cobra.Command{
		Use:   "add <playbook-id>",
		Short: "Add note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(func(ctx context.Context, ws *app.Workspace) error {
				note, err := ws.Engine.AddNote(ctx, args[0], addContent, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrIndent(note)
			})
		},
	}
	add.Flags().StringVar(&addContent, "content", "", "note content")
	_ = add.MarkFlagRequired("content")
	n.AddCommand(add)

	n.AddCommand(&cobra.Command{
		Use:   "list <playbook-id>",
		Short: "List notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(func(ctx context.Context, ws *app.Workspace) error {
				items, err := ws.Engine.Repo.ListNotes(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrIndent(items)
			})
		},
	})

	var updContent string
	upd := &cobra.Command{
		Use:   "update <playbook-id> <note-id>",
		Short: "Update note",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(func(ctx context.Context, ws *app.Workspace) error {
				note, err := ws.Engine.UpdateNote(ctx, args[0], args[1], updContent, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrIndent(note)
			})
		},
	}
	upd.Flags().StringVar(&updContent, "content", "", "note content")
	_ = upd.MarkFlagRequired("content")
	n.AddCommand(upd)

	n.AddCommand(&cobra.Command{
		Use:   "delete <playbook-id> <note-id>",
		Short: "Delete note",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(func(ctx context.Context, ws *app.Workspace) error {
				return ws.Engine.DeleteNote(ctx, args[0], args[1], viper.GetString("actor-id"))
			})
		},
	})
	return n
}

func attachCmd() *cobra.Command {
	a := &cobra.Command{Use: "attach", Short: "Manage playbook attachments"}

	var fileName, fileType, contentRef string
	var fileSize int64
	add := &cobra.Command{
		Use:   "add <playbook-id>",
		Short: "Add attachment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(func(ctx context.Context, ws *app.Workspace) error {
				att, err := ws.Engine.AddAttachment(ctx, args[0], engine.AttachmentOptions{
					FileName:   fileName,
					FileType:   fileType,
					FileSize:   fileSize,
					ContentRef: contentRef,
				}, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrIndent(att)
			})
		},
	}
	add.Flags().StringVar(&fileName, "file-name", "", "file name")
	add.Flags().StringVar(&fileType, "file-type", "", "MIME type")
	add.Flags().Int64Var(&fileSize, "file-size", 0, "file size in bytes")
	add.Flags().StringVar(&contentRef, "content-ref", "", "storage reference")
	_ = add.MarkFlagRequired("file-name")
	_ = add.MarkFlagRequired("content-ref")
	a.AddCommand(add)

	a.AddCommand(&cobra.Command{
		Use:   "list <playbook-id>",
		Short: "List attachments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(func(ctx context.Context, ws *app.Workspace) error {
				items, err := ws.Engine.Repo.ListAttachments(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrIndent(items)
			})
		},
	})

	a.AddCommand(&cobra.Command{
		Use:   "remove <playbook-id> <attachment-id>",
		Short: "Remove attachment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(func(ctx context.Context, ws *app.Workspace) error {
				return ws.Engine.RemoveAttachment(ctx, args[0], args[1], viper.GetString("actor-id"))
			})
		},
	})
	return a
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Playbook event log"}
	var n int
	tail := &cobra.Command{
		Use:   "tail <playbook-id>",
		Short: "Tail playbook events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(func(ctx context.Context, ws *app.Workspace) error {
				events, err := ws.Engine.Repo.ListEvents(ctx, args[0], n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "Type", "Entity", "Actor"})
				for _, ev := range events {
					tw.AppendRow(table.Row{ev.TS, ev.Type, ev.EntityKind + "/" + ev.EntityID, ev.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVar(&n, "n", 20, "number of events")
	log.AddCommand(tail)
	return log
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := app.Open(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer ws.Close()
			handler, err := server.New(server.Config{Engine: ws.Engine, BasePath: basePath})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
				ws.Engine.Runner.Shutdown(ctx)
			}()
			fmt.Printf("Serving Fieldbook API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withWorkspace(fn func(context.Context, *app.Workspace) error) error {
	ws, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer ws.Close()
	err = fn(context.Background(), ws)
	ws.Engine.Runner.Wait()
	return err
}

func printJSONOrIndent(v any) error {
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
