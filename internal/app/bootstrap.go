package app

import (
	"database/sql"
	"fmt"

	"fieldbook/internal/config"
	"fieldbook/internal/db"
	"fieldbook/internal/engine"
	"fieldbook/internal/gen"
	"fieldbook/internal/migrate"
)

// Workspace bundles an opened workspace: the database connection, the loaded
// config, and an engine wired with the configured generation backend.
type Workspace struct {
	DB     *sql.DB
	Config *config.Config
	Engine engine.Engine
}

func (w *Workspace) Close() error {
	return w.DB.Close()
}

// Open prepares a workspace directory: ensures the data dir exists, opens the
// database, runs migrations, and loads fieldbook.yml (falling back to
// defaults when the file is absent).
func Open(workspace string) (*Workspace, error) {
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return nil, err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	generator := gen.NewOpenAIGenerator(cfg.Generation.Model, cfg.Generation.MaxTokens)
	return &Workspace{
		DB:     conn,
		Config: cfg,
		Engine: engine.New(conn, cfg, generator),
	}, nil
}
