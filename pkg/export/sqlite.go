package export

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/Sriram-PR/site-mapper/pkg/crawler"
	"github.com/Sriram-PR/site-mapper/pkg/utils"
)

const sqliteSchema = `
CREATE TABLE runs (
	run_id TEXT PRIMARY KEY,
	seed_url TEXT NOT NULL,
	domain TEXT NOT NULL,
	root_node TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	total_nodes INTEGER NOT NULL,
	total_edges INTEGER NOT NULL
);

CREATE TABLE nodes (
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	id TEXT NOT NULL,
	out_degree INTEGER NOT NULL,
	in_degree INTEGER NOT NULL,
	PRIMARY KEY (run_id, id)
);

CREATE TABLE edges (
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	source TEXT NOT NULL,
	target TEXT NOT NULL,
	PRIMARY KEY (run_id, source, target)
);

CREATE TABLE visited (
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	url TEXT NOT NULL,
	PRIMARY KEY (run_id, url)
);

CREATE INDEX idx_edges_target ON edges(run_id, target);
`

// WriteSQLite stores res in a fresh SQLite database at filePath, replacing any existing file
func WriteSQLite(filePath string, res *crawler.Result) error {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(filePath + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: removing old database '%s': %w", utils.ErrFilesystem, filePath+suffix, err)
		}
	}

	db, err := sql.Open("sqlite", filePath+"?mode=rwc")
	if err != nil {
		return fmt.Errorf("%w: opening SQLite '%s': %w", utils.ErrDatabase, filePath, err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("%w: enabling WAL mode: %w", utils.ErrDatabase, err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("%w: creating tables: %w", utils.ErrDatabase, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", utils.ErrDatabase, err)
	}
	if err := insertResult(ctx, tx, res); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: %w", utils.ErrDatabase, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", utils.ErrDatabase, err)
	}
	return nil
}

func insertResult(ctx context.Context, tx *sql.Tx, res *crawler.Result) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, seed_url, domain, root_node, started_at, finished_at, total_nodes, total_edges)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.Seed, res.Domain, res.Root,
		res.StartedAt.UTC().Format(time.RFC3339Nano), res.FinishedAt.UTC().Format(time.RFC3339Nano),
		len(res.Graph.Nodes), len(res.Graph.Edges),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	nodeStmt, err := tx.PrepareContext(ctx, `INSERT INTO nodes (run_id, id, out_degree, in_degree) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare node insert: %w", err)
	}
	defer nodeStmt.Close()
	inDegrees := res.Graph.InDegrees()
	for _, id := range res.Graph.Nodes {
		if _, err := nodeStmt.ExecContext(ctx, res.RunID, id, len(res.Graph.Successors(id)), inDegrees[id]); err != nil {
			return fmt.Errorf("insert node '%s': %w", id, err)
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx, `INSERT INTO edges (run_id, source, target) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare edge insert: %w", err)
	}
	defer edgeStmt.Close()
	for _, e := range res.Graph.Edges {
		if _, err := edgeStmt.ExecContext(ctx, res.RunID, e.From, e.To); err != nil {
			return fmt.Errorf("insert edge '%s' -> '%s': %w", e.From, e.To, err)
		}
	}

	visitedStmt, err := tx.PrepareContext(ctx, `INSERT INTO visited (run_id, url) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare visited insert: %w", err)
	}
	defer visitedStmt.Close()
	for _, u := range res.Visited {
		if _, err := visitedStmt.ExecContext(ctx, res.RunID, u); err != nil {
			return fmt.Errorf("insert visited '%s': %w", u, err)
		}
	}
	return nil
}
