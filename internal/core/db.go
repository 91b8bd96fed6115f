package core

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// ExportFileName is the default snapshot file inside DataDirName.
const ExportFileName = "graph.sqlite"

// DefaultExportPath returns the default snapshot location for a vault.
func DefaultExportPath(vaultPath string) string {
	return filepath.Join(vaultPath, DataDirName, ExportFileName)
}

func openDBAt(path string) (*sql.DB, error) {
	return sql.Open("sqlite", fmt.Sprintf("file:%s", path))
}

func initSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS nodes (
			id          INTEGER PRIMARY KEY,
			node_key    TEXT NOT NULL UNIQUE,
			type        TEXT NOT NULL,
			name        TEXT NOT NULL,
			path        TEXT NOT NULL,
			exists_flag INTEGER NOT NULL DEFAULT 1,
			mtime       INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_type_name ON nodes(type, name);`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_path ON nodes(path);`,
		`CREATE TABLE IF NOT EXISTS edges (
			id           INTEGER PRIMARY KEY,
			source_id    INTEGER NOT NULL,
			target_id    INTEGER NOT NULL,
			link_type    TEXT NOT NULL,
			raw_link     TEXT NOT NULL,
			locator      TEXT NOT NULL,
			start_offset INTEGER,
			end_offset   INTEGER,
			node_index   INTEGER,
			link_index   INTEGER,
			line         INTEGER,
			FOREIGN KEY(source_id) REFERENCES nodes(id),
			FOREIGN KEY(target_id) REFERENCES nodes(id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);`,
		`CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);`,
		`CREATE INDEX IF NOT EXISTS idx_edges_source_target ON edges(source_id, target_id);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// ExportResult summarizes a written snapshot.
type ExportResult struct {
	Path  string
	Nodes int
	Edges int
}

// Export writes the graph to a SQLite file at out. The file is written to a
// temporary name first and renamed into place.
func Export(ctx context.Context, svc *Service, out string) (*ExportResult, error) {
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return nil, err
	}
	tmp := out + ".tmp"
	_ = os.Remove(tmp)

	db, err := openDBAt(tmp)
	if err != nil {
		return nil, err
	}
	result, err := writeSnapshot(ctx, db, svc)
	if cerr := db.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return nil, err
	}
	if err := os.Rename(tmp, out); err != nil {
		_ = os.Remove(tmp)
		return nil, err
	}
	result.Path = out
	return result, nil
}

func writeSnapshot(ctx context.Context, db *sql.DB, svc *Service) (*ExportResult, error) {
	if err := initSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	insertNode, err := tx.PrepareContext(ctx,
		`INSERT INTO nodes (node_key, type, name, path, exists_flag, mtime) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer insertNode.Close()
	insertEdge, err := tx.PrepareContext(ctx,
		`INSERT INTO edges (source_id, target_id, link_type, raw_link, locator, start_offset, end_offset, node_index, link_index, line)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer insertEdge.Close()

	result := &ExportResult{}
	ids := make(map[string]int64)
	nodeID := func(p string) (int64, error) {
		if id, ok := ids[p]; ok {
			return id, nil
		}
		existsFlag, mtime := 1, sql.NullInt64{}
		info, err := svc.store.Stat(p)
		if err != nil {
			existsFlag = 0
		} else {
			mtime = sql.NullInt64{Int64: info.MTime.Unix(), Valid: true}
		}
		res, err := insertNode.ExecContext(ctx, noteKey(p), nodeType(p), basename(p), p, existsFlag, mtime)
		if err != nil {
			return 0, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, err
		}
		ids[p] = id
		result.Nodes++
		return id, nil
	}

	var walkErr error
	svc.graph.Edges(func(ref Reference) bool {
		if walkErr = ctx.Err(); walkErr != nil {
			return false
		}
		var sourceID, targetID int64
		if sourceID, walkErr = nodeID(ref.Source); walkErr != nil {
			return false
		}
		if targetID, walkErr = nodeID(ref.Target); walkErr != nil {
			return false
		}
		loc := ref.Locator
		_, walkErr = insertEdge.ExecContext(ctx, sourceID, targetID, ref.Kind, ref.Original, loc.String(),
			loc.Start, loc.End, nullIndex(loc.Node), nullIndex(loc.Link), ref.Line)
		if walkErr != nil {
			return false
		}
		result.Edges++
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}

func noteKey(path string) string {
	return fmt.Sprintf("%s:path:%s", nodeType(path), path)
}

func nodeType(path string) string {
	switch extension(path) {
	case ".md":
		return "note"
	case ".canvas":
		return "canvas"
	default:
		return "asset"
	}
}

func nullIndex(i int) sql.NullInt64 {
	if i < 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(i), Valid: true}
}
