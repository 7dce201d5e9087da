// Package pgx persists knowledge graphs in PostgreSQL.
//
// A graph is stored as its relation list in the kg_triples table, one row
// per triple in insertion order. Entity registrations travel as ordinary
// "type" triples, so loading replays the table and rebuilds entities and
// relations in a single pass, exactly like loading a serialized snapshot.
package pgx

import (
	"context"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/tuchaVshortah/financial-kg-agent/pkg/kg"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/logger"
)

type dbConn interface {
	Query(ctx context.Context, sql string, args ...any) (pgxv5.Rows, error)
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// Store reads and writes whole graphs against the kg_triples table.
//
// SaveGraph is replace-all: the table always mirrors exactly one graph.
// Writers must hold the graph lease lock; readers need no coordination
// because the swap happens inside a transaction.
type Store struct {
	conn dbConn
}

// NewStore creates a Store on an existing connection pool.
func NewStore(conn dbConn) *Store {
	return &Store{conn: conn}
}

type tripleRow struct {
	Seq        int
	Subject    string
	Predicate  string
	ObjectKind string
	ObjectText string
	Sources    []string
}

// SaveGraph replaces the stored triple set with the relations of g.
func (s *Store) SaveGraph(ctx context.Context, g *kg.Graph) error {
	triples := collectTriples(g)
	rows := make([][]any, len(triples))
	for i, t := range triples {
		rows[i] = []any{t.Seq, t.Subject, t.Predicate, t.ObjectKind, t.ObjectText, t.Sources}
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to save graph: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, deleteTriplesSQL); err != nil {
		return fmt.Errorf("failed to clear stored triples: %w", err)
	}

	copied, err := tx.CopyFrom(ctx, pgxv5.Identifier{"kg_triples"}, tripleColumns, pgxv5.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to insert triples: %w", err)
	}
	if copied != int64(len(rows)) {
		return fmt.Errorf("failed to insert triples: wrote %d of %d rows", copied, len(rows))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to save graph: %w", err)
	}

	logger.Debug("[Graph][SaveGraph] Replaced stored triples", "triples", len(rows))
	return nil
}

// LoadGraph merges every stored triple into g in insertion order. The
// replay goes through the same mutation path as loading a snapshot, so
// loading into a graph that already holds the data is a no-op on the
// relation set.
func (s *Store) LoadGraph(ctx context.Context, g *kg.Graph) error {
	rows, err := s.conn.Query(ctx, selectTriplesSQL)
	if err != nil {
		return fmt.Errorf("failed to load graph: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var row tripleRow
		if err := rows.Scan(&row.Subject, &row.Predicate, &row.ObjectKind, &row.ObjectText, &row.Sources); err != nil {
			return fmt.Errorf("failed to load graph: %w", err)
		}
		if err := replayTriple(g, row); err != nil {
			return fmt.Errorf("failed to load graph: triple %d: %w", count+1, err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to load graph: %w", err)
	}

	logger.Debug("[Graph][LoadGraph] Replayed stored triples", "triples", count)
	return nil
}

// collectTriples flattens the graph into storable rows, sources
// normalized to a non-nil slice for the NOT NULL column.
func collectTriples(g *kg.Graph) []tripleRow {
	rows := make([]tripleRow, 0)
	for r := range g.Match(kg.Pattern{}) {
		sources := r.Sources
		if sources == nil {
			sources = []string{}
		}
		rows = append(rows, tripleRow{
			Seq:        r.Seq,
			Subject:    r.Subject,
			Predicate:  r.Predicate,
			ObjectKind: string(r.Object.Kind),
			ObjectText: r.Object.Text,
			Sources:    sources,
		})
	}
	return rows
}

func replayTriple(g *kg.Graph, row tripleRow) error {
	object := kg.Value{Kind: kg.ValueKind(row.ObjectKind), Text: row.ObjectText}
	sources := row.Sources
	if len(sources) == 0 {
		sources = []string{""}
	}

	if row.Predicate == kg.KindPredicate {
		if object.Kind != kg.ValueString {
			return fmt.Errorf("entity kind must be a string literal")
		}
		for _, source := range sources {
			if err := g.AddEntityFrom(source, object.Text, row.Subject, nil); err != nil {
				return err
			}
		}
		return nil
	}

	for _, source := range sources {
		if err := g.AddRelationFrom(source, row.Subject, row.Predicate, object); err != nil {
			return err
		}
	}
	return nil
}

var tripleColumns = []string{"seq", "subject", "predicate", "object_kind", "object_text", "sources"}

const deleteTriplesSQL = `DELETE FROM kg_triples;`

const selectTriplesSQL = `
SELECT subject, predicate, object_kind, object_text, sources
FROM kg_triples
ORDER BY seq;
`
