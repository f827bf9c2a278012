package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/m-mizutani/goerr/v2"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect describes the differences between supported SQL engines
type Dialect struct {
	Driver      string
	createTable string
	placeholder func(n int) string
}

var (
	// SQLite stores examples in a local database file
	SQLite = Dialect{
		Driver: "sqlite3",
		createTable: `CREATE TABLE IF NOT EXISTS examples (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			text TEXT NOT NULL,
			emotion TEXT NOT NULL,
			intent TEXT NOT NULL,
			tags TEXT NOT NULL,
			added_at TEXT NOT NULL,
			emb TEXT NOT NULL
		)`,
		placeholder: func(int) string { return "?" },
	}

	// Postgres stores examples in a PostgreSQL table
	Postgres = Dialect{
		Driver: "postgres",
		createTable: `CREATE TABLE IF NOT EXISTS examples (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			text TEXT NOT NULL,
			emotion TEXT NOT NULL,
			intent TEXT NOT NULL,
			tags TEXT NOT NULL,
			added_at TEXT NOT NULL,
			emb TEXT NOT NULL
		)`,
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	}
)

// SQL persists examples in a relational table ordered by an auto-increment sequence
type SQL struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQL opens dsn with the dialect's driver and ensures the table exists
func NewSQL(ctx context.Context, dialect Dialect, dsn string) (*SQL, error) {
	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open database", goerr.V("driver", dialect.Driver))
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "failed to connect database", goerr.V("driver", dialect.Driver))
	}
	if _, err := db.ExecContext(ctx, dialect.createTable); err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "failed to create examples table", goerr.V("driver", dialect.Driver))
	}

	return &SQL{db: db, dialect: dialect}, nil
}

// Close closes the database
func (r *SQL) Close() error {
	return r.db.Close()
}

func (r *SQL) LoadExamples(ctx context.Context) ([]*model.Example, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, text, emotion, intent, tags, added_at, emb FROM examples ORDER BY seq ASC")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query examples")
	}
	defer rows.Close()

	var examples []*model.Example
	for rows.Next() {
		var (
			rec        Record
			tags, embs string
		)
		if err := rows.Scan(&rec.ID, &rec.Text, &rec.Emotion, &rec.Intent, &tags, &rec.AddedAt, &embs); err != nil {
			return nil, goerr.Wrap(err, "failed to scan example row")
		}
		if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
			return nil, goerr.Wrap(model.ErrParse, "invalid tags column", goerr.V("id", rec.ID), goerr.V("cause", err.Error()))
		}
		if err := json.Unmarshal([]byte(embs), &rec.Emb); err != nil {
			return nil, goerr.Wrap(model.ErrParse, "invalid emb column", goerr.V("id", rec.ID), goerr.V("cause", err.Error()))
		}

		example, err := rec.Example()
		if err != nil {
			return nil, goerr.Wrap(err, "failed to decode example row", goerr.V("id", rec.ID))
		}
		examples = append(examples, example)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate example rows")
	}

	return examples, nil
}

func (r *SQL) AppendExample(ctx context.Context, example *model.Example) error {
	rec := NewRecord(example)
	tags, err := json.Marshal(rec.Tags)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal tags", goerr.V("id", example.ID))
	}
	embs, err := json.Marshal(rec.Emb)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal embedding", goerr.V("id", example.ID))
	}

	p := r.dialect.placeholder
	query := fmt.Sprintf("INSERT INTO examples (id, text, emotion, intent, tags, added_at, emb) VALUES (%s, %s, %s, %s, %s, %s, %s)",
		p(1), p(2), p(3), p(4), p(5), p(6), p(7))

	if _, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.Text, rec.Emotion, rec.Intent, string(tags), rec.AddedAt, string(embs)); err != nil {
		return goerr.Wrap(err, "failed to insert example", goerr.V("id", example.ID))
	}
	return nil
}

func (r *SQL) ClearExamples(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM examples"); err != nil {
		return goerr.Wrap(err, "failed to delete examples")
	}
	return nil
}
