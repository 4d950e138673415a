package retrieval

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"shopping-assistant/internal/common/logger"
)

// EmbedFunc produces a vector embedding for a text. The embedding backend is
// external to this package.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// PgVectorRetriever searches a Postgres table with the pgvector extension by
// cosine distance to the query embedding.
type PgVectorRetriever struct {
	db     *sql.DB
	table  string
	embed  EmbedFunc
	logger logger.Logger
}

// NewPgVectorRetriever creates a retriever over the given table. The table is
// expected to have columns id (text, primary key), content (text), title
// (text), metadata (jsonb) and embedding (vector).
func NewPgVectorRetriever(db *sql.DB, table string, embed EmbedFunc, log logger.Logger) *PgVectorRetriever {
	return &PgVectorRetriever{
		db:     db,
		table:  table,
		embed:  embed,
		logger: log.WithFields(map[string]interface{}{"retriever": "pgvector", "table": table}),
	}
}

func (r *PgVectorRetriever) Search(ctx context.Context, query string, k int) ([]RetrievedPassage, error) {
	if k <= 0 {
		k = 5
	}

	vec, err := r.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	//nolint:gosec // table name comes from configuration, not user input
	stmt := fmt.Sprintf(
		`SELECT id, title, content, 1 - (embedding <=> $1::vector) AS score
		 FROM %s ORDER BY embedding <=> $1::vector LIMIT $2`,
		r.table,
	)

	rows, err := r.db.QueryContext(ctx, stmt, vectorLiteral(vec), k)
	if err != nil {
		return nil, fmt.Errorf("pgvector search failed: %w", err)
	}
	defer rows.Close()

	var passages []RetrievedPassage
	for rows.Next() {
		var p RetrievedPassage
		var title sql.NullString
		if err := rows.Scan(&p.ID, &title, &p.Content, &p.Score); err != nil {
			return nil, fmt.Errorf("scan pgvector row: %w", err)
		}
		p.Title = title.String
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector rows: %w", err)
	}

	return passages, nil
}

// AddDocuments upserts documents with freshly computed embeddings.
func (r *PgVectorRetriever) AddDocuments(ctx context.Context, docs []Document) error {
	//nolint:gosec // table name comes from configuration, not user input
	stmt := fmt.Sprintf(
		`INSERT INTO %s (id, title, content, metadata, embedding)
		 VALUES ($1, $2, $3, $4, $5::vector)
		 ON CONFLICT (id) DO UPDATE SET
		   title = EXCLUDED.title,
		   content = EXCLUDED.content,
		   metadata = EXCLUDED.metadata,
		   embedding = EXCLUDED.embedding`,
		r.table,
	)

	for _, doc := range docs {
		vec, err := r.embed(ctx, doc.Title+" "+doc.Content)
		if err != nil {
			return fmt.Errorf("embed document %s: %w", doc.ID, err)
		}

		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata for %s: %w", doc.ID, err)
		}

		if _, err := r.db.ExecContext(ctx, stmt, doc.ID, doc.Title, doc.Content, meta, vectorLiteral(vec)); err != nil {
			return fmt.Errorf("upsert document %s: %w", doc.ID, err)
		}
	}

	r.logger.Info("documents upserted", map[string]interface{}{"count": len(docs)})
	return nil
}

// vectorLiteral renders a pgvector text literal like [0.1,0.2,0.3].
func vectorLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
