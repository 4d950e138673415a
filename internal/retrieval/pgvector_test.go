package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopping-assistant/internal/common/logger"
)

func fakeEmbed(vec []float32, err error) EmbedFunc {
	return func(_ context.Context, _ string) ([]float32, error) {
		return vec, err
	}
}

func TestPgVectorSearch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := NewPgVectorRetriever(db, "documents", fakeEmbed([]float32{0.1, 0.2}, nil), logger.NewNoOpLogger())

	rows := sqlmock.NewRows([]string{"id", "title", "content", "score"}).
		AddRow("doc-1", "Return Policy", "Returns accepted within 30 days.", 0.92).
		AddRow("doc-2", nil, "Shipping takes 5-7 business days.", 0.71)

	mock.ExpectQuery("SELECT id, title, content").
		WithArgs("[0.1,0.2]", 3).
		WillReturnRows(rows)

	passages, err := r.Search(context.Background(), "return policy", 3)
	require.NoError(t, err)
	require.Len(t, passages, 2)

	assert.Equal(t, "doc-1", passages[0].ID)
	assert.Equal(t, "Return Policy", passages[0].Title)
	assert.InDelta(t, 0.92, passages[0].Score, 0.001)
	assert.Empty(t, passages[1].Title)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgVectorSearchEmbedError(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := NewPgVectorRetriever(db, "documents", fakeEmbed(nil, errors.New("embedding backend down")), logger.NewNoOpLogger())

	_, err = r.Search(context.Background(), "return policy", 3)
	assert.ErrorContains(t, err, "embed query")
}

func TestPgVectorSearchQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := NewPgVectorRetriever(db, "documents", fakeEmbed([]float32{0.5}, nil), logger.NewNoOpLogger())

	mock.ExpectQuery("SELECT id, title, content").
		WillReturnError(errors.New("connection refused"))

	_, err = r.Search(context.Background(), "return policy", 3)
	assert.ErrorContains(t, err, "pgvector search failed")
}

func TestPgVectorAddDocuments(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := NewPgVectorRetriever(db, "documents", fakeEmbed([]float32{0.1, 0.2}, nil), logger.NewNoOpLogger())

	mock.ExpectExec("INSERT INTO documents").
		WithArgs("doc-1", "Return Policy", "Returns accepted within 30 days.", sqlmock.AnyArg(), "[0.1,0.2]").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = r.AddDocuments(context.Background(), []Document{
		{ID: "doc-1", Title: "Return Policy", Content: "Returns accepted within 30 days."},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[0.1,0.2,0.3]", vectorLiteral([]float32{0.1, 0.2, 0.3}))
	assert.Equal(t, "[]", vectorLiteral(nil))
	assert.Equal(t, "[-1,0,2.5]", vectorLiteral([]float32{-1, 0, 2.5}))
}
