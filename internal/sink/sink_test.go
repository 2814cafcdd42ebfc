package sink

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/bmrs/pkg/models"
)

func sampleTable() *models.Table {
	t := models.NewTable("SettlementDate", "SettlementPeriod", "Quantity")
	t.Rows = [][]string{
		{"2021-01-01", "1", "100.5"},
		{"2021-01-01", "2", "101"},
	}
	return t
}

// --- File ---

func TestWriteFileAtomic(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "nested", "out.csv")

	require.NoError(t, WriteFileAtomic(dest, sampleTable().WriteCSV))

	f, err := os.Open(dest)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, sampleTable().Columns, records[0])
	assert.Equal(t, sampleTable().Rows, records[1:])
}

func TestWriteFileAtomicFailureLeavesDestination(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.csv")
	require.NoError(t, os.WriteFile(dest, []byte("previous\n"), 0o644))

	boom := errors.New("boom")
	err := WriteFileAtomic(dest, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "previous\n", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file should be removed")
}

func TestFileSinkIntoDirectory(t *testing.T) {
	dir := t.TempDir()
	s := &File{Path: dir}

	loc, err := s.Write(context.Background(), Target{Report: "B1630", RunID: "run1"}, sampleTable())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "B1630_run1.csv"), loc)
	assert.FileExists(t, loc)
}

// --- Postgres ---

func TestPostgresWrite(t *testing.T) {
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	p := NewPostgres(db, "")
	tbl := sampleTable()

	sqlMock.ExpectBegin()
	sqlMock.ExpectExec(regexp.QuoteMeta(
		`CREATE TABLE IF NOT EXISTS "public"."b1630" ("SettlementDate" TEXT, "SettlementPeriod" NUMERIC, "Quantity" NUMERIC)`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	prep := sqlMock.ExpectPrepare(regexp.QuoteMeta(
		`COPY "public"."b1630" ("SettlementDate", "SettlementPeriod", "Quantity") FROM STDIN`))
	prep.ExpectExec().WithArgs("2021-01-01", "1", "100.5").WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("2021-01-01", "2", "101").WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs().WillReturnResult(sqlmock.NewResult(0, 0))
	sqlMock.ExpectCommit()

	loc, err := p.Write(context.Background(), Target{Report: "B1630"}, tbl)
	require.NoError(t, err)
	assert.Equal(t, "public.b1630", loc)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

// Re-running a range appends: each Write repeats CREATE IF NOT EXISTS and
// COPY, and nothing deletes or truncates existing rows.
func TestPostgresWriteAppends(t *testing.T) {
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	p := NewPostgres(db, "bmrs")
	tbl := sampleTable()

	for run := 0; run < 2; run++ {
		sqlMock.ExpectBegin()
		sqlMock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "bmrs"."b1630"`)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		prep := sqlMock.ExpectPrepare(regexp.QuoteMeta(`COPY "bmrs"."b1630"`))
		prep.ExpectExec().WithArgs("2021-01-01", "1", "100.5").WillReturnResult(sqlmock.NewResult(0, 1))
		prep.ExpectExec().WithArgs("2021-01-01", "2", "101").WillReturnResult(sqlmock.NewResult(0, 1))
		prep.ExpectExec().WithArgs().WillReturnResult(sqlmock.NewResult(0, 0))
		sqlMock.ExpectCommit()
	}

	for run := 0; run < 2; run++ {
		loc, err := p.Write(context.Background(), Target{Report: "B1630", RunID: fmt.Sprintf("run-%d", run)}, tbl)
		require.NoError(t, err, "run %d", run)
		assert.Equal(t, "bmrs.b1630", loc)
	}
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestPostgresWriteRollsBackOnError(t *testing.T) {
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	p := NewPostgres(db, "bmrs")

	sqlMock.ExpectBegin()
	sqlMock.ExpectExec(`CREATE TABLE IF NOT EXISTS "bmrs"."b1630"`).
		WillReturnError(errors.New("permission denied"))
	sqlMock.ExpectRollback()

	_, err = p.Write(context.Background(), Target{Report: "B1630"}, sampleTable())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestPostgresWriteEmptyTable(t *testing.T) {
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewPostgres(db, "").Write(context.Background(), Target{Report: "B1630"}, &models.Table{})
	require.NoError(t, err)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

// --- S3 ---

type mockS3 struct {
	mock.Mock
	body []byte
}

func (m *mockS3) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(*in.Bucket, *in.Key)
	b, _ := io.ReadAll(in.Body)
	m.body = b
	if out := args.Get(0); out != nil {
		return out.(*s3.PutObjectOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestS3Write(t *testing.T) {
	m := &mockS3{}
	m.On("PutObject", "reports", "bmrs/b1630/run1.csv").Return(&s3.PutObjectOutput{}, nil)

	s := NewS3(m, "reports", "bmrs")
	loc, err := s.Write(context.Background(), Target{Report: "B1630", RunID: "run1"}, sampleTable())
	require.NoError(t, err)
	assert.Equal(t, "s3://reports/bmrs/b1630/run1.csv", loc)
	assert.Equal(t, "SettlementDate,SettlementPeriod,Quantity\n2021-01-01,1,100.5\n2021-01-01,2,101\n", string(m.body))
	m.AssertExpectations(t)
}

func TestS3WriteError(t *testing.T) {
	m := &mockS3{}
	m.On("PutObject", "reports", mock.Anything).Return(nil, errors.New("access denied"))

	_, err := NewS3(m, "reports", "").Write(context.Background(), Target{Report: "B1630", RunID: "x"}, sampleTable())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3://reports/b1630/x.csv")
}

func TestOpenUnknownSink(t *testing.T) {
	_, err := Open(context.Background(), "kafka", Options{})
	assert.ErrorIs(t, err, ErrUnknownSink)

	_, err = Open(context.Background(), KindFile, Options{})
	assert.Error(t, err)

	s, err := Open(context.Background(), KindFile, Options{Path: "out.csv"})
	require.NoError(t, err)
	assert.IsType(t, &File{}, s)
}
