package engine

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpanSQLTruncatesLongStatements(t *testing.T) {
	long := strings.Repeat("a", 400)
	out := spanSQL(long)
	assert.True(t, strings.HasSuffix(out, "…"))
	assert.Less(t, len(out), len(long)+10)
}

func TestSpanSQLLeavesShortStatementsAlone(t *testing.T) {
	short := "SELECT 1"
	assert.Equal(t, short, spanSQL(short))
}

func TestSqliteRetryPolicyClassifiesLockErrors(t *testing.T) {
	assert.True(t, sqliteRetryPolicy.isTransient(errors.New("database is locked")))
	assert.True(t, sqliteRetryPolicy.isTransient(errors.New("SQLITE_BUSY")))
	assert.False(t, sqliteRetryPolicy.isTransient(errors.New("constraint failed: UNIQUE")))
}

func TestMysqlRetryPolicyClassifiesTransientErrors(t *testing.T) {
	assert.True(t, mysqlRetryPolicy.isTransient(errors.New("driver: bad connection")))
	assert.True(t, mysqlRetryPolicy.isTransient(errors.New("read tcp: connection reset by peer")))
	assert.False(t, mysqlRetryPolicy.isTransient(errors.New("Error 1062: Duplicate entry")))
}

func TestWrapExecErrorPassesNilThrough(t *testing.T) {
	assert.NoError(t, wrapExecError("sqlite", nil))
}
