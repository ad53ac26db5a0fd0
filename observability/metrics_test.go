package observability

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/hazyhaar/domgloss/dbopen"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db := dbopen.OpenMemory(t)
	if err := Init(context.Background(), db); err != nil {
		t.Fatal(err)
	}
	return db
}

func TestMetrics_FlushOnClose(t *testing.T) {
	db := testDB(t)
	m := NewMetrics(db, 10, time.Hour, nil) // flush only on Close

	m.Record("gloss_batch_duration_ms", 42, map[string]string{"run": "r1"})
	m.Record("gloss_pass_elements", 12, nil)
	m.Close()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM gloss_metrics`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("rows = %d, want 2", count)
	}

	var labels string
	err := db.QueryRow(`SELECT labels FROM gloss_metrics WHERE name = 'gloss_batch_duration_ms'`).Scan(&labels)
	if err != nil {
		t.Fatal(err)
	}
	if labels != `{"run":"r1"}` {
		t.Fatalf("labels = %q", labels)
	}
}

func TestMetrics_DropsWhenFlusherBehind(t *testing.T) {
	db := testDB(t)
	m := NewMetrics(db, 2, time.Hour, nil)
	defer m.Close()

	for i := 0; i < 50; i++ {
		m.Record("m", float64(i), nil)
	}

	m.mu.Lock()
	buffered := len(m.buffer)
	m.mu.Unlock()
	if buffered > 4 {
		t.Fatalf("buffer grew to %d, want capped at 2×bufferSize", buffered)
	}
}
