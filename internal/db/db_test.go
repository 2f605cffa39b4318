package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

const failedToInitDB = "Failed to initialize database: %v"

const select1 = `SELECT 1`
const insertLead = `INSERT INTO leads (id, name, email, subject, message) VALUES (?, ?, ?, ?, ?)`

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	SetLogger(zerolog.New(os.Stdout).Level(zerolog.ErrorLevel))

	db := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewSQLite(t *testing.T) {
	db := NewSQLite("./test.db")

	if db == nil {
		t.Fatal("Expected non-nil SQLite instance")
	}
	if db.conn != nil {
		t.Error("Expected connection to be nil initially")
	}
}

func TestSQLiteBasicOperations(t *testing.T) {
	db := newTestDB(t)

	t.Run("InitDB creates tables", func(t *testing.T) {
		err := db.InitDB()
		if err != nil {
			t.Fatalf(failedToInitDB, err)
		}

		if db.Get() == nil {
			t.Error("Expected database connection to be established")
		}
		if err := db.Get().Ping(); err != nil {
			t.Errorf("Failed to ping database: %v", err)
		}
	})

	t.Run("Verify tables are created", func(t *testing.T) {
		tables := []string{"leads", "page_views"}

		for _, table := range tables {
			query := "SELECT name FROM sqlite_master WHERE type='table' AND name=?"
			rows, err := db.Query(query, table)
			if err != nil {
				t.Errorf("Failed to query for table %s: %v", table, err)
				continue
			}

			if !rows.Next() {
				t.Errorf("Expected table %s to exist", table)
			}
			rows.Close()
		}
	})

	t.Run("Foreign keys are enabled", func(t *testing.T) {
		rows, err := db.Query("PRAGMA foreign_keys")
		if err != nil {
			t.Fatalf("Failed to check foreign keys: %v", err)
		}
		defer rows.Close()

		if !rows.Next() {
			t.Fatal("Expected foreign keys pragma result")
		}

		var foreignKeysEnabled int
		if err := rows.Scan(&foreignKeysEnabled); err != nil {
			t.Fatalf("Failed to scan foreign keys result: %v", err)
		}
		if foreignKeysEnabled != 1 {
			t.Error("Expected foreign keys to be enabled")
		}
	})
}

func TestSQLiteQueryAndExec(t *testing.T) {
	db := newTestDB(t)
	if err := db.InitDB(); err != nil {
		t.Fatalf(failedToInitDB, err)
	}

	t.Run("Exec inserts data", func(t *testing.T) {
		result, err := db.Exec(insertLead,
			"lead-1", "Jane Pilot", "jane@example.com", "CPL inquiry", "Looking for ground school dates")
		if err != nil {
			t.Fatalf("Failed to insert lead: %v", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			t.Errorf("Failed to get rows affected: %v", err)
		}
		if rowsAffected != 1 {
			t.Errorf("Expected 1 row affected, got %d", rowsAffected)
		}
	})

	t.Run("Query retrieves data", func(t *testing.T) {
		rows, err := db.Query("SELECT id, name, email FROM leads WHERE id = ?", "lead-1")
		if err != nil {
			t.Fatalf("Failed to query lead: %v", err)
		}
		defer rows.Close()

		if !rows.Next() {
			t.Fatal("Expected to find inserted lead")
		}

		var id, name, email string
		if err := rows.Scan(&id, &name, &email); err != nil {
			t.Fatalf("Failed to scan lead data: %v", err)
		}

		if id != "lead-1" {
			t.Errorf("Expected id 'lead-1', got %s", id)
		}
		if name != "Jane Pilot" {
			t.Errorf("Expected name 'Jane Pilot', got %s", name)
		}
		if email != "jane@example.com" {
			t.Errorf("Expected email 'jane@example.com', got %s", email)
		}
	})

	t.Run("Insert and query page views", func(t *testing.T) {
		_, err := db.Exec(`INSERT INTO page_views (session_id, path, referrer, utm_source)
			VALUES (?, ?, ?, ?)`,
			"sess-1", "/blog/first-solo", "https://google.com", "newsletter")
		if err != nil {
			t.Fatalf("Failed to insert page view: %v", err)
		}

		rows, err := db.Query("SELECT session_id, path, utm_source FROM page_views WHERE session_id = ?", "sess-1")
		if err != nil {
			t.Fatalf("Failed to query page view: %v", err)
		}
		defer rows.Close()

		if !rows.Next() {
			t.Fatal("Expected to find inserted page view")
		}

		var sessionID, path, utmSource string
		if err := rows.Scan(&sessionID, &path, &utmSource); err != nil {
			t.Fatalf("Failed to scan page view data: %v", err)
		}
		if path != "/blog/first-solo" {
			t.Errorf("Expected path '/blog/first-solo', got %s", path)
		}
		if utmSource != "newsletter" {
			t.Errorf("Expected utm_source 'newsletter', got %s", utmSource)
		}
	})
}

func TestSQLiteErrorHandling(t *testing.T) {
	t.Run("Invalid SQL query", func(t *testing.T) {
		db := newTestDB(t)
		if err := db.InitDB(); err != nil {
			t.Fatalf(failedToInitDB, err)
		}

		if _, err := db.Query("INVALID SQL SYNTAX"); err == nil {
			t.Error("Expected error for invalid SQL")
		}
	})

	t.Run("Invalid SQL exec", func(t *testing.T) {
		db := newTestDB(t)
		if err := db.InitDB(); err != nil {
			t.Fatalf(failedToInitDB, err)
		}

		if _, err := db.Exec("INVALID SQL SYNTAX"); err == nil {
			t.Error("Expected error for invalid SQL")
		}
	})

	t.Run("Constraint violation", func(t *testing.T) {
		db := newTestDB(t)
		if err := db.InitDB(); err != nil {
			t.Fatalf(failedToInitDB, err)
		}

		_, err := db.Exec(insertLead, "lead-dup", "A", "a@example.com", "s", "m")
		if err != nil {
			t.Fatalf("Failed to insert first lead: %v", err)
		}

		// Same primary key again.
		if _, err := db.Exec(insertLead, "lead-dup", "B", "b@example.com", "s", "m"); err == nil {
			t.Error("Expected constraint violation error for duplicate id")
		}
	})
}

func TestSQLiteClose(t *testing.T) {
	t.Run("Close initialized database", func(t *testing.T) {
		db := newTestDB(t)
		if err := db.InitDB(); err != nil {
			t.Fatalf(failedToInitDB, err)
		}

		if err := db.Close(); err != nil {
			t.Errorf("Failed to close database: %v", err)
		}
		if db.Get() != nil {
			if err := db.Get().Ping(); err == nil {
				t.Error("Expected connection to be closed")
			}
		}
	})

	t.Run("Close uninitialized database", func(t *testing.T) {
		db := NewSQLite("./unused.db")
		if err := db.Close(); err != nil {
			t.Errorf("Expected no error closing uninitialized database, got: %v", err)
		}
	})
}

func TestSQLiteGet(t *testing.T) {
	db := newTestDB(t)

	t.Run("Get before init returns nil", func(t *testing.T) {
		if db.Get() != nil {
			t.Error("Expected nil connection before initialization")
		}
	})

	t.Run("Get after init returns connection", func(t *testing.T) {
		if err := db.InitDB(); err != nil {
			t.Fatalf(failedToInitDB, err)
		}

		conn := db.Get()
		if conn == nil {
			t.Fatal("Expected non-nil connection after initialization")
		}
		if err := conn.Ping(); err != nil {
			t.Errorf("Connection ping failed: %v", err)
		}
	})
}

func TestDBInterface(t *testing.T) {
	var _ DB = (*SQLite)(nil)

	db := newTestDB(t)
	if err := db.InitDB(); err != nil {
		t.Fatalf("Interface InitDB failed: %v", err)
	}

	if db.Get() == nil {
		t.Error("Interface Get returned nil")
	}
	if _, err := db.Query(select1); err != nil {
		t.Errorf("Interface Query failed: %v", err)
	}
	if _, err := db.Exec(select1); err != nil {
		t.Errorf("Interface Exec failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Interface Close failed: %v", err)
	}
}
