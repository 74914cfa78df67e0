// Package datarecording stores run traces in a database.
package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/structs"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// DataRecorder is a backend that can record and store data.
//
// Entries are flat structs whose exported fields become the table columns.
type DataRecorder interface {
	// CreateTable creates a new table whose columns follow sampleEntry.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers an entry for a table that already exists.
	InsertData(tableName string, entry any)

	// ListTables returns the names of all tables, sorted.
	ListTables() []string

	// Flush writes all the buffered entries into the database.
	Flush() error

	// Close flushes and releases the database.
	Close() error
}

// ErrInvalidEntry is returned for entries that cannot become table rows.
var ErrInvalidEntry = errors.New("datarecording: entry must be a flat struct")

const defaultBatchSize = 100000

// New creates a DataRecorder that writes into the SQLite file
// path + ".sqlite3". An empty path picks a unique name.
func New(path string) DataRecorder {
	w := newSQLiteWriter(path)
	w.Init()

	atexit.Register(func() { _ = w.Flush() })

	return w
}

// NewWithDB creates a DataRecorder that writes into an open database.
func NewWithDB(db *sql.DB) DataRecorder {
	w := newSQLiteWriter("")
	w.DB = db

	atexit.Register(func() { _ = w.Flush() })

	return w
}

type table struct {
	structType reflect.Type
	columns    []string
	entries    []any
}

// sqliteWriter is the writer that writes data into SQLite database.
type sqliteWriter struct {
	*sql.DB

	dbName     string
	tables     map[string]*table
	batchSize  int
	entryCount int
}

func newSQLiteWriter(path string) *sqliteWriter {
	return &sqliteWriter{
		dbName:    path,
		batchSize: defaultBatchSize,
		tables:    make(map[string]*table),
	}
}

// Init establishes a connection to the database.
func (t *sqliteWriter) Init() {
	if t.dbName == "" {
		t.dbName = "simcheck_trace_" + xid.New().String()
	}

	filename := t.dbName + ".sqlite3"

	_, err := os.Stat(filename)
	if err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	fmt.Fprintf(os.Stderr, "Database created for recording: %s\n", filename)

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	t.DB = db
}

func isAllowedKind(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

func checkStructFields(entry any) error {
	if entry == nil || reflect.TypeOf(entry).Kind() != reflect.Struct {
		return ErrInvalidEntry
	}

	types := reflect.TypeOf(entry)
	for i := 0; i < types.NumField(); i++ {
		field := types.Field(i)
		if !isAllowedKind(field.Type.Kind()) {
			return fmt.Errorf("%w: field %s is %s",
				ErrInvalidEntry, field.Name, field.Type.Kind())
		}
	}

	return nil
}

func (t *sqliteWriter) CreateTable(tableName string, sampleEntry any) {
	err := checkStructFields(sampleEntry)
	if err != nil {
		panic(err)
	}

	if _, exists := t.tables[tableName]; exists {
		panic(fmt.Sprintf("table %s already exists", tableName))
	}

	columns := structs.Names(sampleEntry)
	createTableSQL := `CREATE TABLE ` + tableName +
		` (` + "\n\t" + strings.Join(columns, ", \n\t") + "\n" + `);`
	t.mustExecute(createTableSQL)

	t.tables[tableName] = &table{
		structType: reflect.TypeOf(sampleEntry),
		columns:    columns,
	}
}

func (t *sqliteWriter) InsertData(tableName string, entry any) {
	table, exists := t.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != table.structType {
		panic(fmt.Sprintf("table %s stores %s, not %T",
			tableName, table.structType, entry))
	}

	table.entries = append(table.entries, entry)

	t.entryCount++
	if t.entryCount >= t.batchSize {
		if err := t.Flush(); err != nil {
			panic(err)
		}
	}
}

func (t *sqliteWriter) ListTables() []string {
	tables := make([]string, 0, len(t.tables))
	for table := range t.tables {
		tables = append(tables, table)
	}

	sort.Strings(tables)

	return tables
}

func (t *sqliteWriter) Flush() error {
	if t.entryCount == 0 {
		return nil
	}

	tx, err := t.Begin()
	if err != nil {
		return err
	}

	for tableName, table := range t.tables {
		if len(table.entries) == 0 {
			continue
		}

		err = t.flushTable(tx, tableName, table)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	t.entryCount = 0

	return tx.Commit()
}

func (t *sqliteWriter) flushTable(tx *sql.Tx, tableName string, table *table) error {
	placeholders := make([]string, len(table.columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}

	stmt, err := tx.Prepare("INSERT INTO " + tableName +
		" VALUES (" + strings.Join(placeholders, ", ") + ")")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, entry := range table.entries {
		_, err = stmt.Exec(structs.Values(entry)...)
		if err != nil {
			return fmt.Errorf("insert into %s: %w", tableName, err)
		}
	}

	table.entries = nil

	return nil
}

func (t *sqliteWriter) Close() error {
	if err := t.Flush(); err != nil {
		return err
	}

	return t.DB.Close()
}

func (t *sqliteWriter) mustExecute(query string) sql.Result {
	res, err := t.Exec(query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute: %s\n", query)
		panic(err)
	}

	return res
}
