package datarecording

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/fatih/structs"
	"github.com/tebeka/atexit"
)

// RecorderConfig selects and configures a DataRecorder backend.
type RecorderConfig struct {
	// Type is "sqlite" (the default) or "clickhouse".
	Type string

	// Path is the SQLite file name without the extension.
	Path string

	// ConnStr is a ClickHouse DSN, for example
	// clickhouse://localhost:9000/traces?username=default.
	// When empty, the individual fields below are used.
	ConnStr  string
	Host     string
	Port     int
	Database string
	Username string
	Password string

	// BatchSize is the number of buffered entries that triggers a flush.
	BatchSize int
}

// NewDataRecorderWithConfig creates the DataRecorder described by cfg.
func NewDataRecorderWithConfig(cfg RecorderConfig) (DataRecorder, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "sqlite", "sqlite3":
		w := newSQLiteWriter(cfg.Path)
		if cfg.BatchSize > 0 {
			w.batchSize = cfg.BatchSize
		}

		w.Init()
		atexit.Register(func() { _ = w.Flush() })

		return w, nil
	case "clickhouse":
		return newClickHouseWriter(cfg)
	default:
		return nil, fmt.Errorf("datarecording: unknown recorder type %q", cfg.Type)
	}
}

func clickHouseOptions(cfg RecorderConfig) (*clickhouse.Options, error) {
	if cfg.ConnStr != "" {
		return clickhouse.ParseDSN(cfg.ConnStr)
	}

	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 9000
	}

	return &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", host, port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:      time.Second * 30,
		MaxOpenConns:     5,
		MaxIdleConns:     5,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
	}, nil
}

// clickHouseWriter buffers entries and sends them to ClickHouse in
// batches, one batch per table.
type clickHouseWriter struct {
	conn       clickhouse.Conn
	mu         sync.Mutex
	tables     map[string]*table
	batchSize  int
	entryCount int
}

func newClickHouseWriter(cfg RecorderConfig) (*clickHouseWriter, error) {
	opts, err := clickHouseOptions(cfg)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse options: %w", err)
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	w := &clickHouseWriter{
		conn:      conn,
		tables:    make(map[string]*table),
		batchSize: cfg.BatchSize,
	}
	if w.batchSize <= 0 {
		w.batchSize = defaultBatchSize
	}

	atexit.Register(func() { _ = w.Flush() })

	return w, nil
}

func clickHouseColumnType(kind reflect.Kind) string {
	switch kind {
	case reflect.Bool:
		return "Bool"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "Int64"
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64:
		return "UInt64"
	case reflect.Float32, reflect.Float64:
		return "Float64"
	default:
		return "String"
	}
}

// clickHouseColumns returns the column definitions of a table that
// stores entries shaped like sample.
func clickHouseColumns(sample any) []string {
	t := reflect.TypeOf(sample)
	columns := make([]string, 0, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}

		columns = append(columns,
			fmt.Sprintf("%s %s", f.Name, clickHouseColumnType(f.Type.Kind())))
	}

	return columns
}

// clickHouseValues widens the fields of entry to the column types picked
// by clickHouseColumnType.
func clickHouseValues(entry any) []any {
	fields := structs.Fields(entry)
	values := make([]any, 0, len(fields))

	for _, f := range fields {
		if !f.IsExported() {
			continue
		}

		v := reflect.ValueOf(f.Value())
		switch v.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
			reflect.Int64:
			values = append(values, v.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
			reflect.Uint64:
			values = append(values, v.Uint())
		case reflect.Float32, reflect.Float64:
			values = append(values, v.Float())
		default:
			values = append(values, f.Value())
		}
	}

	return values
}

func (w *clickHouseWriter) CreateTable(tableName string, sampleEntry any) {
	if err := checkStructFields(sampleEntry); err != nil {
		panic(err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.tables[tableName]; exists {
		panic(fmt.Sprintf("table %s already exists", tableName))
	}

	query := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (%s) ENGINE = MergeTree() ORDER BY tuple()",
		tableName, strings.Join(clickHouseColumns(sampleEntry), ", "))

	if err := w.conn.Exec(context.Background(), query); err != nil {
		panic(fmt.Errorf("create table %s: %w", tableName, err))
	}

	w.tables[tableName] = &table{
		structType: reflect.TypeOf(sampleEntry),
		columns:    structs.Names(sampleEntry),
	}
}

func (w *clickHouseWriter) InsertData(tableName string, entry any) {
	w.mu.Lock()

	table, exists := w.tables[tableName]
	if !exists {
		w.mu.Unlock()
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != table.structType {
		w.mu.Unlock()
		panic(fmt.Sprintf("table %s stores %s, not %T",
			tableName, table.structType, entry))
	}

	table.entries = append(table.entries, entry)
	w.entryCount++
	full := w.entryCount >= w.batchSize

	w.mu.Unlock()

	if full {
		if err := w.Flush(); err != nil {
			panic(err)
		}
	}
}

func (w *clickHouseWriter) ListTables() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	tables := make([]string, 0, len(w.tables))
	for name := range w.tables {
		tables = append(tables, name)
	}

	sort.Strings(tables)

	return tables
}

func (w *clickHouseWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.entryCount == 0 {
		return nil
	}

	ctx := context.Background()

	for name, table := range w.tables {
		if len(table.entries) == 0 {
			continue
		}

		if err := w.flushTable(ctx, name, table); err != nil {
			return err
		}
	}

	w.entryCount = 0

	return nil
}

func (w *clickHouseWriter) flushTable(
	ctx context.Context,
	tableName string,
	table *table,
) error {
	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO "+tableName)
	if err != nil {
		return fmt.Errorf("prepare batch for %s: %w", tableName, err)
	}

	for _, entry := range table.entries {
		if err := batch.Append(clickHouseValues(entry)...); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append to %s: %w", tableName, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch for %s: %w", tableName, err)
	}

	table.entries = table.entries[:0]

	return nil
}

func (w *clickHouseWriter) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}

	return w.conn.Close()
}
