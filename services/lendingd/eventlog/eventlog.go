package eventlog

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"lukechampine.com/blake3"

	"lendingpool/core/types"
)

// Record is one committed protocol event.
type Record struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence   uint64    `gorm:"uniqueIndex"`
	Type       string    `gorm:"index"`
	Attributes string    `gorm:"type:text"`
	Digest     string    `gorm:"size:64"`
	CreatedAt  time.Time `gorm:"index"`
}

// TableName pins the journal table name.
func (Record) TableName() string { return "lending_events" }

// Decode returns the attribute map stored in the record.
func (r Record) Decode() (map[string]string, error) {
	attrs := map[string]string{}
	if strings.TrimSpace(r.Attributes) == "" {
		return attrs, nil
	}
	if err := json.Unmarshal([]byte(r.Attributes), &attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}

// Verify recomputes the digest of the stored attributes.
func (r Record) Verify() bool {
	attrs, err := r.Decode()
	if err != nil {
		return false
	}
	return Digest(r.Type, attrs) == r.Digest
}

// Config selects the journal database. DSN takes precedence and is opened
// with the postgres driver; otherwise SQLitePath is used.
type Config struct {
	DSN        string
	SQLitePath string
}

// Filter narrows List and ExportParquet.
type Filter struct {
	Type  string
	Since time.Time
	Until time.Time
	Limit int
}

// Journal persists events through gorm.
type Journal struct {
	db    *gorm.DB
	now   func() time.Time
	mu    sync.Mutex
	nextS uint64
}

// Open connects to the configured database and migrates the schema.
func Open(cfg Config) (*Journal, error) {
	var dialector gorm.Dialector
	switch {
	case strings.TrimSpace(cfg.DSN) != "":
		dialector = postgres.Open(strings.TrimSpace(cfg.DSN))
	case strings.TrimSpace(cfg.SQLitePath) != "":
		dialector = sqlite.Open(strings.TrimSpace(cfg.SQLitePath))
	default:
		return nil, errors.New("eventlog: dsn or sqlite path required")
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("eventlog: open: %w", err)
	}
	return New(db)
}

// New wraps an existing gorm handle.
func New(db *gorm.DB) (*Journal, error) {
	if db == nil {
		return nil, errors.New("eventlog: nil database")
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("eventlog: migrate: %w", err)
	}
	var last Record
	res := db.Order("sequence desc").Limit(1).Find(&last)
	if res.Error != nil {
		return nil, fmt.Errorf("eventlog: load sequence: %w", res.Error)
	}
	next := uint64(1)
	if res.RowsAffected > 0 {
		next = last.Sequence + 1
	}
	return &Journal{db: db, now: time.Now, nextS: next}, nil
}

// SetClock overrides the timestamp source.
func (j *Journal) SetClock(now func() time.Time) {
	if now != nil {
		j.now = now
	}
}

// Digest hashes the event type and attributes in key order with blake3. Every
// field is length-prefixed so separators inside values cannot collide.
func Digest(kind string, attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for key := range attrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	h := blake3.New(32, nil)
	writeField(h, kind)
	for _, key := range keys {
		writeField(h, key)
		writeField(h, attrs[key])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeField(w io.Writer, value string) {
	var size [8]byte
	binary.BigEndian.PutUint64(size[:], uint64(len(value)))
	_, _ = w.Write(size[:])
	_, _ = io.WriteString(w, value)
}

// Record appends evts in one database transaction.
func (j *Journal) Record(ctx context.Context, evts []*types.Event) error {
	if len(evts) == 0 {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now().UTC()
	rows := make([]Record, 0, len(evts))
	seq := j.nextS
	for _, evt := range evts {
		if evt == nil {
			continue
		}
		attrs := evt.Attributes
		if attrs == nil {
			attrs = map[string]string{}
		}
		encoded, err := json.Marshal(attrs)
		if err != nil {
			return fmt.Errorf("eventlog: encode %s: %w", evt.Type, err)
		}
		id, err := uuid.NewRandom()
		if err != nil {
			return err
		}
		rows = append(rows, Record{
			ID:         id,
			Sequence:   seq,
			Type:       evt.Type,
			Attributes: string(encoded),
			Digest:     Digest(evt.Type, attrs),
			CreatedAt:  now,
		})
		seq++
	}
	if len(rows) == 0 {
		return nil
	}
	if err := j.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("eventlog: insert: %w", err)
	}
	j.nextS = seq
	return nil
}

// List returns journal records in commit order.
func (j *Journal) List(ctx context.Context, filter Filter) ([]Record, error) {
	query := j.db.WithContext(ctx).Model(&Record{})
	if kind := strings.TrimSpace(filter.Type); kind != "" {
		query = query.Where("type = ?", kind)
	}
	if !filter.Since.IsZero() {
		query = query.Where("created_at >= ?", filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		query = query.Where("created_at < ?", filter.Until.UTC())
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	var out []Record
	if err := query.Order("sequence asc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("eventlog: list: %w", err)
	}
	return out, nil
}

type parquetRow struct {
	ID         string `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Sequence   int64  `parquet:"name=sequence, type=INT64"`
	Type       string `parquet:"name=type, type=BYTE_ARRAY, convertedtype=UTF8"`
	Attributes string `parquet:"name=attributes, type=BYTE_ARRAY, convertedtype=UTF8"`
	Digest     string `parquet:"name=digest, type=BYTE_ARRAY, convertedtype=UTF8"`
	CreatedAt  string `parquet:"name=created_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ExportParquet writes the records matching filter to path and returns the
// number of rows written.
func (j *Journal) ExportParquet(ctx context.Context, path string, filter Filter) (int, error) {
	records, err := j.List(ctx, filter)
	if err != nil {
		return 0, err
	}
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("eventlog: create parquet: %w", err)
	}
	pw, err := writer.NewParquetWriter(writerfile.NewWriterFile(file), new(parquetRow), 1)
	if err != nil {
		file.Close()
		return 0, fmt.Errorf("eventlog: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, rec := range records {
		row := &parquetRow{
			ID:         rec.ID.String(),
			Sequence:   int64(rec.Sequence),
			Type:       rec.Type,
			Attributes: rec.Attributes,
			Digest:     rec.Digest,
			CreatedAt:  rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			file.Close()
			return 0, fmt.Errorf("eventlog: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return 0, fmt.Errorf("eventlog: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return 0, fmt.Errorf("eventlog: close parquet file: %w", err)
	}
	return len(records), nil
}

// Close releases the database handle.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
