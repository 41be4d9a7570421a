package docstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/zerochrono/copilot-backend/internal/graph"
	"github.com/zerochrono/copilot-backend/internal/platform/logger"
)

const snapshotID = "current"

type documentRecord struct {
	ID        string         `gorm:"column:id;primaryKey"`
	Payload   datatypes.JSON `gorm:"column:payload"`
	UpdatedAt time.Time      `gorm:"column:updated_at"`
}

func (documentRecord) TableName() string { return "graph_documents" }

// SQLStore keeps the document as a single JSON row in graph_documents.
type SQLStore struct {
	db  *gorm.DB
	log *logger.Logger
}

func OpenSQL(kind, dsn string, logg *logger.Logger) (*SQLStore, error) {
	if logg == nil {
		logg = logger.Nop()
	}
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("docstore: %s dsn required", kind)
	}

	var dialector gorm.Dialector
	switch kind {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("docstore: unsupported sql backend %q", kind)
	}

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("docstore: connect %s: %w", kind, err)
	}
	return NewSQLStore(db, logg)
}

// NewSQLStore migrates graph_documents on an existing connection.
func NewSQLStore(db *gorm.DB, logg *logger.Logger) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("docstore: db required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if err := db.AutoMigrate(&documentRecord{}); err != nil {
		return nil, fmt.Errorf("docstore: migrate graph_documents: %w", err)
	}
	return &SQLStore{db: db, log: logg.With("service", "GraphDocumentSQLStore")}, nil
}

func (s *SQLStore) Load(ctx context.Context) (*graph.Document, error) {
	var rec documentRecord
	err := s.db.WithContext(ctx).Where("id = ?", snapshotID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: load: %w", err)
	}
	return decodeDocument([]byte(rec.Payload))
}

func (s *SQLStore) Save(ctx context.Context, doc *graph.Document) error {
	b, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	rec := documentRecord{ID: snapshotID, Payload: datatypes.JSON(b), UpdatedAt: time.Now().UTC()}
	if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return fmt.Errorf("docstore: save: %w", err)
	}
	s.log.Debug("graph document saved", "bytes", len(b))
	return nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
