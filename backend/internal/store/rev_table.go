package store

import (
	"context"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"noteserver/backend/internal/revision"
)

// RevisionRecord is the rev_table row. (doc_id, rev_id) is unique; a replayed
// save of the same revision is a no-op.
type RevisionRecord struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	DocID     string `gorm:"column:doc_id;size:64;uniqueIndex:idx_doc_rev"`
	BaseRevID int64  `gorm:"column:base_rev_id"`
	RevID     int64  `gorm:"column:rev_id;uniqueIndex:idx_doc_rev"`
	Data      []byte `gorm:"column:data"`
	MD5       string `gorm:"column:md5;size:32"`
	State     int64  `gorm:"column:state"`
	Ty        int64  `gorm:"column:ty"`
	CreatedAt time.Time
}

func (RevisionRecord) TableName() string { return "rev_table" }

// RevisionLog is the durable revision store on MySQL via gorm.
type RevisionLog struct{ db *gorm.DB }

func NewRevisionLog(db *gorm.DB) *RevisionLog {
	return &RevisionLog{db: db}
}

func (l *RevisionLog) Migrate() error {
	return l.db.AutoMigrate(&RevisionRecord{})
}

func (l *RevisionLog) SaveRevision(ctx context.Context, rev revision.Revision, state revision.RevState) error {
	rec := RevisionRecord{
		DocID:     rev.DocID,
		BaseRevID: rev.BaseRevID,
		RevID:     rev.RevID,
		Data:      rev.DeltaData,
		MD5:       rev.MD5,
		State:     int64(state),
		Ty:        int64(rev.Ty),
	}
	err := l.db.WithContext(ctx).Create(&rec).Error
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return nil
	}
	return err
}

// ListSince returns revisions with rev_id past fromRevID in sequence order.
// limit <= 0 means no limit.
func (l *RevisionLog) ListSince(ctx context.Context, docID string, fromRevID int64, limit int) ([]revision.Revision, error) {
	q := l.db.WithContext(ctx).
		Where("doc_id = ? AND rev_id > ?", docID, fromRevID).
		Order("rev_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []RevisionRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]revision.Revision, 0, len(recs))
	for _, rec := range recs {
		out = append(out, revision.Revision{
			DocID:     rec.DocID,
			BaseRevID: rec.BaseRevID,
			RevID:     rec.RevID,
			DeltaData: rec.Data,
			MD5:       rec.MD5,
			Ty:        revision.RevTypeFrom(int(rec.Ty)),
		})
	}
	return out, nil
}

func (l *RevisionLog) MarkAcked(ctx context.Context, docID string, revID int64) error {
	return l.db.WithContext(ctx).
		Model(&RevisionRecord{}).
		Where("doc_id = ? AND rev_id = ?", docID, revID).
		Update("state", int64(revision.StateAcked)).Error
}
