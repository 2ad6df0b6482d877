package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/flowmarket/genflow/pkg/genflow/workflow"
)

// conversationRecord is the gorm row shape for a conversation.
type conversationRecord struct {
	ID        string         `gorm:"type:uuid;primaryKey"`
	UserID    string         `gorm:"type:uuid;not null;index"`
	Messages  datatypes.JSON `gorm:"type:jsonb;not null"`
	Workflow  datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt time.Time      `gorm:"column:updated_at;not null"`
}

// TableName sets the gorm table name.
func (conversationRecord) TableName() string {
	return "ai_conversations"
}

// PostgresStore persists conversations to PostgreSQL via gorm.
// It is suitable for multi-process production deployments.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore connects to PostgreSQL and migrates the
// conversations table.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := db.AutoMigrate(&conversationRecord{}); err != nil {
		return nil, fmt.Errorf("migrate conversations: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreWithDB wraps an existing gorm connection.
// Useful when the conversation store and credit ledger share one pool.
func NewPostgresStoreWithDB(db *gorm.DB) (*PostgresStore, error) {
	if err := db.AutoMigrate(&conversationRecord{}); err != nil {
		return nil, fmt.Errorf("migrate conversations: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Load implements Store.
func (s *PostgresStore) Load(ctx context.Context, id, userID string) (*Conversation, error) {
	var rec conversationRecord
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	return recordToConversation(&rec)
}

// Save implements Store.
func (s *PostgresStore) Save(ctx context.Context, c *Conversation) error {
	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = uuid.NewString()
		c.CreatedAt = now
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	rec, err := conversationToRecord(c)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"messages", "workflow", "updated_at"}),
		}).
		Create(rec).Error
	if err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

// ListByUser implements Store.
func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]*Conversation, error) {
	var recs []conversationRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	result := make([]*Conversation, 0, len(recs))
	for i := range recs {
		c, err := recordToConversation(&recs[i])
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, nil
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context, id, userID string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&conversationRecord{})
	if res.Error != nil {
		return fmt.Errorf("delete conversation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// conversationToRecord encodes a conversation into its row shape.
func conversationToRecord(c *Conversation) (*conversationRecord, error) {
	messages, err := json.Marshal(c.Messages)
	if err != nil {
		return nil, fmt.Errorf("encode messages: %w", err)
	}

	rec := &conversationRecord{
		ID:        c.ID,
		UserID:    c.UserID,
		Messages:  datatypes.JSON(messages),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if c.Workflow != nil {
		wf, err := json.Marshal(c.Workflow)
		if err != nil {
			return nil, fmt.Errorf("encode workflow: %w", err)
		}
		rec.Workflow = datatypes.JSON(wf)
	}
	return rec, nil
}

// recordToConversation decodes a row into a conversation.
func recordToConversation(rec *conversationRecord) (*Conversation, error) {
	c := &Conversation{
		ID:        rec.ID,
		UserID:    rec.UserID,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if err := json.Unmarshal(rec.Messages, &c.Messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	if len(rec.Workflow) > 0 {
		c.Workflow = &workflow.Document{}
		if err := json.Unmarshal(rec.Workflow, c.Workflow); err != nil {
			return nil, fmt.Errorf("decode workflow: %w", err)
		}
	}
	return c, nil
}
