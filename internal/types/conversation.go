package types

import (
  "time"
  "gorm.io/gorm"
  "gorm.io/datatypes"
  "github.com/google/uuid"
)

type Conversation struct {
  gorm.Model
  ID            uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  UserID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
  User          *User           `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
  Title         string          `gorm:"column:title" json:"title"`
  ModelID       string          `gorm:"column:model_id" json:"model_id"`
  Context       datatypes.JSON  `gorm:"type:jsonb;column:context" json:"context"`
  Messages      datatypes.JSON  `gorm:"type:jsonb;column:messages" json:"messages"`
  IsActive      bool            `gorm:"not null;default:true;column:is_active;index" json:"is_active"`
  LastActivity  time.Time       `gorm:"not null;default:now();column:last_activity" json:"last_activity"`
  CreatedAt     time.Time       `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt     time.Time       `gorm:"not null;default:now()" json:"updated_at"`
}

func (Conversation) TableName() string {
  return "conversation"
}
