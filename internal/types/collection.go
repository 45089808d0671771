package types

import (
  "time"
  "gorm.io/gorm"
  "gorm.io/datatypes"
  "github.com/google/uuid"
)

type Collection struct {
  gorm.Model
  ID          uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  OwnerID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"owner_id"`
  Owner       *User           `gorm:"constraint:OnDelete:CASCADE;foreignKey:OwnerID;references:ID" json:"owner,omitempty"`
  Name        string          `gorm:"not null;column:name" json:"name"`
  Description string          `gorm:"column:description" json:"description,omitempty"`
  CaptureIDs  datatypes.JSON  `gorm:"type:jsonb;column:capture_ids" json:"capture_ids"`
  CreatedAt   time.Time       `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt   time.Time       `gorm:"not null;default:now()" json:"updated_at"`
}

func (Collection) TableName() string {
  return "collection"
}
