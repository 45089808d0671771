package types

import (
  "time"
  "gorm.io/gorm"
  "github.com/google/uuid"
)

const (
  CaptureStatusActive   = "active"
  CaptureStatusDeleted  = "deleted"
)

const (
  ProcessingStatusPending     = "pending"
  ProcessingStatusProcessing  = "processing"
  ProcessingStatusCompleted   = "completed"
  ProcessingStatusFailed      = "failed"
)

type Capture struct {
  gorm.Model
  ID                uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  OwnerID           uuid.UUID       `gorm:"type:uuid;not null;index" json:"owner_id"`
  Owner             *User           `gorm:"constraint:OnDelete:CASCADE;foreignKey:OwnerID;references:ID" json:"owner,omitempty"`
  Title             string          `gorm:"column:title" json:"title"`
  URL               string          `gorm:"column:url" json:"url"`
  ContentType       string          `gorm:"column:content_type;index" json:"content_type"`
  CleanText         string          `gorm:"column:clean_text" json:"clean_text"`
  Status            string          `gorm:"not null;default:'active';column:status;index" json:"status"`
  ProcessingStatus  string          `gorm:"not null;default:'pending';column:processing_status" json:"processing_status"`
  ProcessingError   string          `gorm:"column:processing_error" json:"processing_error,omitempty"`
  Bookmarked        bool            `gorm:"not null;default:false;column:bookmarked;index" json:"bookmarked"`
  CreatedAt         time.Time       `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt         time.Time       `gorm:"not null;default:now()" json:"updated_at"`
}

func (Capture) TableName() string {
  return "capture"
}
