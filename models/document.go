package models

import (
	"context"
	"strings"

	"github.com/aivisionaries/hydropay_backend/config"
	"github.com/aivisionaries/hydropay_backend/utils"
)

const (
	DocumentReferenceApplication = "APPLICATION"
	DocumentReferenceAudit       = "AUDIT"
	DocumentReferenceMilestone   = "MILESTONE"
)

// Document stores only the relative object path returned by the file store;
// the bytes live in GCS.
type Document struct {
	ID            int    `gorm:"primary_key" json:"id"`
	DocumentUrl   string `gorm:"size:500;not null" json:"document_url"`
	ReferenceType string `gorm:"size:20;index:idx_doc_ref,priority:1" json:"reference_type"`
	ReferenceID   int    `gorm:"index:idx_doc_ref,priority:2" json:"reference_id"`
}

type NewDocument struct {
	DocumentUrl string `json:"document_url" binding:"required,max=500"`
}

func (input NewDocument) MapInput(referenceType string, referenceId int) (*Document, error) {
	if strings.TrimSpace(input.DocumentUrl) == "" {
		return nil, utils.ErrorValidation
	}
	return &Document{
		DocumentUrl:   input.DocumentUrl,
		ReferenceType: referenceType,
		ReferenceID:   referenceId,
	}, nil
}

func mapNewDocuments(input []*NewDocument, referenceType string, referenceId int) ([]*Document, error) {
	var documents []*Document
	for _, i := range input {
		d, err := i.MapInput(referenceType, referenceId)
		if err != nil {
			return nil, err
		}
		documents = append(documents, d)
	}
	return documents, nil
}

func ListDocuments(ctx context.Context, referenceType string, referenceId int) ([]*Document, error) {
	db := config.GetDB()
	var docs []*Document
	err := db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", referenceType, referenceId).
		Order("id ASC").Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}
