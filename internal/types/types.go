package types

import (
	"context"

	"github.com/xhad/edms-dedupe/internal/models"
)

// Core interfaces
type DocumentLister interface {
	ListDocuments(ctx context.Context) ([]models.Document, error)
}

type DocumentDeleter interface {
	DeleteDocument(ctx context.Context, id int) (bool, error)
}

type DuplicateFinder interface {
	Find(ctx context.Context) ([]models.DuplicateGroup, error)
}
