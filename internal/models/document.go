package models

// Document is a single catalog entry of the document server, tied to the
// file that backs its latest version on local storage.
type Document struct {
	ID                int
	FilePath          string
	DateAdded         string
	Description       string
	DocumentTypeLabel string
	Label             string
	Size              int64
	ContentHash       string
}

type DuplicateGroup []Document

// SizeGroups maps a file size to the documents sharing it. Sizes keeps the
// order in which each size was first seen.
type SizeGroups struct {
	Sizes  []int64
	Groups map[int64][]Document
}

func (g SizeGroups) Len() int {
	return len(g.Sizes)
}

type SkippedBucket struct {
	Size int64
	Err  error
}
