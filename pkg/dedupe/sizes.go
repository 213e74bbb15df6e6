package dedupe

import (
	"errors"
	"os"

	"github.com/xhad/edms-dedupe/internal/models"
)

// AttachSizes returns a copy of docs with Size read from each file on disk.
// The first file that cannot be stat'ed stops the whole pass. progress, if
// not nil, is called once per sized document.
func AttachSizes(docs []models.Document, progress func()) ([]models.Document, error) {
	sized := make([]models.Document, len(docs))
	copy(sized, docs)

	for i := range sized {
		size, err := fileSize(sized[i].FilePath)
		if err != nil {
			return nil, &FileAccessError{Op: "stat", Path: sized[i].FilePath, DocumentID: sized[i].ID, Err: err}
		}
		sized[i].Size = size

		if progress != nil {
			progress()
		}
	}

	return sized, nil
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, errors.New("is a directory")
	}
	return info.Size(), nil
}

// GroupBySize buckets docs by Size and keeps only sizes shared by at least
// two documents. Bucket order follows the first appearance of each size,
// members keep their input order.
func GroupBySize(docs []models.Document) models.SizeGroups {
	var order []int64
	buckets := make(map[int64][]models.Document)

	for _, doc := range docs {
		if _, seen := buckets[doc.Size]; !seen {
			order = append(order, doc.Size)
		}
		buckets[doc.Size] = append(buckets[doc.Size], doc)
	}

	groups := models.SizeGroups{Groups: make(map[int64][]models.Document)}
	for _, size := range order {
		if len(buckets[size]) < 2 {
			continue
		}
		groups.Sizes = append(groups.Sizes, size)
		groups.Groups[size] = buckets[size]
	}

	return groups
}
