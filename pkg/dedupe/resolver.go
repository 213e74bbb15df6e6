package dedupe

import (
	"context"

	"github.com/phuslu/log"
	"github.com/xhad/edms-dedupe/internal/models"
	"github.com/xhad/edms-dedupe/pkg/logging"
)

type ResolverConfig struct {
	Algorithm string
	// IsolateFailures abandons only the size bucket holding an unreadable
	// file instead of failing the whole run.
	IsolateFailures bool
	OnFile          func(doc models.Document)
	Logger          *log.Logger
}

type Resolver struct {
	config ResolverConfig
	hasher *Hasher
	logger *log.Logger
}

type Result struct {
	Groups  []models.DuplicateGroup
	Skipped []models.SkippedBucket
}

func NewResolver(config ResolverConfig) (*Resolver, error) {
	hasher, err := NewHasher(config.Algorithm)
	if err != nil {
		return nil, err
	}

	return &Resolver{
		config: config,
		hasher: hasher,
		logger: logging.OrDiscard(config.Logger),
	}, nil
}

func (r *Resolver) Algorithm() string {
	return r.hasher.Name()
}

// Resolve hashes every member of every size bucket and returns the
// documents that share a digest within their bucket. Groups come out in
// bucket order, and inside a bucket in order of first appearance.
func (r *Resolver) Resolve(ctx context.Context, sizes models.SizeGroups) (Result, error) {
	return r.resolve(ctx, sizes, nil)
}

func (r *Resolver) resolve(ctx context.Context, sizes models.SizeGroups, onFile func(models.Document)) (Result, error) {
	var result Result

	for _, size := range sizes.Sizes {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		groups, err := r.resolveBucket(ctx, sizes.Groups[size], onFile)
		if err != nil {
			if !r.config.IsolateFailures {
				return Result{}, err
			}
			r.logger.Warn().Int64("size", size).Err(err).Msg("skipping size bucket")
			result.Skipped = append(result.Skipped, models.SkippedBucket{Size: size, Err: err})
			continue
		}
		result.Groups = append(result.Groups, groups...)
	}

	return result, nil
}

func (r *Resolver) resolveBucket(ctx context.Context, docs []models.Document, onFile func(models.Document)) ([]models.DuplicateGroup, error) {
	hashed := make([]models.Document, len(docs))
	copy(hashed, docs)

	for i := range hashed {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		digest, err := r.hasher.HashFile(hashed[i].FilePath)
		if err != nil {
			return nil, &FileAccessError{Op: "read", Path: hashed[i].FilePath, DocumentID: hashed[i].ID, Err: err}
		}
		hashed[i].ContentHash = digest

		if r.config.OnFile != nil {
			r.config.OnFile(hashed[i])
		}
		if onFile != nil {
			onFile(hashed[i])
		}
	}

	return partitionByHash(hashed), nil
}

// partitionByHash splits docs into classes of equal ContentHash and keeps
// the classes with two or more members.
func partitionByHash(docs []models.Document) []models.DuplicateGroup {
	var order []string
	classes := make(map[string]models.DuplicateGroup)

	for _, doc := range docs {
		if _, seen := classes[doc.ContentHash]; !seen {
			order = append(order, doc.ContentHash)
		}
		classes[doc.ContentHash] = append(classes[doc.ContentHash], doc)
	}

	var groups []models.DuplicateGroup
	for _, digest := range order {
		if len(classes[digest]) >= 2 {
			groups = append(groups, classes[digest])
		}
	}
	return groups
}
