package dedupe

import (
	"context"
	"errors"
	"fmt"

	"github.com/phuslu/log"
	"github.com/xhad/edms-dedupe/internal/models"
	"github.com/xhad/edms-dedupe/internal/types"
	"github.com/xhad/edms-dedupe/pkg/logging"
)

type Stage int

const (
	StageFetch Stage = iota
	StageSize
	StageHash
)

func (s Stage) String() string {
	switch s {
	case StageFetch:
		return "fetch"
	case StageSize:
		return "size"
	case StageHash:
		return "hash"
	default:
		return "unknown"
	}
}

type FinderConfig struct {
	Lister   types.DocumentLister
	Resolver *Resolver
	// OnStage is called when a stage starts, with the number of items it
	// will process (-1 when unknown up front).
	OnStage func(stage Stage, total int)
	// OnProgress is called once per item processed in the current stage.
	OnProgress func(stage Stage)
	Logger     *log.Logger
}

// Finder runs the whole detection pipeline: list the catalog, size every
// file, then hash the files that share a size.
type Finder struct {
	config FinderConfig
	logger *log.Logger
}

var _ types.DuplicateFinder = (*Finder)(nil)

// Report carries everything a run found, including buckets that were
// skipped under the isolate policy.
type Report struct {
	Documents  int
	SizeGroups int
	Groups     []models.DuplicateGroup
	Skipped    []models.SkippedBucket
}

func NewWithConfig(config FinderConfig) (*Finder, error) {
	if config.Lister == nil {
		return nil, errors.New("finder: document lister is required")
	}
	if config.Resolver == nil {
		resolver, err := NewResolver(ResolverConfig{Logger: config.Logger})
		if err != nil {
			return nil, err
		}
		config.Resolver = resolver
	}

	return &Finder{
		config: config,
		logger: logging.OrDiscard(config.Logger),
	}, nil
}

// Find returns the duplicate groups of the catalog.
func (f *Finder) Find(ctx context.Context) ([]models.DuplicateGroup, error) {
	report, err := f.Run(ctx)
	if err != nil {
		return nil, err
	}
	return report.Groups, nil
}

func (f *Finder) Run(ctx context.Context) (Report, error) {
	f.stage(StageFetch, -1)
	documents, err := f.config.Lister.ListDocuments(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("listing documents: %w", err)
	}

	f.stage(StageSize, len(documents))
	sized, err := AttachSizes(documents, func() { f.progress(StageSize) })
	if err != nil {
		return Report{}, fmt.Errorf("sizing documents: %w", err)
	}
	sizeGroups := GroupBySize(sized)
	f.logger.Info().Int("documents", len(sized)).Int("size_groups", sizeGroups.Len()).Msg("size grouping done")

	toHash := 0
	for _, size := range sizeGroups.Sizes {
		toHash += len(sizeGroups.Groups[size])
	}

	f.stage(StageHash, toHash)
	result, err := f.config.Resolver.resolve(ctx, sizeGroups, func(models.Document) { f.progress(StageHash) })
	if err != nil {
		return Report{}, fmt.Errorf("hashing documents: %w", err)
	}
	f.logger.Info().Int("groups", len(result.Groups)).Int("skipped", len(result.Skipped)).Msg("content hashing done")

	return Report{
		Documents:  len(sized),
		SizeGroups: sizeGroups.Len(),
		Groups:     result.Groups,
		Skipped:    result.Skipped,
	}, nil
}

func (f *Finder) Algorithm() string {
	return f.config.Resolver.Algorithm()
}

func (f *Finder) stage(stage Stage, total int) {
	f.logger.Debug().Str("stage", stage.String()).Int("total", total).Msg("stage started")
	if f.config.OnStage != nil {
		f.config.OnStage(stage, total)
	}
}

func (f *Finder) progress(stage Stage) {
	if f.config.OnProgress != nil {
		f.config.OnProgress(stage)
	}
}
