package selector

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/phuslu/log"
	"github.com/xhad/edms-dedupe/internal/models"
	"github.com/xhad/edms-dedupe/internal/types"
	"github.com/xhad/edms-dedupe/pkg/logging"
)

// ErrInputClosed is returned when the operator input ends before every
// group has been decided.
var ErrInputClosed = errors.New("input closed before all groups were processed")

type State int

const (
	AwaitingChoice State = iota
	Deleting
	Done
)

func (s State) String() string {
	switch s {
	case AwaitingChoice:
		return "awaiting-choice"
	case Deleting:
		return "deleting"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

type SelectorConfig struct {
	Deleter types.DocumentDeleter
	In      io.Reader
	Out     io.Writer
	// DryRun reports what would be deleted without calling Deleter.
	DryRun bool
	// Color forces colorized output on or off. Off by default so that
	// piped output stays plain.
	Color   bool
	OnState func(group int, state State)
	Logger  *log.Logger
}

type Selector struct {
	config SelectorConfig
	in     *bufio.Reader
	out    io.Writer
	logger *log.Logger

	label   *color.Color
	date    *color.Color
	id      *color.Color
	docType *color.Color
	problem *color.Color
	success *color.Color
}

type Summary struct {
	Groups         int
	Kept           int
	Deleted        int
	Failed         int
	WouldDelete    int
	ReclaimedBytes int64
}

func (s Summary) String() string {
	return fmt.Sprintf("groups=%d kept=%d deleted=%d failed=%d would_delete=%d reclaimed=%s",
		s.Groups, s.Kept, s.Deleted, s.Failed, s.WouldDelete, FormatSize(s.ReclaimedBytes))
}

func NewWithConfig(config SelectorConfig) (*Selector, error) {
	if config.Deleter == nil && !config.DryRun {
		return nil, errors.New("selector: deleter is required")
	}
	if config.In == nil {
		return nil, errors.New("selector: input is required")
	}
	if config.Out == nil {
		config.Out = io.Discard
	}

	s := &Selector{
		config:  config,
		in:      bufio.NewReader(config.In),
		out:     config.Out,
		logger:  logging.OrDiscard(config.Logger),
		label:   color.New(color.FgWhite),
		date:    color.New(color.FgCyan),
		id:      color.New(color.FgBlue),
		docType: color.New(color.FgCyan),
		problem: color.New(color.FgRed),
		success: color.New(color.FgGreen),
	}

	for _, c := range []*color.Color{s.label, s.date, s.id, s.docType, s.problem, s.success} {
		if config.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	return s, nil
}

// Run walks the groups in order. For each one the operator picks the
// document to keep and every other member is deleted. A deletion the server
// rejects is reported and counted, and the run goes on. A network failure
// ends the run with the partial Summary. Deletions already done are never
// rolled back.
func (s *Selector) Run(ctx context.Context, groups []models.DuplicateGroup) (Summary, error) {
	var summary Summary

	for i, group := range groups {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		s.transition(i, AwaitingChoice)
		keep, err := s.choose(group)
		if err != nil {
			return summary, err
		}

		s.transition(i, Deleting)
		if err := s.deleteAllBut(ctx, group, keep, &summary); err != nil {
			return summary, err
		}

		s.transition(i, Done)
		summary.Groups++
		summary.Kept++
	}

	return summary, nil
}

func (s *Selector) transition(group int, state State) {
	s.logger.Debug().Int("group", group).Str("state", state.String()).Msg("selector state")
	if s.config.OnState != nil {
		s.config.OnState(group, state)
	}
}

// choose renders the group and blocks until the operator enters a valid
// index into it.
func (s *Selector) choose(group models.DuplicateGroup) (int, error) {
	fmt.Fprint(s.out, "\n\n")
	for pos, doc := range group {
		fmt.Fprintf(s.out, "(%d) %s from %s with id %s and type %s\n",
			pos,
			s.label.Sprint(doc.Label),
			s.date.Sprint(FormatDate(doc.DateAdded)),
			s.id.Sprint(strconv.Itoa(doc.ID)),
			s.docType.Sprint(doc.DocumentTypeLabel),
		)
	}

	for {
		fmt.Fprint(s.out, "Item: ")

		line, err := s.in.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			if errors.Is(err, io.EOF) {
				return 0, ErrInputClosed
			}
			return 0, fmt.Errorf("reading choice: %w", err)
		}

		choice, convErr := strconv.Atoi(strings.TrimSpace(line))
		if convErr == nil && choice >= 0 && choice < len(group) {
			return choice, nil
		}

		s.problem.Fprintf(s.out, "invalid choice %q: enter a number between 0 and %d\n", strings.TrimSpace(line), len(group)-1)
		if err != nil {
			// the final unterminated line was invalid and nothing follows
			return 0, ErrInputClosed
		}
	}
}

func (s *Selector) deleteAllBut(ctx context.Context, group models.DuplicateGroup, keep int, summary *Summary) error {
	remaining := make([]models.Document, 0, len(group)-1)
	remaining = append(remaining, group[:keep]...)
	remaining = append(remaining, group[keep+1:]...)

	for _, doc := range remaining {
		if s.config.DryRun {
			fmt.Fprintf(s.out, "would delete %d...\n", doc.ID)
			summary.WouldDelete++
			continue
		}

		fmt.Fprintf(s.out, "delete %d...\n", doc.ID)

		ok, err := s.config.Deleter.DeleteDocument(ctx, doc.ID)
		switch {
		case err != nil:
			s.logger.Error().Int("id", doc.ID).Err(err).Msg("delete failed")
			s.problem.Fprintf(s.out, "there was a problem: %v\n", err)
			summary.Failed++
			return fmt.Errorf("deleting document %d: %w", doc.ID, err)
		case !ok:
			s.problem.Fprintln(s.out, "there was a problem")
			summary.Failed++
		default:
			summary.Deleted++
			summary.ReclaimedBytes += doc.Size
		}
	}

	return nil
}

// FormatDate renders a server timestamp such as
// 2017-02-13T09:17:35.832975Z as 2017-02-13 09:17:35. Values that do not
// parse are returned unchanged.
func FormatDate(value string) string {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return value
	}
	return t.Format(time.DateTime)
}

func FormatSize(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)
	switch {
	case bytes > GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes > MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes > KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
