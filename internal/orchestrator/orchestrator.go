// Package orchestrator drives a single generation run: it gates the run on
// the credit ledger, deducts the cost up front, generates the story text,
// schedules illustrations over the pages, and publishes each finished page
// for progressive display.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/book-expert/logger"
	"github.com/google/uuid"

	"github.com/book-expert/storybook-service/internal/core"
	"github.com/book-expert/storybook-service/internal/ledger"
)

// ErrRunInProgress indicates a run is already active. Concurrent runs are
// not supported; the calling layer must wait for the active run to finish.
var ErrRunInProgress = errors.New("a generation run is already in progress")

// imageBudgetTable maps the standard page-count tiers to their illustration
// budgets. Page counts outside the table fall back to max(1, pages/4).
var imageBudgetTable = map[int]int{
	10:  3,
	20:  6,
	30:  9,
	40:  12,
	50:  15,
	100: 25,
}

// ImageBudget returns the number of fresh illustrations scheduled for a
// story of the given page count.
func ImageBudget(pageCount int) int {
	if budget, ok := imageBudgetTable[pageCount]; ok {
		return budget
	}

	fallback := pageCount / 4
	if fallback < 1 {
		return 1
	}

	return fallback
}

// Orchestrator executes generation runs. A single orchestrator allows one
// active run at a time; the draft produced by a run is exclusively owned by
// the orchestrator until the run completes.
type Orchestrator struct {
	creditLedger *ledger.Ledger
	generator    core.StoryGenerator
	illustrator  core.Illustrator
	notifier     core.Notifier
	log          *logger.Logger
	running      atomic.Bool
}

// New creates an orchestrator over the given collaborators.
func New(
	creditLedger *ledger.Ledger,
	generator core.StoryGenerator,
	illustrator core.Illustrator,
	notifier core.Notifier,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		creditLedger: creditLedger,
		generator:    generator,
		illustrator:  illustrator,
		notifier:     notifier,
		log:          log,
		running:      atomic.Bool{},
	}
}

// Run generates a complete draft for the profile and page count.
//
// The cost is deducted before any generation call; a failure after the spend
// does not refund, because upstream services bill per call regardless of
// whether the result is consumed. Cancellation between steps stops further
// requests and discards the partial draft, also without a refund. The
// returned draft is not persisted; saving is a separate, explicit action.
func (o *Orchestrator) Run(
	ctx context.Context,
	profile core.HeroProfile,
	pageCount int,
) ([]core.StoryPage, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer o.running.Store(false)

	runID := uuid.NewString()

	cost := ledger.CostForPages(pageCount)
	if !o.creditLedger.CanAfford(cost) {
		o.publishRun(runID, core.RunStateFailed, "insufficient credits")

		return nil, fmt.Errorf(
			"%w: run needs %d, balance is %d",
			core.ErrInsufficientCredits, cost, o.creditLedger.Balance(),
		)
	}

	o.publishRun(runID, core.RunStateCostChecked, "")

	spendErr := o.creditLedger.Spend(cost)
	if spendErr != nil && !errors.Is(spendErr, core.ErrPersistence) {
		o.publishRun(runID, core.RunStateFailed, "spend rejected")

		return nil, spendErr
	}

	if spendErr != nil {
		// The in-memory deduction stands; the run proceeds.
		o.log.Warn("Run %s: spend persisted with error: %v", runID, spendErr)
	}

	o.publishRun(runID, core.RunStateSpent, "")
	o.log.Info("Run %s: spent %d credits for %d pages", runID, cost, pageCount)

	pages, textErr := o.generator.GenerateStoryText(ctx, profile, pageCount)
	if textErr != nil {
		o.publishRun(runID, core.RunStateFailed, "text generation failed")

		return nil, fmt.Errorf("story text generation failed: %w", textErr)
	}

	o.publishRun(runID, core.RunStateTextGenerated, "")

	illustrated, illErr := o.illustratePages(ctx, runID, profile, pages)
	if illErr != nil {
		o.publishRun(runID, core.RunStateFailed, "illustration failed")

		return nil, illErr
	}

	o.publishRun(runID, core.RunStateComplete, "")
	o.log.Info("Run %s: complete, %d pages", runID, len(illustrated))

	return illustrated, nil
}

// illustratePages walks the pages in order, generating a fresh illustration
// at each scheduled anchor and carrying the most recent image forward over
// the pages in between. Repeating the last image between anchors is a
// deliberate cost-saving degradation, not missing data.
func (o *Orchestrator) illustratePages(
	ctx context.Context,
	runID string,
	profile core.HeroProfile,
	pages []core.StoryPage,
) ([]core.StoryPage, error) {
	pageCount := len(pages)
	maxImages := ImageBudget(pageCount)

	interval := pageCount / maxImages
	if interval < 1 {
		interval = 1
	}

	heroDescriptor := strings.TrimSpace(profile.Name + ", " + profile.VisualDescription)

	imagesGenerated := 0
	lastImageURL := ""

	o.publishRun(runID, core.RunStateIllustrating, "")

	for i := range pages {
		ctxErr := ctx.Err()
		if ctxErr != nil {
			return nil, fmt.Errorf("run cancelled at page %d: %w", i+1, ctxErr)
		}

		fresh := imagesGenerated < maxImages && (i == 0 || i%interval == 0)
		if fresh {
			url, illErr := o.illustrator.GenerateIllustration(
				ctx, heroDescriptor, pages[i].Text, profile.Theme,
			)
			if illErr != nil {
				return nil, fmt.Errorf("illustration for page %d failed: %w", i+1, illErr)
			}

			lastImageURL = url
			imagesGenerated++
		}

		pages[i].ImageRef = lastImageURL

		o.publishPage(runID, pages[i], pageCount, fresh)
	}

	return pages, nil
}

func (o *Orchestrator) publishRun(runID, state, reason string) {
	if o.notifier == nil {
		return
	}

	o.notifier.PublishRun(core.RunEvent{
		Header: core.NewEventHeader(runID),
		State:  state,
		Reason: reason,
	})
}

func (o *Orchestrator) publishPage(runID string, page core.StoryPage, total int, fresh bool) {
	if o.notifier == nil {
		return
	}

	o.notifier.PublishPage(core.PageEvent{
		Header:     core.NewEventHeader(runID),
		Page:       page,
		TotalPages: total,
		FreshImage: fresh,
	})
}
