// Package service exposes the operations UI collaborators consume: running
// a generation, saving the resulting draft, browsing and deleting saved
// stories, and reporting confirmed purchases to the ledger.
package service

import (
	"context"
	"errors"
	"sync"

	"github.com/book-expert/logger"

	"github.com/book-expert/storybook-service/internal/core"
	"github.com/book-expert/storybook-service/internal/ledger"
	"github.com/book-expert/storybook-service/internal/orchestrator"
	"github.com/book-expert/storybook-service/internal/storage"
)

// ErrNoDraft indicates there is no completed draft to save.
var ErrNoDraft = errors.New("no draft available to save")

// Service is the facade over the core components. It holds the draft
// produced by the most recent completed run until it is explicitly saved.
type Service struct {
	creditLedger *ledger.Ledger
	orch         *orchestrator.Orchestrator
	store        *storage.Manager
	synth        core.SpeechSynthesizer
	voiceID      string
	log          *logger.Logger

	mu           sync.Mutex
	draft        []core.StoryPage
	draftProfile core.HeroProfile
}

// New creates the service facade.
func New(
	creditLedger *ledger.Ledger,
	orch *orchestrator.Orchestrator,
	store *storage.Manager,
	synth core.SpeechSynthesizer,
	voiceID string,
	log *logger.Logger,
) *Service {
	return &Service{
		creditLedger: creditLedger,
		orch:         orch,
		store:        store,
		synth:        synth,
		voiceID:      voiceID,
		log:          log,
		mu:           sync.Mutex{},
		draft:        nil,
		draftProfile: core.HeroProfile{Name: "", VisualDescription: "", Theme: "", Language: ""},
	}
}

// RequestGeneration runs the generation pipeline and retains the completed
// draft. A non-empty language overrides the profile's language for the run.
// Progressive page delivery happens through the notifier wired into the
// orchestrator; the returned slice is the complete draft.
func (s *Service) RequestGeneration(
	ctx context.Context,
	profile core.HeroProfile,
	pageCount int,
	language string,
) ([]core.StoryPage, error) {
	if language != "" {
		profile.Language = language
	}

	pages, runErr := s.orch.Run(ctx, profile, pageCount)
	if runErr != nil {
		return nil, runErr
	}

	s.mu.Lock()
	s.draft = pages
	s.draftProfile = profile
	s.mu.Unlock()

	return pages, nil
}

// SaveCurrentDraft persists the retained draft as a Storybook, downloading
// its remote images and synthesizing narration for pages that lack it. The
// retained draft is replaced by the localized pages so that a repeated save
// does not re-synthesize audio.
func (s *Service) SaveCurrentDraft(
	ctx context.Context,
	title string,
	heroImage []byte,
) (core.Storybook, error) {
	s.mu.Lock()
	draft := s.draft
	s.mu.Unlock()

	if len(draft) == 0 {
		return core.Storybook{}, ErrNoDraft
	}

	book, saveErr := s.store.SaveStorybook(ctx, title, heroImage, draft, s.synth, s.voiceID)
	if saveErr != nil {
		return core.Storybook{}, saveErr
	}

	s.mu.Lock()
	s.draft = book.Pages
	s.mu.Unlock()

	return book, nil
}

// ListSavedStories returns every saved storybook.
func (s *Service) ListSavedStories() []core.Storybook {
	return s.store.ListStorybooks()
}

// DeleteStory removes a saved storybook from the index.
func (s *Service) DeleteStory(id string) error {
	return s.store.DeleteStorybook(id)
}

// PurchaseCompleted reports a confirmed purchase to the ledger. When the
// commerce layer supplies the credit amount it is credited directly;
// otherwise the amount is resolved from the product identifier.
func (s *Service) PurchaseCompleted(productID string, creditAmount int) error {
	if creditAmount > 0 {
		s.log.Info("Purchase '%s' delivered %d credits", productID, creditAmount)

		return s.creditLedger.Credit(creditAmount)
	}

	credits, deliverErr := s.creditLedger.DeliverProduct(productID)
	if deliverErr != nil {
		return deliverErr
	}

	s.log.Info("Purchase '%s' delivered %d credits", productID, credits)

	return nil
}

// Balance returns the current credit balance.
func (s *Service) Balance() int {
	return s.creditLedger.Balance()
}
