// Package storage makes generated artifacts durable. It owns the artifact
// directory, the storybook index, and the cache-hit boundary that decides
// whether a reference is already local or must be fetched remotely.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/book-expert/logger"
	"github.com/google/uuid"

	"github.com/book-expert/storybook-service/internal/core"
)

// IndexKey is the well-known preference key the storybook index is stored
// under.
const IndexKey = "saved_stories"

// File and directory permissions.
const (
	filePermissions = 0o600
	dirPermissions  = 0o750
)

// Artifact filename prefixes.
const (
	coverFilePrefix = "hero_"
	imageFilePrefix = "img_"
	audioFilePrefix = "audio_"
	imageFileExt    = ".jpg"
	audioFileExt    = ".mp3"
)

// Static errors.
var (
	ErrDataDirEmpty = errors.New("data directory cannot be empty")
	ErrDataEmpty    = errors.New("artifact data cannot be empty")
	ErrBookNotFound = errors.New("storybook not found")
)

// Manager persists artifacts as uniquely named files in a private storage
// area and maintains the on-disk index of completed storybooks.
type Manager struct {
	dataDir    string
	prefStore  core.PreferenceStore
	httpClient *http.Client
	log        *logger.Logger
}

// NewManager creates a storage manager rooted at dataDir, creating the
// directory if needed. The index is kept in the given preference store.
func NewManager(dataDir string, prefStore core.PreferenceStore, log *logger.Logger) (*Manager, error) {
	if dataDir == "" {
		return nil, ErrDataDirEmpty
	}

	mkdirErr := os.MkdirAll(dataDir, dirPermissions)
	if mkdirErr != nil {
		return nil, fmt.Errorf("%w: failed to create data directory: %w", core.ErrPersistence, mkdirErr)
	}

	return &Manager{
		dataDir:    dataDir,
		prefStore:  prefStore,
		httpClient: &http.Client{},
		log:        log,
	}, nil
}

// PersistFile writes data under a fresh unique filename derived from
// suggestedName and returns the filename used. Existing files are never
// overwritten; every call produces a new file.
func (m *Manager) PersistFile(data []byte, suggestedName string) (string, error) {
	if len(data) == 0 {
		return "", ErrDataEmpty
	}

	filename := uniqueFilename(suggestedName)

	writeErr := os.WriteFile(filepath.Join(m.dataDir, filename), data, filePermissions)
	if writeErr != nil {
		return "", fmt.Errorf("%w: failed to write artifact '%s': %w", core.ErrPersistence, filename, writeErr)
	}

	return filename, nil
}

// LoadImage resolves an image reference. A remote URL or empty reference is
// a cache miss, reported as nil bytes without error; callers fall back to
// fetching remotely.
func (m *Manager) LoadImage(reference string) ([]byte, error) {
	return m.loadArtifact(reference)
}

// LoadAudio resolves an audio reference with the same miss semantics as
// LoadImage. A non-empty hit means the narration was already paid for.
func (m *Manager) LoadAudio(reference string) ([]byte, error) {
	return m.loadArtifact(reference)
}

// SaveStorybook turns a draft page sequence into a durable, self-contained
// Storybook and appends it to the index.
//
// Remote image URLs are downloaded once per distinct URL, at save time, and
// every page that carried the same URL is rewritten to the one persisted
// file. Pages lacking an AudioRef get their narration synthesized exactly
// once; pages that already carry one are left alone, which is what makes
// "this page's narration is already paid for" durable. A nil synthesizer
// skips audio synthesis entirely.
func (m *Manager) SaveStorybook(
	ctx context.Context,
	title string,
	coverImage []byte,
	pages []core.StoryPage,
	synth core.SpeechSynthesizer,
	voiceID string,
) (core.Storybook, error) {
	coverName := ""

	if len(coverImage) > 0 {
		persisted, coverErr := m.PersistFile(coverImage, coverFilePrefix+imageFileExt)
		if coverErr != nil {
			return core.Storybook{}, coverErr
		}

		coverName = persisted
	}

	savedPages, pagesErr := m.localizePages(ctx, pages, synth, voiceID)
	if pagesErr != nil {
		return core.Storybook{}, pagesErr
	}

	book := core.Storybook{
		ID:         uuid.NewString(),
		Title:      title,
		CoverImage: coverName,
		Pages:      savedPages,
	}

	index := m.ListStorybooks()
	index = append(index, book)

	persistErr := m.persistIndex(index)
	if persistErr != nil {
		return core.Storybook{}, persistErr
	}

	m.log.Info("Saved storybook '%s' (%d pages)", title, len(savedPages))

	return book, nil
}

// ListStorybooks loads the index. Absent or corrupt persisted state yields
// an empty sequence, never a failure.
func (m *Manager) ListStorybooks() []core.Storybook {
	raw, ok, getErr := m.prefStore.Get(IndexKey)
	if getErr != nil || !ok {
		return []core.Storybook{}
	}

	var books []core.Storybook

	unmarshalErr := json.Unmarshal(raw, &books)
	if unmarshalErr != nil {
		m.log.Warn("Storybook index is corrupt, treating as empty: %v", unmarshalErr)

		return []core.Storybook{}
	}

	return books
}

// DeleteStorybook removes the entry with the given id from the index.
// Backing files are not deleted; the index simply stops referencing them.
func (m *Manager) DeleteStorybook(id string) error {
	index := m.ListStorybooks()
	remaining := make([]core.Storybook, 0, len(index))

	for _, book := range index {
		if book.ID != id {
			remaining = append(remaining, book)
		}
	}

	if len(remaining) == len(index) {
		return fmt.Errorf("%w: '%s'", ErrBookNotFound, id)
	}

	return m.persistIndex(remaining)
}

// ArtifactPath returns the absolute path of a locally stored artifact.
func (m *Manager) ArtifactPath(filename string) string {
	return filepath.Join(m.dataDir, filename)
}

func (m *Manager) localizePages(
	ctx context.Context,
	pages []core.StoryPage,
	synth core.SpeechSynthesizer,
	voiceID string,
) ([]core.StoryPage, error) {
	savedPages := make([]core.StoryPage, 0, len(pages))
	downloaded := make(map[string]string)

	for _, page := range pages {
		if isRemote(page.ImageRef) {
			localName, downloadErr := m.downloadImageOnce(ctx, page.ImageRef, downloaded)
			if downloadErr != nil {
				return nil, downloadErr
			}

			page.ImageRef = localName
		}

		if page.AudioRef == "" && synth != nil {
			audioName, audioErr := m.synthesizePageAudio(ctx, page, synth, voiceID)
			if audioErr != nil {
				m.log.Warn("Failed to synthesize audio for page %d: %v", page.PageNumber, audioErr)
			} else {
				page.AudioRef = audioName
			}
		}

		savedPages = append(savedPages, page)
	}

	return savedPages, nil
}

// downloadImageOnce fetches a remote image URL at most once, reusing the
// persisted filename for every later page that carries the same URL.
func (m *Manager) downloadImageOnce(
	ctx context.Context,
	url string,
	downloaded map[string]string,
) (string, error) {
	if localName, ok := downloaded[url]; ok {
		return localName, nil
	}

	data, fetchErr := m.fetchRemote(ctx, url)
	if fetchErr != nil {
		return "", fetchErr
	}

	localName, persistErr := m.PersistFile(data, imageFilePrefix+imageFileExt)
	if persistErr != nil {
		return "", persistErr
	}

	downloaded[url] = localName

	return localName, nil
}

func (m *Manager) synthesizePageAudio(
	ctx context.Context,
	page core.StoryPage,
	synth core.SpeechSynthesizer,
	voiceID string,
) (string, error) {
	audioData, synthErr := synth.SynthesizeSpeech(ctx, page.Text, voiceID)
	if synthErr != nil {
		return "", fmt.Errorf("speech synthesis failed: %w", synthErr)
	}

	return m.PersistFile(audioData, audioFilePrefix+audioFileExt)
}

func (m *Manager) fetchRemote(ctx context.Context, url string) ([]byte, error) {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if reqErr != nil {
		return nil, fmt.Errorf("%w: failed to create download request: %w", core.ErrTransport, reqErr)
	}

	resp, sendErr := m.httpClient.Do(req)
	if sendErr != nil {
		return nil, fmt.Errorf("%w: failed to download '%s': %w", core.ErrTransport, url, sendErr)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: download of '%s' returned status %s", core.ErrTransport, url, resp.Status)
	}

	data, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, fmt.Errorf("%w: failed to read download body: %w", core.ErrTransport, readErr)
	}

	return data, nil
}

func (m *Manager) loadArtifact(reference string) ([]byte, error) {
	if reference == "" || isRemote(reference) {
		return nil, nil
	}

	data, readErr := os.ReadFile(filepath.Join(m.dataDir, filepath.Base(reference)))
	if readErr != nil {
		if errors.Is(readErr, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("%w: failed to read artifact '%s': %w", core.ErrPersistence, reference, readErr)
	}

	return data, nil
}

func (m *Manager) persistIndex(books []core.Storybook) error {
	encoded, marshalErr := json.Marshal(books)
	if marshalErr != nil {
		return fmt.Errorf("failed to encode storybook index: %w", marshalErr)
	}

	putErr := m.prefStore.Put(IndexKey, encoded)
	if putErr != nil {
		return fmt.Errorf("%w: failed to persist storybook index: %w", core.ErrPersistence, putErr)
	}

	return nil
}

func isRemote(reference string) bool {
	return strings.HasPrefix(reference, "http://") || strings.HasPrefix(reference, "https://")
}

// uniqueFilename derives a fresh artifact filename from a suggested name,
// keeping its sanitized stem and extension around a random identifier.
func uniqueFilename(suggestedName string) string {
	ext := filepath.Ext(suggestedName)
	stem := sanitizeFilename(strings.TrimSuffix(filepath.Base(suggestedName), ext))

	if stem != "" && !strings.HasSuffix(stem, "_") {
		stem += "_"
	}

	return stem + uuid.NewString() + ext
}

func sanitizeFilename(name string) string {
	var builder strings.Builder

	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			builder.WriteRune(r)
		default:
			builder.WriteRune('_')
		}
	}

	return builder.String()
}
