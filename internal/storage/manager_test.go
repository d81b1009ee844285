// Package storage_test tests the artifact cache and storybook index.
package storage_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/storybook-service/internal/core"
	"github.com/book-expert/storybook-service/internal/storage"
)

// memPrefs is an in-memory core.PreferenceStore.
type memPrefs struct {
	entries map[string][]byte
}

func newMemPrefs() *memPrefs {
	return &memPrefs{entries: make(map[string][]byte)}
}

func (p *memPrefs) Put(key string, value []byte) error {
	p.entries[key] = value

	return nil
}

func (p *memPrefs) Get(key string) ([]byte, bool, error) {
	value, ok := p.entries[key]

	return value, ok, nil
}

// countingSynth records synthesis calls per text.
type countingSynth struct {
	calls []string
}

func (s *countingSynth) SynthesizeSpeech(_ context.Context, text, _ string) ([]byte, error) {
	s.calls = append(s.calls, text)

	return []byte("audio-for-" + text), nil
}

func newTestManager(t *testing.T) (*storage.Manager, *memPrefs) {
	t.Helper()

	log, err := logger.New(t.TempDir(), "storage-test.log")
	require.NoError(t, err)

	prefStore := newMemPrefs()

	manager, err := storage.NewManager(t.TempDir(), prefStore, log)
	require.NoError(t, err)

	return manager, prefStore
}

func newImageServer(t *testing.T, payload string, hits *int) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(
		func(responseWriter http.ResponseWriter, _ *http.Request) {
			*hits++

			_, _ = responseWriter.Write([]byte(payload))
		}))
	t.Cleanup(server.Close)

	return server
}

func TestPersistFile_NeverOverwrites(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)

	first, err := manager.PersistFile([]byte("one"), "img_.jpg")
	require.NoError(t, err)

	second, err := manager.PersistFile([]byte("two"), "img_.jpg")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasPrefix(first, "img_"))
	assert.True(t, strings.HasSuffix(first, ".jpg"))
}

func TestPersistFile_EmptyData(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)

	_, err := manager.PersistFile(nil, "img_.jpg")
	require.ErrorIs(t, err, storage.ErrDataEmpty)
}

func TestLoadImage_CacheBoundary(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)

	// Remote URLs and empty references are cache misses, not errors.
	miss, err := manager.LoadImage("https://img.example/remote.png")
	require.NoError(t, err)
	assert.Nil(t, miss)

	miss, err = manager.LoadImage("")
	require.NoError(t, err)
	assert.Nil(t, miss)

	// A file the manager never wrote is also a miss.
	miss, err = manager.LoadImage("img_unknown.jpg")
	require.NoError(t, err)
	assert.Nil(t, miss)

	name, err := manager.PersistFile([]byte("pixels"), "img_.jpg")
	require.NoError(t, err)

	hit, err := manager.LoadImage(name)
	require.NoError(t, err)
	assert.Equal(t, []byte("pixels"), hit)
}

func TestSaveStorybook_LocalizesImagesAndAudio(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)

	hits := 0
	server := newImageServer(t, "image-bytes", &hits)

	remoteURL := server.URL + "/anchor.png"
	pages := []core.StoryPage{
		{PageNumber: 1, Text: "First.", ImageRef: remoteURL, AudioRef: ""},
		{PageNumber: 2, Text: "Second.", ImageRef: remoteURL, AudioRef: ""},
		{PageNumber: 3, Text: "Third.", ImageRef: "", AudioRef: ""},
	}

	synth := &countingSynth{calls: nil}

	book, err := manager.SaveStorybook(
		context.Background(), "Nava's Tale", []byte("cover"), pages, synth, "shimmer",
	)
	require.NoError(t, err)

	assert.NotEmpty(t, book.ID)
	assert.True(t, strings.HasPrefix(book.CoverImage, "hero_"))
	require.Len(t, book.Pages, 3)

	// The shared remote URL was downloaded once and both pages reference the
	// same local file.
	assert.Equal(t, 1, hits)
	assert.Equal(t, book.Pages[0].ImageRef, book.Pages[1].ImageRef)
	assert.True(t, strings.HasPrefix(book.Pages[0].ImageRef, "img_"))

	// A page whose image was never generated keeps its empty reference.
	assert.Empty(t, book.Pages[2].ImageRef)

	// Every page got narration exactly once.
	assert.Equal(t, []string{"First.", "Second.", "Third."}, synth.calls)

	for _, page := range book.Pages {
		assert.NotEmpty(t, page.AudioRef)

		audio, loadErr := manager.LoadAudio(page.AudioRef)
		require.NoError(t, loadErr)
		assert.NotEmpty(t, audio)
	}
}

func TestSaveStorybook_DoesNotResynthesizeExistingAudio(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)

	synth := &countingSynth{calls: nil}

	first, err := manager.SaveStorybook(
		context.Background(), "Tale", nil,
		[]core.StoryPage{{PageNumber: 1, Text: "Once.", ImageRef: "", AudioRef: ""}},
		synth, "shimmer",
	)
	require.NoError(t, err)
	require.Len(t, synth.calls, 1)

	// Saving the already-localized pages again must not re-spend on audio.
	_, err = manager.SaveStorybook(
		context.Background(), "Tale again", nil, first.Pages, synth, "shimmer",
	)
	require.NoError(t, err)
	assert.Len(t, synth.calls, 1)
}

func TestSaveStorybook_DownloadFailureIsFatal(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)

	server := httptest.NewServer(http.HandlerFunc(
		func(responseWriter http.ResponseWriter, _ *http.Request) {
			responseWriter.WriteHeader(http.StatusNotFound)
		}))
	defer server.Close()

	_, err := manager.SaveStorybook(
		context.Background(), "Tale", nil,
		[]core.StoryPage{{PageNumber: 1, Text: "Once.", ImageRef: server.URL + "/gone.png", AudioRef: ""}},
		nil, "shimmer",
	)
	require.ErrorIs(t, err, core.ErrTransport)

	// Nothing was appended to the index.
	assert.Empty(t, manager.ListStorybooks())
}

func TestListStorybooks_EmptyAndCorruptState(t *testing.T) {
	t.Parallel()

	manager, prefStore := newTestManager(t)

	assert.Empty(t, manager.ListStorybooks())

	require.NoError(t, prefStore.Put(storage.IndexKey, []byte("{corrupt")))
	assert.Empty(t, manager.ListStorybooks())
}

func TestDeleteStorybook(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)

	book, err := manager.SaveStorybook(
		context.Background(), "Tale", nil,
		[]core.StoryPage{{PageNumber: 1, Text: "Once.", ImageRef: "", AudioRef: ""}},
		nil, "shimmer",
	)
	require.NoError(t, err)
	require.Len(t, manager.ListStorybooks(), 1)

	require.NoError(t, manager.DeleteStorybook(book.ID))
	assert.Empty(t, manager.ListStorybooks())

	require.ErrorIs(t, manager.DeleteStorybook(book.ID), storage.ErrBookNotFound)
}

func TestArtifactPath(t *testing.T) {
	t.Parallel()

	log, err := logger.New(t.TempDir(), "storage-test.log")
	require.NoError(t, err)

	dataDir := t.TempDir()

	manager, err := storage.NewManager(dataDir, newMemPrefs(), log)
	require.NoError(t, err)

	name, err := manager.PersistFile([]byte("x"), "audio_.mp3")
	require.NoError(t, err)

	info, err := os.Stat(manager.ArtifactPath(name))
	require.NoError(t, err)
	assert.False(t, info.IsDir())
}
