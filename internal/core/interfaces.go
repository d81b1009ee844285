package core

import "context"

// StoryGenerator produces the full page sequence for a story in one request.
type StoryGenerator interface {
	GenerateStoryText(ctx context.Context, profile HeroProfile, pageCount int) ([]StoryPage, error)
}

// Illustrator produces a single illustration per call and returns the remote
// URL of the generated image.
type Illustrator interface {
	GenerateIllustration(ctx context.Context, heroDescriptor, sceneContext, styleHint string) (string, error)
}

// SpeechSynthesizer converts text to raw audio bytes in a single call.
type SpeechSynthesizer interface {
	SynthesizeSpeech(ctx context.Context, text, voiceID string) ([]byte, error)
}

// SecretStore is a capability interface over an OS-keychain-equivalent store.
// Entries survive ordinary application data resets. Existence of a key is
// meaningful on its own: the welcome-grant flag relies on key presence, not
// on the stored content.
type SecretStore interface {
	Put(key string, value []byte) error
	Get(key string) ([]byte, bool, error)
}

// PreferenceStore is a durable key-value store for small serialized records,
// such as the storybook index.
type PreferenceStore interface {
	Put(key string, value []byte) error
	Get(key string) ([]byte, bool, error)
}

// Notifier publishes state-change events. The contract is one notification
// per mutation, in mutation order.
type Notifier interface {
	PublishPage(event PageEvent)
	PublishBalance(event BalanceEvent)
	PublishRun(event RunEvent)
}
