// Package core defines the domain model and interfaces for the storybook service.
package core

// StoryPage is a single page of a generated story.
//
// ImageRef is either a remote URL (the page's illustration has not been
// persisted yet), a local filename inside the artifact directory, or empty
// when no illustration was ever generated for the page.
//
// AudioRef names a locally cached narration file. A non-empty AudioRef means
// the narration for this page has already been synthesized and paid for;
// an empty AudioRef means narration must be fetched on demand.
type StoryPage struct {
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
	ImageRef   string `json:"image_ref"`
	AudioRef   string `json:"audio_ref,omitempty"`
}

// HeroProfile describes the protagonist of a generation run. It is immutable
// once constructed for a given run.
type HeroProfile struct {
	Name              string `json:"name"`
	VisualDescription string `json:"visual_description"`
	Theme             string `json:"theme"`
	Language          string `json:"language"`
}

// Storybook is the durable, self-contained form of a completed story. It is
// created only by the storage manager's save operation; an in-memory draft is
// not a Storybook until persisted.
type Storybook struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	CoverImage string      `json:"cover_image"`
	Pages      []StoryPage `json:"pages"`
}
