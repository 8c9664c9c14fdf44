// Package core defines the core business logic and interfaces for the voice design service.
package core

import "context"

// Request holds the parameters for a single voice design generation.
type Request struct {
	// Text is the content to synthesize. Must be non-empty.
	Text string

	// Language is the language of the text, e.g. "Chinese" or "English".
	Language string

	// Instruct is a natural-language description of the desired voice
	// characteristics (tone, age, emotion). Must be non-empty.
	Instruct string
}

// Audio holds the raw result of a single generation: mono PCM samples and the
// rate they were produced at. It is encoded to WAV once and then discarded.
type Audio struct {
	Samples    []int16
	SampleRate int
}

// VoiceDesigner defines the interface for the pretrained voice design model.
type VoiceDesigner interface {
	GenerateVoiceDesign(ctx context.Context, req Request) (*Audio, error)
}

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}
