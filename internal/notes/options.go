package notes

import (
	"scribe/internal/config"
	"scribe/internal/transcript"
)

const (
	DefaultChunkConcurrency        = 4
	DefaultTaskConcurrency         = 2
	DefaultChunkedThreshold        = 600.0
	DefaultTopicsPerChunk          = 2
	DefaultNotesMaxChars           = 100000
	DefaultTransliterationBatch    = 100
	DefaultTransliterationParallel = 4
)

// Options tunes a Generator. Zero values select the defaults.
type Options struct {
	ChunkConcurrency int
	TaskConcurrency  int
	// ChunkedThreshold is the duration above which chapters come from
	// per-chunk analysis instead of a single call.
	ChunkedThreshold float64
	TopicsPerChunk   int
	NotesMaxChars    int
	Chunk            transcript.ChunkOptions
	Allocate         transcript.AllocateOptions

	TransliterationBatch    int
	TransliterationParallel int
}

func (o Options) withDefaults() Options {
	if o.ChunkConcurrency <= 0 {
		o.ChunkConcurrency = DefaultChunkConcurrency
	}
	if o.TaskConcurrency <= 0 {
		o.TaskConcurrency = DefaultTaskConcurrency
	}
	if o.ChunkedThreshold <= 0 {
		o.ChunkedThreshold = DefaultChunkedThreshold
	}
	if o.TopicsPerChunk <= 0 {
		o.TopicsPerChunk = DefaultTopicsPerChunk
	}
	if o.NotesMaxChars <= 0 {
		o.NotesMaxChars = DefaultNotesMaxChars
	}
	if o.TransliterationBatch <= 0 {
		o.TransliterationBatch = DefaultTransliterationBatch
	}
	if o.TransliterationParallel <= 0 {
		o.TransliterationParallel = DefaultTransliterationParallel
	}
	return o
}

// OptionsFromConfig maps the [generation] and [transcript] sections.
func OptionsFromConfig(cfg *config.Config) Options {
	gen := cfg.Generation
	tr := cfg.Transcript
	return Options{
		ChunkConcurrency: gen.ChunkConcurrency,
		TaskConcurrency:  gen.TaskConcurrency,
		ChunkedThreshold: float64(gen.ChunkedThresholdSeconds),
		TopicsPerChunk:   gen.TopicsPerChunk,
		NotesMaxChars:    gen.NotesMaxChars,
		Chunk: transcript.ChunkOptions{
			Window:  tr.WindowSeconds,
			Overlap: tr.OverlapSeconds,
		},
		Allocate: transcript.AllocateOptions{
			Requested:     gen.RequestedChapters,
			Mode:          transcript.AllocationMode(gen.AllocationMode),
			EarlyCap:      gen.EarlyCap,
			LateCap:       gen.LateCap,
			BoundaryRatio: tr.BoundaryRatio,
		},
		TransliterationBatch:    gen.TransliterationBatchSize,
		TransliterationParallel: gen.ChunkConcurrency,
	}
}
