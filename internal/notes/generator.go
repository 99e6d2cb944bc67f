package notes

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"scribe/internal/artifact"
	"scribe/internal/fanout"
	"scribe/internal/generation"
	"scribe/internal/logging"
	"scribe/internal/services"
	"scribe/internal/transcript"
)

const stageName = "generating"

// Input is the transcript material one job generates from.
type Input struct {
	Title     string
	Text      string
	Sentences []transcript.Sentence
	Duration  float64
}

// ProgressFunc receives progress updates. It may be called from several
// goroutines but never concurrently.
type ProgressFunc func(percent float64, message string)

// Generator issues the generation calls for one job at a time or many; it
// holds no per-job state.
type Generator struct {
	provider generation.Provider
	opts     Options
	logger   *slog.Logger
}

// NewGenerator builds a Generator over provider.
func NewGenerator(provider generation.Provider, opts Options, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Generator{
		provider: provider,
		opts:     opts.withDefaults(),
		logger:   logging.NewComponentLogger(logger, "notes"),
	}
}

type chaptersResult struct {
	chapters []artifact.Chapter
	tokens   int64
	model    string
}

type notesResult struct {
	notes  artifact.StructuredNotes
	tokens int64
	model  string
}

// Generate runs the chapters and structured-notes tasks in parallel and
// joins them. Either failure fails the whole call.
func (g *Generator) Generate(ctx context.Context, in Input, progress ProgressFunc) (artifact.Notes, error) {
	if len(in.Sentences) == 0 {
		return artifact.Notes{}, services.Wrap(services.ErrGeneration, stageName, "generate", "transcript has no sentences", nil)
	}
	progress = serialize(progress)

	var (
		chapters chaptersResult
		notes    notesResult
	)
	tasks := []fanout.Task[struct{}]{
		func(ctx context.Context) (struct{}, error) {
			res, err := g.chapters(ctx, in, progress)
			chapters = res
			return struct{}{}, err
		},
		func(ctx context.Context) (struct{}, error) {
			res, err := g.structuredNotes(ctx, in)
			notes = res
			return struct{}{}, err
		},
	}
	if _, err := fanout.RunAll(ctx, g.opts.TaskConcurrency, tasks); err != nil {
		return artifact.Notes{}, err
	}

	structured := notes.notes
	if in.Duration > g.opts.ChunkedThreshold {
		if moments := artifact.KeyMomentsFromChapters(chapters.chapters, in.Duration); len(moments) > 0 {
			g.logger.Debug("key moments derived from chapters",
				logging.Args(logging.DecisionAttrs("key_moments", "chapters", "long content")...)...)
			structured.KeyMoments = moments
		}
	}

	model := notes.model
	if model == "" {
		model = chapters.model
	}
	return artifact.Notes{
		SchemaVersion:   artifact.SchemaVersion,
		StructuredNotes: structured,
		Chapters:        chapters.chapters,
		Model:           model,
		ChaptersTokens:  chapters.tokens,
		NotesTokens:     notes.tokens,
	}, nil
}

// chapters sends content longer than the chunked threshold through per-chunk
// topic analysis, dedup and allocation; shorter content takes one call.
func (g *Generator) chapters(ctx context.Context, in Input, progress ProgressFunc) (chaptersResult, error) {
	if in.Duration > g.opts.ChunkedThreshold {
		res, err := g.chunkedChapters(ctx, in, progress)
		if err != nil || len(res.chapters) > 0 {
			return res, err
		}
		g.logger.Warn("chunk analysis produced no topics",
			logging.String(logging.FieldEventType, "chunk_analysis_empty"),
			logging.String(logging.FieldErrorHint, "check provider output for the topic prompts"),
			logging.String(logging.FieldImpact, "chapters come from a single call over the whole transcript"))
		single, err := g.singleChapters(ctx, in)
		single.tokens += res.tokens
		return single, err
	}
	return g.singleChapters(ctx, in)
}

func (g *Generator) singleChapters(ctx context.Context, in Input) (chaptersResult, error) {
	resp, err := g.provider.Generate(ctx, generation.Request{
		Operation:   "chapters",
		System:      chaptersSystemPrompt,
		User:        chaptersUserPrompt(in.Title, in.Sentences, in.Duration),
		JSON:        true,
		Temperature: 0.3,
		MaxTokens:   2000,
	})
	if err != nil {
		return chaptersResult{}, wrapGeneration("chapters", err)
	}
	parsed, err := artifact.ParseChapters(resp.Content)
	if err != nil {
		return chaptersResult{}, wrapGeneration("chapters", err)
	}
	return chaptersResult{
		chapters: artifact.FinalizeChapters(parsed, in.Duration),
		tokens:   resp.Usage.Total(),
		model:    resp.ModelLabel(),
	}, nil
}

func (g *Generator) structuredNotes(ctx context.Context, in Input) (notesResult, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		parts := make([]string, 0, len(in.Sentences))
		for _, s := range in.Sentences {
			parts = append(parts, s.Text)
		}
		text = strings.Join(parts, " ")
	}
	resp, err := g.provider.Generate(ctx, generation.Request{
		Operation:   "structured_notes",
		System:      strings.Replace(structuredNotesSystemPrompt, "%s", artifact.FlashcardRange(in.Duration), 1),
		User:        structuredNotesUserPrompt(in.Title, text, in.Sentences, g.opts.NotesMaxChars),
		JSON:        true,
		Temperature: 0.5,
		MaxTokens:   3000,
	})
	if err != nil {
		return notesResult{}, wrapGeneration("structured_notes", err)
	}
	parsed, err := artifact.ParseStructuredNotes(resp.Content)
	if err != nil {
		return notesResult{}, wrapGeneration("structured_notes", err)
	}
	return notesResult{notes: parsed, tokens: resp.Usage.Total(), model: resp.ModelLabel()}, nil
}

func wrapGeneration(operation string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	message := "provider call failed"
	if errors.Is(err, artifact.ErrParse) {
		message = "unusable provider output"
	}
	return services.Wrap(services.ErrGeneration, stageName, operation, message, err)
}

// serialize guards progress so concurrent tasks never call it at once.
func serialize(progress ProgressFunc) ProgressFunc {
	if progress == nil {
		return func(float64, string) {}
	}
	var mu sync.Mutex
	return func(percent float64, message string) {
		mu.Lock()
		defer mu.Unlock()
		progress(percent, message)
	}
}

// ChunkedThreshold is the duration above which chapters use chunk analysis.
func (g *Generator) ChunkedThreshold() float64 {
	return g.opts.ChunkedThreshold
}
