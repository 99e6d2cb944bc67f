package notes

import (
	"context"
	"fmt"
	"sync"

	"scribe/internal/artifact"
	"scribe/internal/fanout"
	"scribe/internal/generation"
	"scribe/internal/logging"
	"scribe/internal/transcript"
)

const (
	analysisProgressStart = 30.0
	analysisProgressSpan  = 8.0
)

type chunkTopics struct {
	candidates []transcript.Candidate
	tokens     int64
	model      string
}

func (g *Generator) chunkedChapters(ctx context.Context, in Input, progress ProgressFunc) (chaptersResult, error) {
	chunks := transcript.ChunkSentences(in.Sentences, in.Duration, g.opts.Chunk)
	g.logger.Info("chunked chapter analysis",
		logging.String(logging.FieldEventType, "chunk_analysis_start"),
		logging.Int("chunk_count", len(chunks)),
		logging.Float64("duration_seconds", in.Duration))

	var (
		mu   sync.Mutex
		done int
	)
	sampler := logging.NewProgressSampler(25)
	tasks := make([]fanout.Task[chunkTopics], len(chunks))
	for i, chunk := range chunks {
		tasks[i] = func(ctx context.Context) (chunkTopics, error) {
			res, err := g.analyzeChunk(ctx, chunk, len(chunks))
			if err != nil {
				return chunkTopics{}, err
			}
			mu.Lock()
			done++
			percent := analysisProgressStart + analysisProgressSpan*float64(done)/float64(len(chunks))
			message := fmt.Sprintf("Analyzed %d of %d sections", done, len(chunks))
			emit := sampler.Observe(done, len(chunks))
			progress(percent, message)
			mu.Unlock()
			if emit {
				g.logger.Debug("chunk analysis progress", logging.String(logging.FieldProgressMessage, message))
			}
			return res, nil
		}
	}

	results, err := fanout.RunAll(ctx, g.opts.ChunkConcurrency, tasks)
	if err != nil {
		return chaptersResult{}, err
	}

	var (
		candidates []transcript.Candidate
		tokens     int64
		model      string
	)
	for _, res := range results {
		candidates = append(candidates, res.candidates...)
		tokens += res.tokens
		if model == "" {
			model = res.model
		}
	}
	unique := transcript.Dedupe(candidates)
	final := transcript.Allocate(unique, in.Duration, g.opts.Allocate)
	early, late := transcript.SplitAtBoundary(unique, in.Duration, g.opts.Allocate)
	keptEarly, keptLate := transcript.SplitAtBoundary(final, in.Duration, g.opts.Allocate)
	g.logger.Info("chapter topics allocated",
		logging.String(logging.FieldEventType, "chunk_analysis_complete"),
		logging.Int("candidate_count", len(candidates)),
		logging.Int("unique_count", len(unique)),
		logging.Int("early_candidates", early),
		logging.Int("late_candidates", late),
		logging.Int("early_kept", keptEarly),
		logging.Int("late_kept", keptLate),
		logging.Int("chapter_count", len(final)),
		logging.Int64("tokens", tokens))
	if len(final) == 0 {
		return chaptersResult{tokens: tokens, model: model}, nil
	}

	chapters := make([]artifact.Chapter, 0, len(final))
	for _, c := range final {
		chapters = append(chapters, artifact.Chapter{Title: c.Title, StartTime: c.StartTime, Summary: c.Summary})
	}
	return chaptersResult{
		chapters: artifact.FinalizeChapters(chapters, in.Duration),
		tokens:   tokens,
		model:    model,
	}, nil
}

// analyzeChunk asks for the topics starting inside one window. Provider and
// parse failures are logged and yield no candidates; only cancellation is
// returned as an error.
func (g *Generator) analyzeChunk(ctx context.Context, chunk transcript.Chunk, total int) (chunkTopics, error) {
	if len(chunk.Sentences) == 0 {
		return chunkTopics{}, nil
	}
	resp, err := g.provider.Generate(ctx, generation.Request{
		Operation:   "chunk_topics",
		System:      fmt.Sprintf(topicsSystemPrompt, g.opts.TopicsPerChunk),
		User:        topicsUserPrompt(chunk, total),
		JSON:        true,
		Temperature: 0.3,
		MaxTokens:   500,
	})
	if err != nil {
		if ctx.Err() != nil {
			return chunkTopics{}, ctx.Err()
		}
		g.logChunkFailure(chunk, err)
		return chunkTopics{}, nil
	}
	topics, err := artifact.ParseTopicCandidates(resp.Content, g.opts.TopicsPerChunk)
	if err != nil {
		g.logChunkFailure(chunk, err)
		return chunkTopics{tokens: resp.Usage.Total()}, nil
	}
	out := chunkTopics{tokens: resp.Usage.Total(), model: resp.ModelLabel()}
	dropped := 0
	for _, topic := range topics {
		candidate := topic.Candidate()
		// A topic must start inside the window it was found in.
		if candidate.StartTime < chunk.Start || candidate.StartTime > chunk.End {
			dropped++
			continue
		}
		out.candidates = append(out.candidates, candidate)
	}
	if dropped > 0 {
		g.logger.Debug("topics outside their window dropped",
			logging.Int("chunk_index", chunk.Index),
			logging.Float64("chunk_start", chunk.Start),
			logging.Float64("chunk_end", chunk.End),
			logging.Int("dropped", dropped))
	}
	return out, nil
}

func (g *Generator) logChunkFailure(chunk transcript.Chunk, err error) {
	g.logger.Warn("chunk analysis failed",
		logging.String(logging.FieldEventType, "chunk_analysis_failed"),
		logging.Int("chunk_index", chunk.Index),
		logging.Float64("chunk_start", chunk.Start),
		logging.Float64("chunk_end", chunk.End),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check provider output for the topic prompts"),
		logging.String(logging.FieldImpact, "topics starting in this window may be missing from chapters"))
}
