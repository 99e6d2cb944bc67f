package notes

import (
	"context"
	"strings"

	"scribe/internal/artifact"
	"scribe/internal/fanout"
	"scribe/internal/generation"
	"scribe/internal/language"
	"scribe/internal/logging"
	"scribe/internal/transcript"
)

// NeedsTransliteration reports whether a transcript language is something
// other than English.
func NeedsTransliteration(code string) bool {
	return strings.TrimSpace(code) != "" && !language.IsEnglish(code)
}

// TransliterationResult is the English rendition of a transcript.
type TransliterationResult struct {
	Sentences []transcript.Sentence
	Text      string
	Tokens    int64
}

type batchResult struct {
	sentences []transcript.Sentence
	tokens    int64
}

// Transliterate converts sentences to English in numbered batches. Timing is
// preserved. A failed batch keeps its original text.
func (g *Generator) Transliterate(ctx context.Context, sentences []transcript.Sentence, language string) (TransliterationResult, error) {
	size := g.opts.TransliterationBatch
	var tasks []fanout.Task[batchResult]
	for start := 0; start < len(sentences); start += size {
		batch := sentences[start:min(start+size, len(sentences))]
		tasks = append(tasks, func(ctx context.Context) (batchResult, error) {
			return g.transliterateBatch(ctx, batch, language)
		})
	}
	g.logger.Info("transliterating transcript",
		logging.String(logging.FieldEventType, "transliteration_start"),
		logging.String("language", language),
		logging.Int("sentence_count", len(sentences)),
		logging.Int("batch_count", len(tasks)))

	results, err := fanout.RunAll(ctx, g.opts.TransliterationParallel, tasks)
	if err != nil {
		return TransliterationResult{}, err
	}

	out := TransliterationResult{Sentences: make([]transcript.Sentence, 0, len(sentences))}
	texts := make([]string, 0, len(sentences))
	for _, res := range results {
		out.Sentences = append(out.Sentences, res.sentences...)
		out.Tokens += res.tokens
		for _, s := range res.sentences {
			texts = append(texts, s.Text)
		}
	}
	out.Text = strings.Join(texts, " ")
	return out, nil
}

func (g *Generator) transliterateBatch(ctx context.Context, batch []transcript.Sentence, language string) (batchResult, error) {
	lines := make([]string, len(batch))
	for i, s := range batch {
		lines[i] = s.Text
	}
	original := append([]transcript.Sentence(nil), batch...)

	resp, err := g.provider.Generate(ctx, generation.Request{
		Operation:   "transliteration",
		System:      transliterationSystemPrompt,
		User:        transliterationUserPrompt(lines, language),
		Temperature: 0.2,
		MaxTokens:   4000,
	})
	if err != nil {
		if ctx.Err() != nil {
			return batchResult{}, ctx.Err()
		}
		g.logger.Warn("transliteration batch failed",
			logging.String(logging.FieldEventType, "transliteration_batch_failed"),
			logging.Int("batch_size", len(batch)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check generation provider status"),
			logging.String(logging.FieldImpact, "these lines stay in the source language"))
		return batchResult{sentences: original}, nil
	}

	converted := artifact.ParseNumberedLines(resp.Content)
	for i := range original {
		if text, ok := converted[i+1]; ok && strings.TrimSpace(text) != "" {
			original[i].Text = text
		}
	}
	return batchResult{sentences: original, tokens: resp.Usage.Total()}, nil
}
