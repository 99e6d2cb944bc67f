package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	consoleFieldLimit = 6
	consoleValueLimit = 120
	consoleErrorLimit = 200
)

// consolePriority orders the fields shown on info lines. Anything else
// fills the remaining slots in record order.
var consolePriority = []string{
	FieldAlert,
	FieldEventType,
	FieldDecisionType,
	FieldDecisionResult,
	FieldDecisionReason,
	FieldErrorKind,
	FieldErrorHint,
	"error_message",
	"error",
	"state",
	"provider",
	"model",
	"language",
	"attempt",
	"chunk_count",
	"topics",
	"chapters",
	"tokens_used",
	"cloned_from",
	"stage_duration",
}

// consoleDebugOnly never appear on info lines.
var consoleDebugOnly = map[string]bool{
	FieldCorrelationID: true,
	FieldSessionID:     true,
	FieldWorker:        true,
	"url":              true,
	"base_url":         true,
	"prompt_chars":     true,
}

var consoleLabels = map[string]string{
	FieldEventType:      "Event",
	FieldDecisionType:   "Decision",
	FieldDecisionResult: "Decision",
	FieldDecisionReason: "Because",
	FieldErrorHint:      "Hint",
	FieldSourceID:       "Source",
	FieldOwner:          "Owner",
	"stage_duration":    "Took",
	"tokens_used":       "Tokens",
}

type field struct {
	key   string
	value slog.Value
}

// consoleSink is shared by every handler derived from one logger.
type consoleSink struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
	// last remembers the info fields printed per job so unchanged values
	// are not repeated line after line.
	last map[string]map[string]string
	// title is stateful, so it lives under mu.
	title cases.Caser
}

type consoleHandler struct {
	sink      *consoleSink
	level     slog.Leveler
	addSource bool
	prefix    string
	fields    []field
}

func newConsoleHandler(w io.Writer, level slog.Leveler, addSource, color bool) *consoleHandler {
	return &consoleHandler{
		sink: &consoleSink{
			w:     w,
			color: color,
			last:  map[string]map[string]string{},
			title: cases.Title(language.English),
		},
		level:     level,
		addSource: addSource,
	}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.fields = slices.Clone(h.fields)
	for _, attr := range attrs {
		next.fields = appendFlat(next.fields, h.prefix, attr)
	}
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	fields := slices.Clone(h.fields)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendFlat(fields, h.prefix, attr)
		return true
	})
	fields = lastWins(fields)

	var component, jobID, stage string
	body := fields[:0:0]
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			component = f.value.String()
			continue
		case FieldJobID:
			jobID = f.value.String()
		case FieldStage:
			stage = f.value.String()
		}
		body = append(body, f)
	}

	var b strings.Builder
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	b.WriteString(ts.Local().Format("2006-01-02 15:04:05"))
	b.WriteByte(' ')
	b.WriteString(h.paint(record.Level))
	if component != "" {
		fmt.Fprintf(&b, " [%s]", component)
	}
	if subject := jobSubject(jobID, stage); subject != "" {
		b.WriteByte(' ')
		b.WriteString(subject)
	}
	b.WriteString(" - ")
	if msg := strings.TrimSpace(record.Message); msg != "" {
		b.WriteString(msg)
	} else {
		b.WriteString("(no message)")
	}
	if h.addSource && record.PC != 0 {
		if src := record.Source(); src != nil {
			fmt.Fprintf(&b, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	b.WriteByte('\n')

	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	if record.Level < slog.LevelInfo {
		writeDebugFields(&b, body)
	} else {
		h.writeInfoFields(&b, record.Level, jobKey(jobID, body), body)
	}
	_, err := io.WriteString(h.sink.w, b.String())
	return err
}

func writeDebugFields(b *strings.Builder, fields []field) {
	for _, f := range fields {
		fmt.Fprintf(b, "    %s=%s\n", f.key, quoteIfNeeded(plainValue(f.value)))
	}
}

// writeInfoFields prints up to consoleFieldLimit labelled fields on one line.
// Warnings and errors always print every selected field.
func (h *consoleHandler) writeInfoFields(b *strings.Builder, level slog.Level, key string, fields []field) {
	var seen map[string]string
	if key != "" {
		if seen = h.sink.last[key]; seen == nil {
			seen = map[string]string{}
			h.sink.last[key] = seen
		}
	}

	var shown []string
	hidden := 0
	for _, f := range orderForConsole(fields) {
		if f.key == FieldJobID || f.key == FieldStage {
			continue
		}
		if consoleDebugOnly[f.key] || strings.HasSuffix(f.key, "_path") {
			hidden++
			continue
		}
		value := displayValue(f.key, f.value)
		if value == "" || (len(value) > consoleValueLimit && !isErrorKey(f.key)) {
			hidden++
			continue
		}
		if seen != nil {
			if level <= slog.LevelInfo && seen[f.key] == value {
				continue
			}
			seen[f.key] = value
		}
		if len(shown) == consoleFieldLimit {
			hidden++
			continue
		}
		shown = append(shown, h.sink.label(f.key)+": "+value)
	}
	if len(shown) == 0 && hidden == 0 {
		return
	}
	b.WriteString("    ")
	b.WriteString(strings.Join(shown, " · "))
	if hidden > 0 {
		if len(shown) > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(b, "(+%d hidden)", hidden)
	}
	b.WriteByte('\n')
}

func (h *consoleHandler) paint(level slog.Level) string {
	label, color := "DEBUG", "\x1b[90m"
	switch {
	case level >= slog.LevelError:
		label, color = "ERROR", "\x1b[31m"
	case level >= slog.LevelWarn:
		label, color = "WARN", "\x1b[33m"
	case level >= slog.LevelInfo:
		label, color = "INFO", "\x1b[36m"
	}
	if !h.sink.color {
		return label
	}
	return color + label + "\x1b[0m"
}

func jobSubject(jobID, stage string) string {
	switch {
	case jobID != "" && stage != "":
		return "Job #" + jobID + " (" + stage + ")"
	case jobID != "":
		return "Job #" + jobID
	default:
		return stage
	}
}

func jobKey(jobID string, fields []field) string {
	if jobID != "" {
		return "job:" + jobID
	}
	for _, f := range fields {
		if f.key == FieldSourceID {
			return "source:" + f.value.String()
		}
	}
	return ""
}

// appendFlat resolves attr and appends it, expanding groups into dotted keys.
func appendFlat(dst []field, prefix string, attr slog.Attr) []field {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	if attr.Value.Kind() == slog.KindGroup {
		inner := prefix
		if attr.Key != "" {
			inner = prefix + attr.Key + "."
		}
		for _, member := range attr.Value.Group() {
			dst = appendFlat(dst, inner, member)
		}
		return dst
	}
	return append(dst, field{key: prefix + attr.Key, value: attr.Value})
}

// lastWins keeps the first position of each key with its final value.
func lastWins(fields []field) []field {
	index := make(map[string]int, len(fields))
	out := fields[:0:0]
	for _, f := range fields {
		if f.key == "" {
			continue
		}
		if i, ok := index[f.key]; ok {
			out[i].value = f.value
			continue
		}
		index[f.key] = len(out)
		out = append(out, f)
	}
	return out
}

func orderForConsole(fields []field) []field {
	ordered := make([]field, 0, len(fields))
	taken := make([]bool, len(fields))
	for _, key := range consolePriority {
		for i, f := range fields {
			if !taken[i] && f.key == key {
				ordered = append(ordered, f)
				taken[i] = true
			}
		}
	}
	for i, f := range fields {
		if !taken[i] {
			ordered = append(ordered, f)
		}
	}
	return ordered
}

func (s *consoleSink) label(key string) string {
	if label, ok := consoleLabels[key]; ok {
		return label
	}
	return s.title.String(strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(key))
}

func isErrorKey(key string) bool {
	return key == "error" || key == "error_message"
}

// displayValue formats v for an info line: human durations, percents,
// yes/no booleans and truncated errors.
func displayValue(key string, v slog.Value) string {
	switch v.Kind() {
	case slog.KindDuration:
		return humanDuration(v.Duration())
	case slog.KindBool:
		if v.Bool() {
			return "yes"
		}
		return "no"
	case slog.KindFloat64:
		if strings.HasSuffix(key, "_percent") {
			return strconv.FormatFloat(v.Float64(), 'f', -1, 64) + "%"
		}
	}
	value := strings.TrimSpace(plainValue(v))
	if isErrorKey(key) && len(value) > consoleErrorLimit {
		value = value[:consoleErrorLimit] + "…"
	}
	return value
}

func plainValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindTime:
		return v.Time().Local().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}

func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(100 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}
