// Package notes turns a merged transcript into study notes.
//
// A Generator issues the generation calls for one job: per-chunk topic
// analysis for long content, chapter generation, structured notes, and
// batch transliteration of non-English transcripts. Independent calls fan
// out through fanout.RunAll; the chapters and structured-notes tasks fail
// together so that no partial notes reach the caller.
package notes
