// Package transcript turns raw caption fragments into the units the notes
// generator works on.
//
// The four steps are pure functions and run in this order:
//   - Merge joins short timed fragments into sentences, splitting on real
//     sentence punctuation and forcing a split once duration, word, or
//     fragment limits are reached.
//   - Chunk slides an overlapping time window across the sentences so long
//     content can be analysed in pieces that fit a model's context.
//   - Dedupe drops topic candidates whose normalized titles were already seen.
//   - Allocate picks the final, time-ordered topics, reserving part of the
//     budget for the late portion of the content.
//
// None of these functions perform I/O; callers own logging and persistence.
package transcript
