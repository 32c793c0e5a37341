// Package translator translates an item's transcript with an
// OpenAI-compatible chat model. It first asks the model for a JSON summary
// of the whole video, then translates line by line with the summary and the
// last few line pairs as context.
package translator
