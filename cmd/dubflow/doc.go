// Command dubflow dubs online or local videos into another language by
// running them through download, separation, transcription, translation,
// speech synthesis, and composition.
//
//	dubflow run "https://www.youtube.com/watch?v=..." --count 3
//	dubflow run ./talk.mp4
//	dubflow history
//	dubflow backends
package main
