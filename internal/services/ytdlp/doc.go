// Package ytdlp resolves video, playlist, and channel URLs into work items
// and downloads each item into its folder using the yt-dlp command line.
package ytdlp
