// Package language maps the human-facing language labels used in dubflow
// configuration (简体中文, English, 粤语, ...) to BCP-47 tags and display names.
package language
