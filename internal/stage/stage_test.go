package stage

import (
	"context"
	"testing"
)

func TestWorkItemLabel(t *testing.T) {
	tests := []struct {
		name string
		item WorkItem
		want string
	}{
		{name: "title", item: WorkItem{Title: "Demo", URL: "https://x"}, want: "Demo"},
		{name: "path", item: WorkItem{Path: "/v/clip/download.mp4"}, want: "/v/clip/download.mp4"},
		{name: "url", item: WorkItem{URL: "https://x"}, want: "https://x"},
		{name: "id", item: WorkItem{ID: "abc"}, want: "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.Label(); got != tt.want {
				t.Fatalf("Label() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLocalItemUsesFolderName(t *testing.T) {
	item := LocalItem("/videos/clip/download.mp4")
	if item.Title != "clip" || !item.IsLocal() {
		t.Fatalf("unexpected item: %+v", item)
	}
}

func TestNameOrderAndLabels(t *testing.T) {
	if NameTranslate.Index() != 3 {
		t.Fatalf("expected translate at index 3, got %d", NameTranslate.Index())
	}
	if Name("bogus").Index() != -1 {
		t.Fatal("expected unknown stage index -1")
	}
	if NameTranslate.FailureLabel() != "翻译失败" {
		t.Fatalf("unexpected label %q", NameTranslate.FailureLabel())
	}
}

func TestParseMethods(t *testing.T) {
	if m, err := ParseASRMethod("whisperx"); err != nil || m != ASRWhisperX {
		t.Fatalf("ParseASRMethod: %v %v", m, err)
	}
	if m, err := ParseTranslationMethod("google translate"); err != nil || m != TranslationGoogle {
		t.Fatalf("ParseTranslationMethod: %v %v", m, err)
	}
	if m, err := ParseTTSMethod("edgetts"); err != nil || m != TTSEdge {
		t.Fatalf("ParseTTSMethod: %v %v", m, err)
	}
	if _, err := ParseTTSMethod("espeak"); err == nil {
		t.Fatal("expected error for unknown method")
	}
}

func TestExecutionParamsFloors(t *testing.T) {
	var e ExecutionParams
	if e.Attempts() != 1 || e.Workers() != 1 {
		t.Fatalf("expected floors of 1, got %d/%d", e.Attempts(), e.Workers())
	}
}

type nopTranslator struct{}

func (nopTranslator) Translate(context.Context, string, TranslationParams) Result { return Ok("") }

func TestSetValidateReportsMissingEngine(t *testing.T) {
	set := Set{
		Downloader:   nil,
		Translators:  map[TranslationMethod]Translator{TranslationLLM: nopTranslator{}},
		Transcribers: map[ASRMethod]Transcriber{},
	}
	if err := set.Validate(Params{}); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := set.Translator(TranslationLLM); err != nil {
		t.Fatalf("expected registered translator: %v", err)
	}
	if _, err := set.Translator(TranslationErnie); err == nil {
		t.Fatal("expected missing translator error")
	}
}
