package services_test

import (
	"errors"
	"strings"
	"testing"

	"dubflow/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTranslation, "translate", "llm", "segment failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTranslation) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"translate", "llm", "segment failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestDetails(t *testing.T) {
	cause := errors.New("exit status 1")
	err := services.WithHint(services.Wrap(services.ErrSeparation, "separate", "demucs", "", cause), "check GPU memory")
	details := services.Details(err)
	if details.Kind != services.KindSeparation {
		t.Fatalf("unexpected kind %q", details.Kind)
	}
	if details.Stage != "separate" || details.Operation != "demucs" {
		t.Fatalf("unexpected context: %+v", details)
	}
	if details.Message != "exit status 1" {
		t.Fatalf("expected cause text as message, got %q", details.Message)
	}
	if details.Hint != "check GPU memory" {
		t.Fatalf("unexpected hint %q", details.Hint)
	}

	plain := services.Details(errors.New("plain"))
	if plain.Kind != services.KindUnknown || plain.Message != "plain" {
		t.Fatalf("unexpected plain details: %+v", plain)
	}
	if services.Details(nil).Kind != services.KindUnknown {
		t.Fatal("expected unknown kind for nil error")
	}
}

func TestClassification(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		permanent  bool
		batchFatal bool
	}{
		{"folder", services.Wrap(services.ErrFolderResolution, "download", "", "", nil), true, false},
		{"download", services.Wrap(services.ErrDownload, "download", "", "", nil), false, false},
		{"init", services.Wrap(services.ErrInit, "backend", "", "", nil), false, true},
		{"source", services.Wrap(services.ErrSourceResolution, "resolve", "", "", nil), false, true},
		{"plain", errors.New("x"), false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.IsPermanent(tc.err); got != tc.permanent {
				t.Fatalf("IsPermanent = %v, want %v", got, tc.permanent)
			}
			if got := services.IsBatchFatal(tc.err); got != tc.batchFatal {
				t.Fatalf("IsBatchFatal = %v, want %v", got, tc.batchFatal)
			}
		})
	}
}
