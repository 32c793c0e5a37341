package workflow_test

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"dubflow/internal/logging"
	"dubflow/internal/services"
	"dubflow/internal/stage"
	"dubflow/internal/testsupport"
	"dubflow/internal/workflow"
)

func testParams(t *testing.T, maxRetries int) stage.Params {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Execution.MaxRetries = maxRetries
	return cfg.Params()
}

func remoteItem(title string) stage.WorkItem {
	return stage.WorkItem{
		Kind:       stage.KindRemote,
		Title:      title,
		URL:        "https://example.com/watch?v=" + title,
		Uploader:   "uploader",
		UploadDate: "20240101",
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestRunnerRunsStagesInOrder(t *testing.T) {
	fake := testsupport.NewFakeStages()
	root := t.TempDir()
	runner := workflow.NewRunner(fake.Set(), root, logging.NewNop())

	outcome := runner.Run(context.Background(), remoteItem("A"), testParams(t, 3))
	if !outcome.Succeeded() {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if want := filepath.Join(root, "A", "video.mp4"); outcome.Video != want {
		t.Fatalf("video = %q, want %q", outcome.Video, want)
	}
	if outcome.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", outcome.Attempts)
	}
	if got := fake.ItemCalls("A"); !slices.Equal(got, stage.Order) {
		t.Fatalf("stage order = %v, want %v", got, stage.Order)
	}
}

func TestRunnerRetryBound(t *testing.T) {
	for _, maxRetries := range []int{1, 3, 5} {
		fake := testsupport.NewFakeStages()
		fake.Failures["A/translate"] = -1
		runner := workflow.NewRunner(fake.Set(), t.TempDir(), logging.NewNop(), workflow.WithSleeper(noSleep))

		outcome := runner.Run(context.Background(), remoteItem("A"), testParams(t, maxRetries))
		if outcome.Succeeded() {
			t.Fatalf("max_retries=%d: expected failure", maxRetries)
		}
		if outcome.Attempts != maxRetries {
			t.Fatalf("max_retries=%d: attempts = %d", maxRetries, outcome.Attempts)
		}
		if got := fake.Calls(stage.NameTranslate); got != maxRetries {
			t.Fatalf("max_retries=%d: translate calls = %d", maxRetries, got)
		}
		// Every retry starts over at download.
		if got := fake.Calls(stage.NameDownload); got != maxRetries {
			t.Fatalf("max_retries=%d: download calls = %d", maxRetries, got)
		}
		if got := fake.Calls(stage.NameSynthesize); got != 0 {
			t.Fatalf("max_retries=%d: synthesize should not run, got %d", maxRetries, got)
		}
		if outcome.FailedStage != stage.NameTranslate {
			t.Fatalf("failed stage = %q", outcome.FailedStage)
		}
		if !errors.Is(outcome.Err, services.ErrTranslation) {
			t.Fatalf("expected translation marker, got %v", outcome.Err)
		}
		if !strings.HasPrefix(outcome.Message, "翻译失败") {
			t.Fatalf("message = %q", outcome.Message)
		}
	}
}

func TestRunnerZeroRetriesStillAttemptsOnce(t *testing.T) {
	fake := testsupport.NewFakeStages()
	fake.Failures["A/download"] = -1
	runner := workflow.NewRunner(fake.Set(), t.TempDir(), logging.NewNop())

	outcome := runner.Run(context.Background(), remoteItem("A"), testParams(t, 0))
	if outcome.Attempts != 1 || fake.Calls(stage.NameDownload) != 1 {
		t.Fatalf("expected a single attempt, got attempts=%d downloads=%d", outcome.Attempts, fake.Calls(stage.NameDownload))
	}
}

func TestRunnerFolderResolutionIsPermanent(t *testing.T) {
	fake := testsupport.NewFakeStages()
	fake.NoFolder["A"] = true
	runner := workflow.NewRunner(fake.Set(), t.TempDir(), logging.NewNop(), workflow.WithSleeper(noSleep))

	outcome := runner.Run(context.Background(), remoteItem("A"), testParams(t, 5))
	if outcome.Succeeded() {
		t.Fatal("expected failure")
	}
	if outcome.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", outcome.Attempts)
	}
	if got := fake.Calls(stage.NameDownload); got != 1 {
		t.Fatalf("folder lookups = %d, want 1", got)
	}
	if got := fake.Calls(stage.NameSeparate); got != 0 {
		t.Fatalf("separate calls = %d, want 0", got)
	}
	if !errors.Is(outcome.Err, services.ErrFolderResolution) {
		t.Fatalf("expected folder resolution marker, got %v", outcome.Err)
	}
	if outcome.Message != "无法获取视频目标文件夹: A" {
		t.Fatalf("message = %q", outcome.Message)
	}
}

func TestRunnerRecoversAfterTransientFailures(t *testing.T) {
	fake := testsupport.NewFakeStages()
	fake.Failures["A/separate"] = 2
	runner := workflow.NewRunner(fake.Set(), t.TempDir(), logging.NewNop(), workflow.WithSleeper(noSleep))

	outcome := runner.Run(context.Background(), remoteItem("A"), testParams(t, 5))
	if !outcome.Succeeded() {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if outcome.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", outcome.Attempts)
	}
	if got := fake.Calls(stage.NameDownload); got != 3 {
		t.Fatalf("download calls = %d, want 3", got)
	}
}

func TestRunnerResumeFromFailedStage(t *testing.T) {
	fake := testsupport.NewFakeStages()
	fake.Failures["A/synthesize"] = 1
	params := testParams(t, 3)
	params.Execution.ResumeFromFailedStage = true
	runner := workflow.NewRunner(fake.Set(), t.TempDir(), logging.NewNop(), workflow.WithSleeper(noSleep))

	outcome := runner.Run(context.Background(), remoteItem("A"), params)
	if !outcome.Succeeded() {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if outcome.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", outcome.Attempts)
	}
	for _, name := range []stage.Name{stage.NameDownload, stage.NameSeparate, stage.NameTranscribe, stage.NameTranslate} {
		if got := fake.Calls(name); got != 1 {
			t.Fatalf("%s calls = %d, want 1", name, got)
		}
	}
	if got := fake.Calls(stage.NameSynthesize); got != 2 {
		t.Fatalf("synthesize calls = %d, want 2", got)
	}
}

func TestRunnerTreatsPanicAsRetryable(t *testing.T) {
	fake := testsupport.NewFakeStages()
	fake.Panics["A/transcribe"] = "boom"
	runner := workflow.NewRunner(fake.Set(), t.TempDir(), logging.NewNop(), workflow.WithSleeper(noSleep))

	outcome := runner.Run(context.Background(), remoteItem("A"), testParams(t, 2))
	if !outcome.Succeeded() {
		t.Fatalf("expected recovery on second attempt, got %+v", outcome)
	}
	if outcome.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", outcome.Attempts)
	}

	fake = testsupport.NewFakeStages()
	fake.Panics["A/transcribe"] = "boom"
	runner = workflow.NewRunner(fake.Set(), t.TempDir(), logging.NewNop())
	outcome = runner.Run(context.Background(), remoteItem("A"), testParams(t, 1))
	if outcome.Succeeded() {
		t.Fatal("expected failure")
	}
	if outcome.Message != "处理视频时发生错误 A: boom" {
		t.Fatalf("message = %q", outcome.Message)
	}
	if outcome.FailedStage != stage.NameTranscribe {
		t.Fatalf("failed stage = %q", outcome.FailedStage)
	}
}

func TestRunnerBacksOffBetweenAttempts(t *testing.T) {
	fake := testsupport.NewFakeStages()
	fake.Failures["A/composite"] = -1
	params := testParams(t, 4)
	params.Execution.RetryDelay = time.Second
	params.Execution.RetryMaxDelay = 3 * time.Second

	var delays []time.Duration
	sleeper := func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	runner := workflow.NewRunner(fake.Set(), t.TempDir(), logging.NewNop(), workflow.WithSleeper(sleeper))
	runner.Run(context.Background(), remoteItem("A"), params)

	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}
	if !slices.Equal(delays, want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
}

func TestRunnerStopsWhenCancelledDuringBackoff(t *testing.T) {
	fake := testsupport.NewFakeStages()
	fake.Failures["A/download"] = -1
	sleeper := func(context.Context, time.Duration) error { return context.Canceled }
	runner := workflow.NewRunner(fake.Set(), t.TempDir(), logging.NewNop(), workflow.WithSleeper(sleeper))

	outcome := runner.Run(context.Background(), remoteItem("A"), testParams(t, 5))
	if outcome.Succeeded() {
		t.Fatal("expected failure")
	}
	if outcome.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", outcome.Attempts)
	}
	if !strings.HasPrefix(outcome.Message, "处理已取消") {
		t.Fatalf("message = %q", outcome.Message)
	}
	if !errors.Is(outcome.Err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain, got %v", outcome.Err)
	}
}

func TestRunnerMissingEngineIsPermanent(t *testing.T) {
	fake := testsupport.NewFakeStages()
	set := fake.Set()
	set.Translators = nil
	runner := workflow.NewRunner(set, t.TempDir(), logging.NewNop(), workflow.WithSleeper(noSleep))

	outcome := runner.Run(context.Background(), remoteItem("A"), testParams(t, 5))
	if outcome.Succeeded() {
		t.Fatal("expected failure")
	}
	if outcome.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", outcome.Attempts)
	}
	if !errors.Is(outcome.Err, services.ErrConfiguration) {
		t.Fatalf("expected configuration marker, got %v", outcome.Err)
	}
}

func TestRunnerLocalItemSkipsDownload(t *testing.T) {
	fake := testsupport.NewFakeStages()
	root := t.TempDir()
	path := filepath.Join(root, "clip", "download.mp4")
	testsupport.WriteFile(t, path, 16)
	runner := workflow.NewRunner(fake.Set(), root, logging.NewNop())

	outcome := runner.Run(context.Background(), stage.LocalItem(path), testParams(t, 1))
	if !outcome.Succeeded() {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if got := fake.Calls(stage.NameDownload); got != 0 {
		t.Fatalf("download calls = %d, want 0", got)
	}
	if want := filepath.Join(root, "clip", "video.mp4"); outcome.Video != want {
		t.Fatalf("video = %q, want %q", outcome.Video, want)
	}
}

func TestRunnerHonorsStageConcurrency(t *testing.T) {
	fake := testsupport.NewFakeStages()
	fake.Hold = func(name stage.Name) {
		if name == stage.NameSeparate {
			time.Sleep(20 * time.Millisecond)
		}
	}
	params := testParams(t, 1)
	params.Execution.StageConcurrency = map[stage.Name]int{stage.NameSeparate: 1}
	runner := workflow.NewRunner(fake.Set(), t.TempDir(), logging.NewNop())

	var wg sync.WaitGroup
	for _, title := range []string{"A", "B", "C", "D"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if outcome := runner.Run(context.Background(), remoteItem(title), params); !outcome.Succeeded() {
				t.Errorf("%s failed: %s", title, outcome.Message)
			}
		}()
	}
	wg.Wait()

	if got := fake.Calls(stage.NameSeparate); got != 4 {
		t.Fatalf("separate calls = %d, want 4", got)
	}
	if peak := fake.Peak(stage.NameSeparate); peak != 1 {
		t.Fatalf("separate peak concurrency = %d, want 1", peak)
	}
}
