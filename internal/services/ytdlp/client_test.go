package ytdlp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"unicode/utf8"

	"dubflow/internal/logging"
	"dubflow/internal/services"
	"dubflow/internal/stage"
	"dubflow/internal/testsupport"
	"dubflow/internal/textutil"
)

type recorded struct {
	name string
	args []string
}

func TestResolveParsesEntries(t *testing.T) {
	var calls []recorded
	runner := func(_ context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, recorded{name: name, args: args})
		url := args[len(args)-1]
		if strings.Contains(url, "playlist") {
			return []byte(strings.Join([]string{
				`{"id":"a1","title":"First","webpage_url":"https://v/a1","uploader":"Chan","upload_date":"20240101"}`,
				`[download] some progress noise`,
				`{"id":"a2","title":"Second","url":"https://v/a2","channel":"Chan","upload_date":"20240102"}`,
			}, "\n")), nil
		}
		return []byte(`{"id":"b1","title":"Solo","webpage_url":"https://v/b1","uploader":"Other","upload_date":"20231212"}`), nil
	}
	client := New("", logging.NewNop(), WithCommandRunner(runner))

	items, err := client.Resolve(context.Background(), []string{"https://v/playlist", "https://v/b1"}, 2)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	titles := make([]string, 0, len(items))
	for _, item := range items {
		titles = append(titles, item.Title)
	}
	if !slices.Equal(titles, []string{"First", "Second", "Solo"}) {
		t.Fatalf("titles = %v", titles)
	}
	if items[1].URL != "https://v/a2" || items[1].Uploader != "Chan" {
		t.Fatalf("fallback fields not applied: %+v", items[1])
	}
	if items[0].Kind != stage.KindRemote {
		t.Fatalf("kind = %q", items[0].Kind)
	}
	if calls[0].name != DefaultBinary {
		t.Fatalf("binary = %q", calls[0].name)
	}
	joined := strings.Join(calls[0].args, " ")
	if !strings.Contains(joined, "--playlist-end 2") || !strings.Contains(joined, "--dump-json") {
		t.Fatalf("unexpected args %q", joined)
	}
}

func TestResolveFailsWithoutOutput(t *testing.T) {
	runner := func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("ERROR: unsupported URL")
	}
	client := New("yt-dlp", logging.NewNop(), WithCommandRunner(runner))
	if _, err := client.Resolve(context.Background(), []string{"https://bad"}, 5); err == nil {
		t.Fatal("expected error")
	}
}

func TestResolveKeepsPartialOutput(t *testing.T) {
	runner := func(context.Context, string, ...string) ([]byte, error) {
		return []byte(`{"id":"x","title":"Kept","upload_date":"20240101"}`), errors.New("exit status 1")
	}
	client := New("yt-dlp", logging.NewNop(), WithCommandRunner(runner))
	items, err := client.Resolve(context.Background(), []string{"https://v/list"}, 5)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Kept" {
		t.Fatalf("items = %+v", items)
	}
}

func TestTargetFolder(t *testing.T) {
	client := New("", logging.NewNop())
	tests := []struct {
		name string
		item stage.WorkItem
		want string
		ok   bool
	}{
		{"complete", stage.WorkItem{Title: "Talk: Go?", Uploader: "Some/One", UploadDate: "20240101"}, "/root/Some-One/20240101 Talk- Go", true},
		{"unknown uploader", stage.WorkItem{Title: "Talk", UploadDate: "20240101"}, "/root/Unknown/20240101 Talk", true},
		{"missing date", stage.WorkItem{Title: "Talk", Uploader: "A"}, "", false},
		{"missing title", stage.WorkItem{Uploader: "A", UploadDate: "20240101"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := client.TargetFolder(tt.item, "/root")
			if ok != tt.ok || got != tt.want {
				t.Fatalf("TargetFolder = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestTargetFolderCapsSegmentBytes(t *testing.T) {
	client := New("", logging.NewNop())
	item := stage.WorkItem{Title: strings.Repeat("测", 160), Uploader: "频道", UploadDate: "20240101"}

	folder, ok := client.TargetFolder(item, "/root")
	if !ok {
		t.Fatal("expected a target folder")
	}
	base := filepath.Base(folder)
	if len(base) > textutil.MaxSegmentBytes {
		t.Fatalf("segment is %d bytes, want at most %d", len(base), textutil.MaxSegmentBytes)
	}
	if !utf8.ValidString(base) {
		t.Fatalf("segment is not valid UTF-8: %q", base)
	}
	if !strings.HasPrefix(base, "20240101 测") {
		t.Fatalf("segment lost its date prefix: %q", base)
	}
	if filepath.Dir(folder) != filepath.Join("/root", "频道") {
		t.Fatalf("folder = %q", folder)
	}
}

func TestDownloadWritesVideo(t *testing.T) {
	root := t.TempDir()
	var got []string
	runner := func(_ context.Context, _ string, args ...string) ([]byte, error) {
		got = args
		for i, arg := range args {
			if arg == "-o" {
				dest := strings.Replace(args[i+1], "%(ext)s", "mp4", 1)
				testsupport.WriteFile(t, dest, 64)
			}
		}
		return nil, nil
	}
	client := New("", logging.NewNop(), WithCommandRunner(runner), WithFFmpeg("/opt/ffmpeg"))
	item := stage.WorkItem{Title: "Clip", Uploader: "U", UploadDate: "20240101", URL: "https://v/1"}

	res := client.Download(context.Background(), item, root, "720p")
	if !res.OK() {
		t.Fatalf("Download: %v", res.Err)
	}
	want := filepath.Join(root, "U", "20240101 Clip", VideoFileName)
	if res.Artifact != want {
		t.Fatalf("artifact = %q, want %q", res.Artifact, want)
	}
	joined := strings.Join(got, " ")
	for _, fragment := range []string{"height<=720", "--ffmpeg-location /opt/ffmpeg", "https://v/1"} {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("expected %q in %q", fragment, joined)
		}
	}
}

func TestDownloadSkipsExistingVideo(t *testing.T) {
	root := t.TempDir()
	item := stage.WorkItem{Title: "Clip", Uploader: "U", UploadDate: "20240101", URL: "https://v/1"}
	testsupport.WriteFile(t, filepath.Join(root, "U", "20240101 Clip", VideoFileName), 32)

	called := false
	runner := func(context.Context, string, ...string) ([]byte, error) {
		called = true
		return nil, nil
	}
	client := New("", logging.NewNop(), WithCommandRunner(runner))
	if res := client.Download(context.Background(), item, root, "1080p"); !res.OK() {
		t.Fatalf("Download: %v", res.Err)
	}
	if called {
		t.Fatal("yt-dlp should not run for an existing video")
	}
}

func TestDownloadFailures(t *testing.T) {
	root := t.TempDir()
	failing := func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("HTTP Error 403")
	}
	silent := func(context.Context, string, ...string) ([]byte, error) {
		return nil, nil
	}
	item := stage.WorkItem{Title: "Clip", Uploader: "U", UploadDate: "20240101", URL: "https://v/1"}

	res := New("", logging.NewNop(), WithCommandRunner(failing)).Download(context.Background(), item, root, "1080p")
	if !errors.Is(res.Err, services.ErrDownload) {
		t.Fatalf("expected download error, got %v", res.Err)
	}
	res = New("", logging.NewNop(), WithCommandRunner(silent)).Download(context.Background(), item, root, "1080p")
	if res.OK() {
		t.Fatal("expected failure when no file is produced")
	}
	noDate := stage.WorkItem{Title: "Clip", URL: "https://v/1"}
	res = New("", logging.NewNop(), WithCommandRunner(silent)).Download(context.Background(), noDate, root, "1080p")
	if !errors.Is(res.Err, services.ErrFolderResolution) {
		t.Fatalf("expected folder resolution error, got %v", res.Err)
	}
	if _, err := os.Stat(filepath.Join(root, "Unknown")); !os.IsNotExist(err) {
		t.Fatal("no folder should be created for an unresolvable item")
	}
}

func TestHeight(t *testing.T) {
	tests := map[string]int{"1080p": 1080, "720P": 720, " 480p ": 480, "best": 0, "": 0}
	for input, want := range tests {
		if got := Height(input); got != want {
			t.Fatalf("Height(%q) = %d, want %d", input, got, want)
		}
	}
}
