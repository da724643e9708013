package ffmpeg

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kikiluvv/spotlight/internal/annotations"
	"github.com/kikiluvv/spotlight/internal/clips"
	"github.com/rs/zerolog"
)

// skipIfNoFFmpeg skips the test if ffmpeg is not available
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH - install with: brew install ffmpeg")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH - install with: brew install ffmpeg")
	}
}

var (
	boxA = annotations.BoundingBox{Width: 0.25, Height: 0.5, Left: 0.5, Top: 0.25}
	boxB = annotations.BoundingBox{Width: 0.1, Height: 0.2, Left: 0.3, Top: 0.4}
)

func twoSegmentPlan() clips.EditPlan {
	return clips.EditPlan{
		Segments: []clips.Segment{
			{Start: 0, End: 1.5, Box: boxA},
			{Start: 1.5, End: 4, Box: boxB},
		},
		WorkW: 1280,
		WorkH: 720,
		OutW:  1280,
		OutH:  720,
	}
}

func TestExecutorCreation(t *testing.T) {
	skipIfNoFFmpeg(t)

	exec := New(zerolog.New(os.Stderr), Options{Threads: 4})
	if !exec.Available() {
		t.Fatal("expected ffmpeg to be available")
	}
	if exec.ffmpegPath == "" {
		t.Error("ffmpeg path is empty")
	}
	if exec.ffprobePath == "" {
		t.Error("ffprobe path is empty")
	}

	t.Logf("ffmpeg: %s", exec.ffmpegPath)
	t.Logf("ffprobe: %s", exec.ffprobePath)
}

func TestRunMissingBinary(t *testing.T) {
	exec := New(zerolog.Nop(), Options{FFmpegPath: "spotlight-no-such-ffmpeg"})
	if exec.Available() {
		t.Fatal("binary should not resolve")
	}

	err := exec.Run(context.Background(), RunOptions{Args: []string{"-version"}})
	if !errors.Is(err, ErrPipelineExecutionFailed) {
		t.Fatalf("expected ErrPipelineExecutionFailed, got %v", err)
	}
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *ExecutionError, got %T", err)
	}
	if errors.Is(err, ErrEmptyPlan) {
		t.Error("execution failure must not look like a plan error")
	}
}

func TestRunNonZeroExit(t *testing.T) {
	skipIfNoFFmpeg(t)

	exec := New(zerolog.Nop(), Options{})
	err := exec.Run(context.Background(), RunOptions{
		Args: []string{"-i", "spotlight-missing-input.mp4", "-f", "null", "-"},
	})

	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *ExecutionError, got %v", err)
	}
	if execErr.ExitCode == 0 {
		t.Error("expected non-zero exit code")
	}
	if execErr.Output == "" {
		t.Error("expected diagnostic output to be captured")
	}
	t.Logf("Error (expected): %v", err)
}

func TestRunNoArgs(t *testing.T) {
	exec := New(zerolog.Nop(), Options{})
	if err := exec.Run(context.Background(), RunOptions{}); err == nil {
		t.Error("expected error for empty args")
	}
}

func TestFilterBuilder(t *testing.T) {
	fb := NewFilterBuilder()
	filter := fb.Trim(1, 2.5).ResetTimestamps().Crop(100, 50, 10, 20).Scale(1280, 720).Build()

	expected := "trim=start=1.000:end=2.500,setpts=PTS-STARTPTS,crop=100:50:10:20,scale=1280:720"
	if filter != expected {
		t.Errorf("expected %q, got %q", expected, filter)
	}
}

func TestFilterBuilderEmpty(t *testing.T) {
	fb := NewFilterBuilder()
	filter := fb.Build()

	if filter != "" {
		t.Errorf("expected empty string, got %q", filter)
	}
}

func TestFilterBuilderSkipsInvalidSizes(t *testing.T) {
	filter := NewFilterBuilder().Scale(0, 720).Crop(10, 0, 0, 0).Crop(20, 10, 1, 2).Build()

	if filter != "crop=20:10:1:2" {
		t.Errorf("expected %q, got %q", "crop=20:10:1:2", filter)
	}
}

func TestSynthesize(t *testing.T) {
	desc, err := Synthesize(twoSegmentPlan())
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	expected := []string{
		"[0:v]trim=start=0.000:end=1.500,setpts=PTS-STARTPTS,crop=320:360:640:180,scale=1280:720[v0]",
		"[0:v]trim=start=1.500:end=4.000,setpts=PTS-STARTPTS,crop=128:144:384:288,scale=1280:720[v1]",
		"[v0][v1]concat=n=2:v=1:a=0[outv]",
	}

	if got := desc.FilterComplex(); got != strings.Join(expected, ";") {
		t.Errorf("filter graph mismatch\nexpected: %s\n     got: %s", strings.Join(expected, ";"), got)
	}
	if desc.Output != "[outv]" {
		t.Errorf("expected output label [outv], got %s", desc.Output)
	}
	if len(desc.Labels) != 2 || desc.Labels[0] != "[v0]" || desc.Labels[1] != "[v1]" {
		t.Errorf("unexpected labels %v", desc.Labels)
	}
}

func TestSynthesizeEmptyPlan(t *testing.T) {
	_, err := Synthesize(clips.EditPlan{})
	if !errors.Is(err, ErrEmptyPlan) {
		t.Fatalf("expected ErrEmptyPlan, got %v", err)
	}
}

func TestSynthesizeCropsAgainstWorkingResolution(t *testing.T) {
	plan := twoSegmentPlan()
	plan.WorkW, plan.WorkH = 1920, 1080
	plan.OutW, plan.OutH = 640, 360

	desc, err := Synthesize(plan)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	want := "[0:v]trim=start=0.000:end=1.500,setpts=PTS-STARTPTS,crop=480:540:960:270,scale=640:360[v0]"
	if desc.Chains[0] != want {
		t.Errorf("expected %q, got %q", want, desc.Chains[0])
	}
}

func TestSynthesizeDefaults(t *testing.T) {
	plan := twoSegmentPlan()
	plan.WorkW, plan.WorkH, plan.OutW, plan.OutH = 0, 0, 0, 0

	desc, err := Synthesize(plan)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if desc.OutW != DefaultWorkWidth || desc.OutH != DefaultWorkHeight {
		t.Errorf("expected %dx%d output, got %dx%d", DefaultWorkWidth, DefaultWorkHeight, desc.OutW, desc.OutH)
	}
}

func TestSynthesizeInvalidSegment(t *testing.T) {
	plan := twoSegmentPlan()
	plan.Segments[1].End = 1

	_, err := Synthesize(plan)
	if !errors.Is(err, clips.ErrInvalidSegment) {
		t.Fatalf("expected ErrInvalidSegment, got %v", err)
	}
}

func TestSynthesizeIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "out", "subject.mp4")

	first, err := Synthesize(twoSegmentPlan())
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if _, err := PrepareOutput(output); err != nil {
		t.Fatalf("PrepareOutput failed: %v", err)
	}
	if err := os.WriteFile(output, []byte("previous render"), 0644); err != nil {
		t.Fatal(err)
	}

	second, err := Synthesize(twoSegmentPlan())
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	removed, err := PrepareOutput(output)
	if err != nil {
		t.Fatalf("PrepareOutput failed: %v", err)
	}

	if first.FilterComplex() != second.FilterComplex() {
		t.Error("identical plans produced different graphs")
	}
	if !removed {
		t.Error("expected previous output to be removed")
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Errorf("output should be gone, stat err = %v", err)
	}
	if err := os.WriteFile(output, []byte("new render"), 0644); err != nil {
		t.Errorf("new output could not be created: %v", err)
	}
}

func TestSeekTimestamp(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00:00.000"},
		{4500 * time.Millisecond, "00:00:04.500"},
		{time.Hour + 2*time.Minute + 3*time.Second + 7*time.Millisecond, "01:02:03.007"},
	}
	for _, tt := range tests {
		if got := seekTimestamp(tt.in); got != tt.want {
			t.Errorf("seekTimestamp(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDescriptionArgs(t *testing.T) {
	desc, err := Synthesize(twoSegmentPlan())
	if err != nil {
		t.Fatal(err)
	}

	args := desc.Args("in.mp4", "out.mp4", EncodeOptions{})
	joined := strings.Join(args, " ")

	for _, want := range []string{"-i in.mp4", "-map [outv]", "-an", "-c:v libx264", "-crf 23", "-preset medium"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
	if args[len(args)-1] != "out.mp4" {
		t.Errorf("output must be last, got %q", args[len(args)-1])
	}

	lossless := 0
	joined = strings.Join(desc.Args("in.mp4", "out.mp4", EncodeOptions{CRF: &lossless}), " ")
	if !strings.Contains(joined, "-crf 0") {
		t.Errorf("explicit crf 0 was not kept: %s", joined)
	}
}

func TestParseProbe(t *testing.T) {
	raw := []byte(`{
	  "format": {"duration": "12.5", "bit_rate": "800000"},
	  "streams": [
	    {"codec_type": "video", "codec_name": "h264", "width": 1280, "height": 720, "r_frame_rate": "30000/1001"},
	    {"codec_type": "audio", "codec_name": "aac"}
	  ]
	}`)

	info, err := parseProbe("src.mp4", raw)
	if err != nil {
		t.Fatalf("parseProbe failed: %v", err)
	}
	if info.Width != 1280 || info.Height != 720 {
		t.Errorf("expected 1280x720, got %dx%d", info.Width, info.Height)
	}
	if info.Duration.Seconds() != 12.5 {
		t.Errorf("expected 12.5s, got %v", info.Duration)
	}
	if !info.HasAudio || info.AudioCodec != "aac" {
		t.Error("audio stream not detected")
	}
	if info.FPS < 29.96 || info.FPS > 29.98 {
		t.Errorf("unexpected fps %.3f", info.FPS)
	}
}

func TestRenderPlan(t *testing.T) {
	skipIfNoFFmpeg(t)

	dir := t.TempDir()
	input := filepath.Join(dir, "source.mp4")

	// 4 seconds of test pattern at the working resolution
	gen := exec.Command("ffmpeg", "-f", "lavfi", "-i", "testsrc=duration=4:size=1280x720:rate=25",
		"-pix_fmt", "yuv420p", "-y", input)
	if err := gen.Run(); err != nil {
		t.Skipf("Could not generate test video: %v", err)
	}

	e := New(zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}), Options{Threads: 2})

	plan := twoSegmentPlan()
	plan.OutW, plan.OutH = 320, 180
	desc, err := Synthesize(plan)
	if err != nil {
		t.Fatal(err)
	}

	output := filepath.Join(dir, "out.mp4")
	if err := os.WriteFile(output, []byte("stale"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := e.RenderPlan(context.Background(), input, output, desc, RenderOptions{}); err != nil {
		t.Fatalf("RenderPlan failed: %v", err)
	}

	info, err := e.ProbeVideo(context.Background(), output)
	if err != nil {
		t.Fatalf("ProbeVideo failed: %v", err)
	}
	if info.Width != 320 || info.Height != 180 {
		t.Errorf("expected 320x180, got %dx%d", info.Width, info.Height)
	}
	if info.HasAudio {
		t.Error("output should be video-only")
	}
}

func TestProbeVideoInvalidFile(t *testing.T) {
	skipIfNoFFmpeg(t)

	exec := New(zerolog.New(os.Stderr), Options{Threads: 2})
	ctx := context.Background()

	_, err := exec.ProbeVideo(ctx, "nonexistent.mp4")
	if err == nil {
		t.Error("ProbeVideo should fail for non-existent file")
	}
	t.Logf("Error (expected): %v", err)

	invalidPath := filepath.Join(t.TempDir(), "invalid.txt")
	os.WriteFile(invalidPath, []byte("not a video"), 0644)

	_, err = exec.ProbeVideo(ctx, invalidPath)
	if err == nil {
		t.Error("ProbeVideo should fail for invalid video file")
	}
	t.Logf("Error (expected): %v", err)
}
