package ffmpeg

import "time"

// VideoInfo contains metadata about a video file
type VideoInfo struct {
	FilePath   string
	Duration   time.Duration
	Width      int
	Height     int
	FPS        float64
	Bitrate    int64
	VideoCodec string
	HasAudio   bool
	AudioCodec string
}

// Progress represents ffmpeg progress data
type Progress struct {
	Frame   int
	FPS     float64
	Bitrate string
	Time    string
	Speed   string
}

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args            []string
	ProgressHandler func(*Progress)
	LogHandler      func(line string)
}

// ProgressFunc is a callback for progress updates during ffmpeg operations.
// Called periodically with progress information as the operation executes.
type ProgressFunc func(*Progress)

// Default encoding settings
const (
	DefaultCRF        = 23
	DefaultPreset     = "medium"
	DefaultVideoCodec = "libx264"
	DefaultPixFmt     = "yuv420p"
)

// Default working and output resolution
const (
	DefaultWorkWidth  = 1280
	DefaultWorkHeight = 720
)

// EncodeOptions configures the output encoder of a rendered plan
type EncodeOptions struct {
	VideoCodec string
	// CRF nil selects DefaultCRF; 0 is lossless
	CRF    *int
	Preset string
}

func (o EncodeOptions) withDefaults() EncodeOptions {
	if o.VideoCodec == "" {
		o.VideoCodec = DefaultVideoCodec
	}
	if o.CRF == nil {
		crf := DefaultCRF
		o.CRF = &crf
	}
	if o.Preset == "" {
		o.Preset = DefaultPreset
	}
	return o
}
