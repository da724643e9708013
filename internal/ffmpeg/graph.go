package ffmpeg

import (
	"fmt"
	"strings"

	"github.com/kikiluvv/spotlight/internal/clips"
)

// OutputLabel is the filter graph pad carrying the concatenated video
const OutputLabel = "[outv]"

// PipelineDescription is a complete filter_complex graph for one edit plan.
// It describes work only; nothing runs until it is handed to an Executor.
type PipelineDescription struct {
	// Chains holds one trim/setpts/crop/scale chain per segment followed by
	// the concat chain
	Chains []string
	// Labels are the per-segment output pads in concat order
	Labels []string
	Output string
	OutW   int
	OutH   int
}

// FilterComplex joins the chains into the -filter_complex argument
func (d *PipelineDescription) FilterComplex() string {
	return strings.Join(d.Chains, ";")
}

// Args returns the ffmpeg arguments that apply the graph to input and write
// a video-only stream to output
func (d *PipelineDescription) Args(input, output string, enc EncodeOptions) []string {
	enc = enc.withDefaults()
	return []string{
		"-i", input,
		"-filter_complex", d.FilterComplex(),
		"-map", d.Output,
		"-an",
		"-c:v", enc.VideoCodec,
		"-crf", fmt.Sprintf("%d", *enc.CRF),
		"-preset", enc.Preset,
		"-pix_fmt", DefaultPixFmt,
		output,
	}
}

// Synthesize turns an edit plan into a crop-per-segment plus concat graph.
// Crops are computed against the plan's working resolution. Identical plans
// always produce identical descriptions.
func Synthesize(plan clips.EditPlan) (*PipelineDescription, error) {
	if plan.Empty() {
		return nil, ErrEmptyPlan
	}

	workW, workH := plan.WorkW, plan.WorkH
	if workW <= 0 || workH <= 0 {
		workW, workH = DefaultWorkWidth, DefaultWorkHeight
	}
	outW, outH := plan.OutW, plan.OutH
	if outW <= 0 || outH <= 0 {
		outW, outH = workW, workH
	}

	desc := &PipelineDescription{
		Chains: make([]string, 0, len(plan.Segments)+1),
		Labels: make([]string, 0, len(plan.Segments)),
		Output: OutputLabel,
		OutW:   outW,
		OutH:   outH,
	}

	for i, seg := range plan.Segments {
		if err := seg.Validate(workW, workH); err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		x, y, w, h := seg.Crop(workW, workH)

		chain := NewFilterBuilder().
			Trim(seg.Start, seg.End).
			ResetTimestamps().
			Crop(w, h, x, y).
			Scale(outW, outH).
			Build()

		label := fmt.Sprintf("[v%d]", i)
		desc.Chains = append(desc.Chains, "[0:v]"+chain+label)
		desc.Labels = append(desc.Labels, label)
	}

	desc.Chains = append(desc.Chains, fmt.Sprintf("%sconcat=n=%d:v=1:a=0%s",
		strings.Join(desc.Labels, ""), len(desc.Labels), desc.Output))

	return desc, nil
}
