package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kikiluvv/spotlight/internal/api"
	"github.com/kikiluvv/spotlight/internal/config"
	"github.com/kikiluvv/spotlight/internal/ffmpeg"
	"github.com/kikiluvv/spotlight/internal/logging"
	"github.com/kikiluvv/spotlight/internal/matcher"
	"github.com/kikiluvv/spotlight/internal/pipeline"
	"github.com/kikiluvv/spotlight/internal/timeline"
	"github.com/kikiluvv/spotlight/pkg/util"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	cfgFile  string
	verbose  bool
	jsonLogs bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "spotlight",
	Short: "spotlight - find a subject in annotated video and cut around them",
	Long: "Matches labeled detections to a subject of interest, builds appearance intervals, " +
		"computes overlay geometry and renders cropped edits through ffmpeg.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logging
		logging.Init(logging.Options{Verbose: verbose, JSON: jsonLogs})

		// Load config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// Store config in context
		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./spotlight.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "structured JSON logs")

	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(intervalsCmd)
	rootCmd.AddCommand(overlayCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(annotationsCmd)
	rootCmd.AddCommand(configCmd)
}

// openPipeline loads annotations named by the config in ctx
func openPipeline(cmd *cobra.Command) (*pipeline.Pipeline, error) {
	cfg := config.FromContext(cmd.Context())
	return pipeline.Open(logging.WithComponent("cli"), cfg)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Find the instant where the subject of interest is on screen",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, err := openPipeline(cmd)
		if err != nil {
			return err
		}

		res, err := pipe.Match()
		if err != nil {
			return err
		}

		log.Info().
			Float64("seconds", res.Seconds()).
			Str("source", string(res.Source)).
			Bool("has_box", res.HasBox).
			Msg("match found")

		return printJSON(cmd, map[string]any{
			"timestampSec": res.Seconds(),
			"source":       res.Source,
			"hasBox":       res.HasBox,
			"box":          res.Box,
		})
	},
}

var intervalsCmd = &cobra.Command{
	Use:   "intervals",
	Short: "List appearance intervals for a subject",
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		compress, _ := cmd.Flags().GetBool("compress")

		pipe, err := openPipeline(cmd)
		if err != nil {
			return err
		}

		intervals, err := pipe.Intervals(subject)
		if err != nil {
			return err
		}
		if compress {
			intervals = timeline.Compress(intervals)
		}

		return printJSON(cmd, intervals)
	},
}

var overlayCmd = &cobra.Command{
	Use:   "overlay",
	Short: "Sample overlay geometry across a playback range",
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		mode, _ := cmd.Flags().GetString("mode")
		frameW, _ := cmd.Flags().GetFloat64("frame-w")
		frameH, _ := cmd.Flags().GetFloat64("frame-h")
		fromFlag, _ := cmd.Flags().GetString("from")
		toFlag, _ := cmd.Flags().GetString("to")
		step, _ := cmd.Flags().GetFloat64("step")

		if step <= 0 {
			return fmt.Errorf("step must be positive")
		}
		fromDur, err := util.ParseTimestamp(fromFlag)
		if err != nil {
			return err
		}
		toDur, err := util.ParseTimestamp(toFlag)
		if err != nil {
			return err
		}
		from, to := fromDur.Seconds(), toDur.Seconds()

		pipe, err := openPipeline(cmd)
		if err != nil {
			return err
		}

		session, err := pipe.OverlaySession(subject, frameW, frameH, mode)
		if err != nil {
			return err
		}

		type sample struct {
			T        float64 `json:"t"`
			Visible  bool    `json:"visible"`
			Geometry any     `json:"geometry,omitempty"`
		}

		var samples []sample
		for i := 0; ; i++ {
			t := from + float64(i)*step
			if t > to {
				break
			}
			g, ok := session.Sample(t)
			s := sample{T: t, Visible: ok}
			if ok {
				s.Geometry = g
			}
			samples = append(samples, s)
		}

		return printJSON(cmd, samples)
	},
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the ffmpeg filter graph for a subject's appearances",
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")

		pipe, err := openPipeline(cmd)
		if err != nil {
			return err
		}

		plan, err := pipe.PlanSubject(subject)
		if err != nil {
			return err
		}

		desc, err := pipe.Describe(plan)
		if err != nil {
			return err
		}

		cfg := pipe.Config()
		fmt.Fprintln(cmd.OutOrStdout(), desc.FilterComplex())
		log.Info().
			Int("segments", len(plan.Segments)).
			Float64("duration", plan.TotalDuration()).
			Strs("args", desc.Args(cfg.Edit.SourceVideo, cfg.OutputPath(""), ffmpeg.EncodeOptions{})).
			Msg("edit plan")

		return nil
	},
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the subject's appearances, or a still at the matched instant",
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")
		still, _ := cmd.Flags().GetString("still")
		checkRes, _ := cmd.Flags().GetBool("check-resolution")

		pipe, err := openPipeline(cmd)
		if err != nil {
			return err
		}

		if still != "" {
			res, err := pipe.Still(cmd.Context(), pipeline.StillOptions{InputPath: input, OutputPath: still})
			if err != nil {
				return err
			}
			log.Info().Str("output", still).Float64("seconds", res.Seconds()).Msg("still written")
			return nil
		}

		plan, err := pipe.PlanSubject(subject)
		if err != nil {
			return err
		}

		path, err := pipe.Render(cmd.Context(), plan, pipeline.RenderOptions{
			InputPath:       input,
			OutputPath:      output,
			CheckResolution: checkRes,
			Progress: func(p *ffmpeg.Progress) {
				log.Debug().
					Int("frame", p.Frame).
					Float64("fps", p.FPS).
					Str("speed", p.Speed).
					Msg("render progress")
			},
		})
		if err != nil {
			return err
		}

		log.Info().Str("output", path).Msg("render complete")
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the edit and overlay HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		pipe, err := openPipeline(cmd)
		if err != nil {
			return err
		}

		app := api.NewServer(logging.WithComponent("server"), pipe)

		go func() {
			<-cmd.Context().Done()
			log.Info().Msg("shutting down")
			_ = app.Shutdown()
		}()

		log.Info().Str("addr", cfg.Server.Addr).Msg("server listening")
		return app.Listen(cfg.Server.Addr)
	},
}

var annotationsCmd = &cobra.Command{
	Use:   "annotations",
	Short: "Annotation file commands",
}

var annotationsPackCmd = &cobra.Command{
	Use:   "pack [output.msgpack]",
	Short: "Re-encode the configured annotations as msgpack",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, err := openPipeline(cmd)
		if err != nil {
			return err
		}

		f, err := os.Create(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		if err := pipe.Store().EncodeMsgpack(f); err != nil {
			return err
		}

		log.Info().Str("output", args[0]).Msg("annotations packed")
		return nil
	},
}

var annotationsInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Summarize the configured annotations",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, err := openPipeline(cmd)
		if err != nil {
			return err
		}

		store := pipe.Store()
		index := matcher.IndexLabels(store.Labels())

		info := map[string]any{
			"subjects":        store.SubjectNames(),
			"subjectEvents":   len(store.Subjects()),
			"labelEvents":     len(store.Labels()),
			"labelTimestamps": len(index.Timestamps()),
			"requiredLabels":  pipe.RequiredLabels(),
		}
		if cmd.Flags().Changed("at") {
			at, _ := cmd.Flags().GetInt64("at")
			info["labelsAt"] = index.NamesAt(at)
		}

		return printJSON(cmd, info)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(config.FromContext(cmd.Context()))
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configSaveCmd = &cobra.Command{
	Use:   "save [path]",
	Short: "Write the effective configuration to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return config.FromContext(cmd.Context()).Save(args[0])
	},
}

func init() {
	intervalsCmd.Flags().String("subject", "", "subject name (default from config)")
	intervalsCmd.Flags().Bool("compress", false, "merge neighbouring intervals with the same box")

	overlayCmd.Flags().String("subject", "", "subject name (default from config)")
	overlayCmd.Flags().String("mode", "", "direct, window or pan (default from config)")
	overlayCmd.Flags().Float64("frame-w", 1280, "displayed frame width")
	overlayCmd.Flags().Float64("frame-h", 720, "displayed frame height")
	overlayCmd.Flags().String("from", "0", "first sample time (SS.mmm, MM:SS or HH:MM:SS)")
	overlayCmd.Flags().String("to", "10", "last sample time (SS.mmm, MM:SS or HH:MM:SS)")
	overlayCmd.Flags().Float64("step", 0.5, "sampling step in seconds")

	planCmd.Flags().String("subject", "", "subject name (default from config)")

	renderCmd.Flags().String("subject", "", "subject name (default from config)")
	renderCmd.Flags().String("input", "", "source video (default from config)")
	renderCmd.Flags().String("output", "", "output video (default from config)")
	renderCmd.Flags().String("still", "", "write a cropped still at the matched instant instead")
	renderCmd.Flags().Bool("check-resolution", true, "warn when the source differs from the working resolution")

	serveCmd.Flags().String("addr", "", "listen address (default from config)")

	annotationsInfoCmd.Flags().Int64("at", 0, "also list label names at this timestamp in ms")

	annotationsCmd.AddCommand(annotationsPackCmd)
	annotationsCmd.AddCommand(annotationsInfoCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSaveCmd)
}
