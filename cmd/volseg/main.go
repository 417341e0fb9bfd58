// Command volseg runs the segmentation-mask refinement pipeline from the
// command line. Volumes and masks are exchanged as raw voxel dumps
// (little-endian int16 intensities, uint8 masks) so the tool stays
// independent of any medical file format; DICOM/NIfTI conversion belongs
// to external tooling.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"volseg/internal/session"
	"volseg/pkg/config"
	"volseg/pkg/roi"
	"volseg/pkg/segment"
	"volseg/pkg/volume"
	"volseg/pkg/worker"
)

func main() {
	configPath := flag.String("config", "volseg.yaml", "Path to the YAML configuration file")
	createConfig := flag.Bool("create-config", false, "Write the default configuration to -config and exit")
	volumePath := flag.String("volume", "", "Raw int16 little-endian volume file")
	maskPath := flag.String("mask", "", "Optional raw uint8 mask file; skips segmentation")
	dims := flag.String("dims", "", "Volume dimensions as depth,height,width")
	spacingFlag := flag.String("spacing", "1,1,1", "Voxel spacing in mm as x,y,z")
	roi1Flag := flag.String("roi1", "", "First ROI as slice:xmin,xmax,ymin,ymax")
	roi2Flag := flag.String("roi2", "", "Second ROI as slice:xmin,xmax,ymin,ymax")
	presetFlag := flag.String("preset", "", "Refinement preset name (default: config default)")
	outPath := flag.String("out", "refined_mask.raw", "Output path for the refined mask")
	flag.Parse()

	if *createConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg)

	if *volumePath == "" || *dims == "" {
		flag.Usage()
		os.Exit(1)
	}

	shape, err := parseShape(*dims)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -dims")
	}
	spacing, err := parseSpacing(*spacingFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -spacing")
	}

	vol, err := readVolume(*volumePath, shape, spacing)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read volume")
	}
	log.Info().Stringer("shape", shape).Msg("volume loaded")

	sess := session.New(log)
	if err := sess.LoadVolume(vol); err != nil {
		log.Fatal().Err(err).Msg("failed to load volume into session")
	}

	if *maskPath != "" {
		mask, err := readMask(*maskPath, shape)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to read mask")
		}
		if err := sess.AdoptMask(mask); err != nil {
			log.Fatal().Err(err).Msg("failed to adopt mask")
		}
	} else {
		if err := runSegmentation(sess, cfg, *roi1Flag, *roi2Flag, log); err != nil {
			log.Fatal().Err(err).Msg("segmentation failed")
		}
	}

	presetName := *presetFlag
	if presetName == "" {
		presetName = cfg.Refinement.Default
	}
	params, err := cfg.Preset(presetName)
	if err != nil {
		log.Fatal().Err(err).Msg("unknown preset")
	}
	log.Info().Str("preset", presetName).Msg("starting refinement")

	handle, err := sess.Refine(params)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start refinement")
	}
	watchProgress(handle, log)
	if _, err := handle.Wait(); err != nil {
		log.Fatal().Err(err).Msg("refinement failed")
	}

	printReport(sess)

	if err := sess.Save(func(m *volume.Mask) error {
		return writeMask(*outPath, m)
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to save mask")
	}
	fmt.Printf("\nRefined mask saved to: %s\n", *outPath)
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr)
	if cfg.Logging.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func runSegmentation(sess *session.Session, cfg *config.Config, roi1, roi2 string, log zerolog.Logger) error {
	if roi1 == "" || roi2 == "" {
		return fmt.Errorf("segmentation needs -roi1 and -roi2 (or provide -mask)")
	}
	r1, err := parseRect(roi1)
	if err != nil {
		return fmt.Errorf("invalid -roi1: %w", err)
	}
	r2, err := parseRect(roi2)
	if err != nil {
		return fmt.Errorf("invalid -roi2: %w", err)
	}
	if err := sess.SetFirstRoi(r1); err != nil {
		return err
	}
	if err := sess.SetSecondRoi(r2); err != nil {
		return err
	}

	backend, err := segment.New(cfg.Segmentation.Backend)
	if err != nil {
		return err
	}
	if t, ok := backend.(*segment.Threshold); ok {
		t.Low = cfg.Segmentation.HuMin
		t.High = cfg.Segmentation.HuMax
	}

	handle, err := sess.Segment(backend)
	if err != nil {
		return err
	}
	watchProgress(handle, log)
	if _, err := handle.Wait(); err != nil {
		return err
	}
	stats := sess.LastSegmentation()
	log.Info().
		Str("backend", stats.Backend).
		Int("voxels", stats.VoxelCount).
		Dur("elapsed", stats.Elapsed).
		Msg("segmentation finished")
	return nil
}

func watchProgress(handle *worker.Handle, log zerolog.Logger) {
	go func() {
		for p := range handle.Progress {
			log.Info().Int("pct", p.Percentage).Msg(p.Message)
		}
	}()
}

func printReport(sess *session.Session) {
	result := sess.LastRefinement()
	if result == nil {
		return
	}

	fmt.Printf("\nRefinement report\n")
	fmt.Printf("=================\n")
	fmt.Printf("Base voxels:  %d\n", result.BaseCount)
	fmt.Printf("Final voxels: %d\n", result.FinalCount)
	fmt.Printf("Improvement:  %+.1f%%\n", result.ImprovementPercent)
	fmt.Printf("Volume:       %.2f ml\n", result.VolumeML)
	fmt.Printf("Elapsed:      %s\n\n", result.Elapsed)

	for _, step := range result.Steps {
		fmt.Printf("  %-22s %8d -> %8d voxels", step.Name, step.VoxelsBefore, step.VoxelsAfter)
		if step.ComponentsTotal > 0 {
			fmt.Printf("  (components: %d kept, %d removed)", step.ComponentsKept, step.ComponentsRemoved)
		}
		if step.SlicesProcessed > 0 {
			fmt.Printf("  (%d slices)", step.SlicesProcessed)
		}
		fmt.Println()
	}

	if diff, err := sess.MaskDifference(); err == nil {
		fmt.Printf("\nMask difference vs. pre-refinement:\n")
		fmt.Printf("  added=%d removed=%d unchanged=%d dice=%.3f\n",
			diff.Added, diff.Removed, diff.Unchanged, diff.Dice)
	}

	if stats, err := volume.MaskedIntensity(sess.Volume(), sess.Mask()); err == nil && stats.Count > 0 {
		fmt.Printf("\nMask intensity: mean=%.1f HU, stddev=%.1f, range=[%.0f, %.0f]\n",
			stats.Mean, stats.StdDev, stats.Min, stats.Max)
	}
}

// parseShape parses "depth,height,width".
func parseShape(s string) (volume.Shape, error) {
	var shape volume.Shape
	if _, err := fmt.Sscanf(s, "%d,%d,%d", &shape.Z, &shape.Y, &shape.X); err != nil {
		return shape, fmt.Errorf("expected depth,height,width: %w", err)
	}
	if shape.Z <= 0 || shape.Y <= 0 || shape.X <= 0 {
		return shape, fmt.Errorf("dimensions must be positive, got %s", shape)
	}
	return shape, nil
}

// parseSpacing parses "x,y,z".
func parseSpacing(s string) (volume.Spacing, error) {
	var sp volume.Spacing
	if _, err := fmt.Sscanf(s, "%g,%g,%g", &sp.X, &sp.Y, &sp.Z); err != nil {
		return sp, fmt.Errorf("expected x,y,z: %w", err)
	}
	if sp.X <= 0 || sp.Y <= 0 || sp.Z <= 0 {
		return sp, fmt.Errorf("spacing must be positive")
	}
	return sp, nil
}

// parseRect parses "slice:xmin,xmax,ymin,ymax".
func parseRect(s string) (roi.Rect, error) {
	var r roi.Rect
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return r, fmt.Errorf("expected slice:xmin,xmax,ymin,ymax")
	}
	if _, err := fmt.Sscanf(parts[0], "%d", &r.Slice); err != nil {
		return r, fmt.Errorf("invalid slice index: %w", err)
	}
	if _, err := fmt.Sscanf(parts[1], "%d,%d,%d,%d", &r.XMin, &r.XMax, &r.YMin, &r.YMax); err != nil {
		return r, fmt.Errorf("invalid bounds: %w", err)
	}
	return r, nil
}

// readVolume loads a raw little-endian int16 voxel dump.
func readVolume(path string, shape volume.Shape, spacing volume.Spacing) (*volume.Volume, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	want := shape.Len() * 2
	if len(data) != want {
		return nil, fmt.Errorf("volume file is %d bytes, expected %d for shape %s", len(data), want, shape)
	}
	vol := volume.NewVolume(shape, spacing, volume.Origin{}, volume.IdentityDirection)
	for i := range vol.Data {
		vol.Data[i] = float64(int16(binary.LittleEndian.Uint16(data[2*i:])))
	}
	return vol, nil
}

// readMask loads a raw uint8 mask dump; any nonzero byte is foreground.
func readMask(path string, shape volume.Shape) (*volume.Mask, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) != shape.Len() {
		return nil, fmt.Errorf("mask file is %d bytes, expected %d for shape %s", len(data), shape.Len(), shape)
	}
	mask := volume.NewMask(shape)
	for i, b := range data {
		if b != 0 {
			mask.Data[i] = 1
		}
	}
	return mask, nil
}

// writeMask dumps the mask as raw uint8 bytes.
func writeMask(path string, m *volume.Mask) error {
	return os.WriteFile(path, m.Data, 0644)
}
