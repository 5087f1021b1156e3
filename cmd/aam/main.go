package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/esimov/aam"
	"github.com/esimov/aam/config"
	"github.com/esimov/aam/logger"
	"github.com/esimov/aam/utils"
	"go.uber.org/zap"
)

const HelpBanner = `
┌─┐┌─┐┌┬┐
├─┤├─┤│││
┴ ┴┴ ┴┴ ┴

Active appearance model training and fitting.
    Version: %s

`

// pipeName is the file name that indicates stdin/stdout is being used.
const pipeName = "-"

// Version indicates the current build version.
var Version string

var (
	// Flags
	source      = flag.String("in", pipeName, "Source image, directory or URL")
	destination = flag.String("out", pipeName, "Destination image or directory")
	modelPath   = flag.String("model", "", "Trained model file")
	trainDir    = flag.String("train", "", "Train a model from the annotated images of this directory and save it to -model")
	configPath  = flag.String("config", "", "YAML configuration file")
	strategy    = flag.String("strategy", "", "Fitting strategy: pose or shape")
	iterations  = flag.Int("iter", 0, "Number of fitting iterations")
	damping     = flag.Float64("damping", 0, "Update damping factor")
	jitter      = flag.Float64("jitter", -1, "Random translation applied to the initial pose, in pixels")
	blurRadius  = flag.Float64("blur", -1, "Gaussian blur sigma applied before fitting")
	cascade     = flag.String("cc", "", "Face detection cascade classifier")
	faceAngle   = flag.Float64("angle", -1, "Plane rotated faces angle")
	blendMode   = flag.String("blend", "", "Blend mode of the rendered model")
	workers     = flag.Int("conc", runtime.NumCPU(), "Number of files to process concurrently")
	debug       = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	os.Exit(run())
}

// run executes the command and returns the process exit code, letting the
// deferred cleanups complete before the process exits.
func run() int {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, HelpBanner, Version)
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return printError(err)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return printError(err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.LogFile)
	defer logger.Sync()

	// Capture CTRL-C and cancel the running sessions.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *modelPath == "" {
		flag.Usage()
		return printError(fmt.Errorf("please provide the model file with -model"))
	}

	if *trainDir != "" {
		if err := train(cfg, *trainDir, *modelPath); err != nil {
			return printError(err)
		}
		return 0
	}
	if err := fit(ctx, cfg); err != nil {
		return printError(err)
	}
	return 0
}

// applyFlags overrides the configuration with the flags set on the command line.
func applyFlags(cfg *config.Config) {
	if *strategy != "" {
		cfg.Fit.Strategy = *strategy
	}
	if *iterations > 0 {
		cfg.Fit.Iterations = *iterations
	}
	if *damping > 0 {
		cfg.Fit.Damping = *damping
	}
	if *jitter >= 0 {
		cfg.Fit.Jitter = *jitter
	}
	if *blurRadius >= 0 {
		cfg.Output.BlurRadius = *blurRadius
	}
	if *cascade != "" {
		cfg.Detect.Cascade = *cascade
	}
	if *faceAngle >= 0 {
		cfg.Detect.Angle = *faceAngle
	}
	if *blendMode != "" {
		cfg.Output.Blend = *blendMode
	}
	if *workers > 0 {
		cfg.Output.Workers = *workers
	}
	if *debug {
		cfg.Logging.Level = "debug"
	}
}

func train(cfg *config.Config, dir, out string) error {
	now := time.Now()
	ts, err := aam.LoadASFTrainingSet(dir, cfg.Train.Channels)
	if err != nil {
		return err
	}
	logger.Info("training set loaded", zap.String("dir", dir), zap.Int("images", len(ts)))

	var bar *pb.ProgressBar
	trainer := &aam.Trainer{
		ShapeLoss:            cfg.Train.ShapeLoss,
		AppearanceLoss:       cfg.Train.AppearanceLoss,
		MaxShapeModes:        cfg.Train.MaxShapeModes,
		MaxAppearanceModes:   cfg.Train.MaxAppearanceModes,
		ProcrustesIterations: cfg.Train.ProcrustesIterations,
		Channels:             cfg.Train.Channels,
		Logger:               logger.Log,
		Progress: func(stage string, done, total int) {
			if stage != aam.StageTextures {
				return
			}
			if bar == nil {
				bar = pb.StartNew(total)
			}
			bar.SetCurrent(int64(done))
		},
	}
	model, err := trainer.Train(ts)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}
	if err := model.SaveFile(out); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "\nThe model has been saved as: %s\nTraining time: %s\n",
		utils.DecorateText(out, utils.SuccessMessage),
		utils.DecorateText(utils.FormatTime(time.Since(now)), utils.SuccessMessage),
	)
	return nil
}

func fit(ctx context.Context, cfg *config.Config) error {
	model, err := aam.LoadFile(*modelPath)
	if err != nil {
		return err
	}
	strat, err := aam.ParseStrategy(cfg.Fit.Strategy)
	if err != nil {
		return err
	}

	proc := &aam.Processor{
		Model:           model,
		Strategy:        strat,
		Iterations:      cfg.Fit.Iterations,
		Damping:         cfg.Fit.Damping,
		Tolerance:       cfg.Fit.Tolerance,
		JitterAmplitude: cfg.Fit.Jitter,
		Seed:            cfg.Fit.Seed,
		BlurRadius:      cfg.Output.BlurRadius,
		FaceAngle:       cfg.Detect.Angle,
		MinSize:         cfg.Detect.MinSize,
		MaxSize:         cfg.Detect.MaxSize,
		ShiftFactor:     cfg.Detect.ShiftFactor,
		ScaleFactor:     cfg.Detect.ScaleFactor,
		IoUThreshold:    cfg.Detect.IoUThreshold,
		QThreshold:      5,
		FaceScale:       cfg.Detect.FaceScale,
		DrawShape:       cfg.Output.DrawShape,
		DrawTriangles:   cfg.Output.DrawTriangles,
		BlendMode:       cfg.Output.Blend,
		Logger:          logger.Log,
	}
	if cfg.Detect.Enabled && cfg.Detect.Cascade != "" {
		if err := proc.LoadCascade(cfg.Detect.Cascade); err != nil {
			return err
		}
	}

	return proc.Execute(ctx, &aam.Ops{
		Src:      *source,
		Dst:      *destination,
		PipeName: pipeName,
		Workers:  cfg.Output.Workers,
	})
}

// printError writes the error to stderr and returns the failure exit code.
func printError(err error) int {
	fmt.Fprintf(os.Stderr, "%s%s\n", utils.DecorateText(err.Error(), utils.ErrorMessage), utils.DefaultColor)
	return 1
}
