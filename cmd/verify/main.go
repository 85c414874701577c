package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/Suryanandx/2d-code-verifier/internal/config"
	"github.com/Suryanandx/2d-code-verifier/internal/container"
	"github.com/Suryanandx/2d-code-verifier/internal/decoder"
	"github.com/Suryanandx/2d-code-verifier/internal/logger"
	"github.com/Suryanandx/2d-code-verifier/internal/service"
	"github.com/Suryanandx/2d-code-verifier/internal/storage"
	"github.com/Suryanandx/2d-code-verifier/pkg/models"
)

const (
	exitError      = 1
	exitBelowGrade = 3
)

func main() {
	fs := ff.NewFlagSet("verify")
	var (
		expected       = fs.StringLong("expected", "", "Expected payload to compare the decoded data against")
		threshold      = fs.IntLong("threshold", -1, "Light/dark threshold for symbol contrast (0-255, -1 keeps the default)")
		gridSize       = fs.IntLong("grid-size", 0, "Grid size for grid non-uniformity (0 keeps the default)")
		channel        = fs.StringLong("channel", "", "Scan channel: red, green, blue or gray")
		axis           = fs.StringLong("axis", "", "Scan axis: horizontal or vertical")
		scanMode       = fs.StringLong("scan-mode", "", "Scan mode: located or fixed")
		decoderMode    = fs.StringLong("decoder", string(decoder.ModeAuto), "Decoder: auto, exec, zxing or none")
		decoderCommand = fs.StringLong("decoder-command", decoder.DefaultCommand, "External decoder command line")
		gradeTables    = fs.StringLong("grade-tables", "", "YAML file overriding the grade threshold tables")
		decodeTimeout  = fs.DurationLong("decode-timeout", 0, "Decode timeout (0 keeps the default)")
		reportsDB      = fs.StringLong("reports-db", "", "BoltDB file to store reports in (empty disables)")
		minGrade       = fs.StringLong("min-grade", "", "Exit with status 3 when any overall grade is below this letter")
		logLevel       = fs.StringLong("log-level", "warn", "Log level")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("VERIFIER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitError)
	}

	paths := fs.GetArgs()
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintln(os.Stderr, "error: no image files given")
		os.Exit(exitError)
	}

	logger.SetOutput(os.Stderr)
	logger.Configure(*logLevel)

	var floor models.Grade
	if *minGrade != "" {
		g, err := models.ParseGrade(*minGrade)
		if err != nil || !g.IsLetter() {
			fmt.Fprintf(os.Stderr, "error: invalid --min-grade %q\n", *minGrade)
			os.Exit(exitError)
		}
		floor = g
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitError)
	}
	if cfg.Decoder, err = decoder.ParseMode(*decoderMode); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitError)
	}
	cfg.DecoderCommand = *decoderCommand
	cfg.GradeTablesPath = *gradeTables
	cfg.ReportsDBPath = *reportsDB
	if *decodeTimeout > 0 {
		cfg.DecodeTimeout = *decodeTimeout
	}

	uploadDir, err := os.MkdirTemp("", "verify-uploads-")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitError)
	}
	cfg.UploadDir = uploadDir
	cfg.UploadRetention = storage.RetentionDelete

	c, err := container.NewContainer(cfg)
	if err != nil {
		os.RemoveAll(uploadDir)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, c.Service(), paths, *expected, overrides(*threshold, *gridSize, *channel, *axis, *scanMode), floor)
	stop()

	if err := c.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.RemoveAll(uploadDir)
	os.Exit(code)
}

func run(ctx context.Context, svc service.VerificationService, paths []string, expected string, o *models.AnalysisOverrides, floor models.Grade) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	code := 0
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			code = exitError
			continue
		}

		result, err := svc.VerifyUpload(ctx, service.UploadRequest{
			FileName:     filepath.Base(path),
			Data:         data,
			ExpectedData: expected,
			Overrides:    o,
			ImageRef:     path,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			code = exitError
			continue
		}

		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			code = exitError
			continue
		}
		if floor.IsLetter() && result.OverallGrade < floor && code == 0 {
			code = exitBelowGrade
		}
	}
	return code
}

func overrides(threshold, gridSize int, channel, axis, scanMode string) *models.AnalysisOverrides {
	var o models.AnalysisOverrides
	set := false
	if threshold >= 0 {
		o.Threshold, set = &threshold, true
	}
	if gridSize > 0 {
		o.GridSize, set = &gridSize, true
	}
	if channel != "" {
		o.Channel, set = &channel, true
	}
	if axis != "" {
		o.Axis, set = &axis, true
	}
	if scanMode != "" {
		o.ScanMode, set = &scanMode, true
	}
	if !set {
		return nil
	}
	return &o
}
