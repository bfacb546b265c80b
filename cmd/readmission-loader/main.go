package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"wisefido-readmission/internal/loader"
	"wisefido-readmission/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080/v1", "API base url including the version prefix")
	dataDir := flag.String("data", "data", "directory holding the export files")
	patientsFile := flag.String("patients", "age.csv", "patients file (pat_id;age)")
	admissionsFile := flag.String("admissions", "admission.csv", "admissions file (pat_id;date_admission;date_discharge)")
	signalsFile := flag.String("signals", "signal.csv", "signals file (pat_id;day;hour;parameter;value)")
	timeout := flag.Duration("timeout", 10*time.Second, "per request timeout")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Parse()

	log, err := logger.NewLogger(*logLevel, "console", "readmission-loader")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	l := loader.New(loader.NewClient(*baseURL, *timeout), runID, log)
	log.Info("Starting load", zap.String("run_id", runID), zap.String("url", *baseURL))

	steps := []struct {
		file string
		load func(context.Context, []loader.Row) loader.Report
	}{
		{*patientsFile, l.LoadPatients},
		{*admissionsFile, l.LoadAdmissions},
		{*signalsFile, l.LoadSignals},
	}

	failed := 0
	for _, step := range steps {
		if step.file == "" {
			continue
		}
		path := step.file
		if !filepath.IsAbs(path) {
			path = filepath.Join(*dataDir, path)
		}
		rows, err := loader.ReadRows(path)
		if err != nil {
			log.Error("Failed to read file", zap.String("path", path), zap.Error(err))
			failed++
			continue
		}
		report := step.load(ctx, rows)
		fmt.Println(report.String())
		failed += report.Failed
		if ctx.Err() != nil {
			break
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}
