package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"lesion-report/internal/config"
	"lesion-report/internal/logging"
	"lesion-report/internal/pipeline"
	"lesion-report/internal/server"
)

func main() {
	// Define flags
	dicom := flag.String("dicom", "", "DICOM input: a file or a series directory")
	dicomShort := flag.String("d", "", "DICOM input (shorthand)")

	excel := flag.String("excel", "", "Timeline spreadsheet (.xlsx)")
	excelShort := flag.String("x", "", "Timeline spreadsheet (shorthand)")

	caseID := flag.String("case-id", "", "Case identifier (generated if empty)")

	outDir := flag.String("out", "", "Output directory for analysis.json, timeline.json and final_report.md")
	outShort := flag.String("o", "", "Output directory (shorthand)")

	configFile := flag.String("config", "", "YAML file with threshold and column-alias overrides")

	noValidate := flag.Bool("no-validate", false, "Skip the output schema gate (debugging only)")

	serve := flag.Bool("serve", false, "Run the HTTP API instead of a one-shot pipeline")
	port := flag.String("port", "", "HTTP port (overrides SERVER_PORT)")

	help := flag.Bool("help", false, "Show help message")
	helpShort := flag.Bool("h", false, "Help (shorthand)")

	flag.Usage = printUsage
	flag.Parse()

	if *help || *helpShort {
		printUsage()
		return
	}

	// Merge short and long flags (prefer long if both specified)
	dicomPath := *dicom
	if dicomPath == "" {
		dicomPath = *dicomShort
	}
	excelPath := *excel
	if excelPath == "" {
		excelPath = *excelShort
	}
	outputDir := *outDir
	if outputDir == "" {
		outputDir = *outShort
	}

	// .env is optional; real environments set variables directly.
	godotenv.Load()

	cfg := config.Load()
	if *configFile != "" {
		if err := cfg.ApplyFile(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if *port != "" {
		cfg.ServerPort = *port
	}

	log := logging.New(cfg.LogLevel)

	runner, err := pipeline.NewRunner(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *serve {
		srv := server.New(cfg, log, runner)
		if err := srv.ListenAndServe(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if dicomPath == "" && excelPath == "" {
		printUsage()
		os.Exit(1)
	}

	out, err := runner.Run(ctx, pipeline.Options{
		DicomPath:    dicomPath,
		ExcelPath:    excelPath,
		CaseID:       *caseID,
		OutDir:       outputDir,
		SkipValidate: *noValidate,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if outputDir == "" {
		// No output directory: print the report to stdout.
		fmt.Println(out.Report)
	} else {
		fmt.Printf("Status:   %s\n", out.Analysis.OverallStatus)
		fmt.Printf("Analysis: %s\n", out.AnalysisPath)
		if out.TimelinePath != "" {
			fmt.Printf("Timeline: %s\n", out.TimelinePath)
		}
		fmt.Printf("Report:   %s\n", out.ReportPath)
	}
}

func printUsage() {
	fmt.Println(`lesion-report - DICOM series and lesion timeline analysis

USAGE:
  lesion-report -d <path> [-x <file>] [flags]   Analyze a case
  lesion-report -serve [-port <n>]              Run the HTTP API

At least one input is required: a DICOM path (-d) or a timeline
spreadsheet (-x). With both, imaging metadata and lesion measurements
are combined into a single analysis.

FLAGS:
  -d, --dicom <path>      DICOM file or series directory
  -x, --excel <file>      Timeline spreadsheet (.xlsx)
      --case-id <id>      Case identifier (generated if empty)
  -o, --out <dir>         Write analysis.json, timeline.json and
                          final_report.md here; without it the report
                          is printed to stdout
      --config <file>     YAML overrides for thresholds and column aliases
      --no-validate       Skip the output schema gate (debugging only)
      --serve             Run the HTTP API instead of a one-shot pipeline
      --port <n>          HTTP port (overrides SERVER_PORT)
  -h, --help              Show this help message

ENVIRONMENT:
  LOG_LEVEL                     debug, info, warn, error (default: info)
  SERVER_HOST, SERVER_PORT      HTTP bind address (default: 0.0.0.0:8080)
  PROGRESSION_PCT_THRESHOLD     Progression percent threshold (default: 20)
  PROGRESSION_ABS_MM_THRESHOLD  Progression absolute threshold (default: 5)
  RESPONSE_PCT_THRESHOLD        Response percent threshold (default: 30)
  MAX_SAMPLE_SLICES             Slices sampled for pixel stats (default: 16)
  OPENAI_API_KEY                Enables narrative enrichment when set
  OPENAI_MODEL, OPENAI_BASE_URL Model and endpoint for enrichment

EXAMPLES:
  # Full analysis of a series plus its measurement timeline
  lesion-report -d /data/case01/series -x /data/case01/timeline.xlsx -o /data/case01/out

  # Imaging-only quality check, report to stdout
  lesion-report -d /data/case01/scan.dcm

  # Timeline-only classification with custom thresholds
  lesion-report -x timeline.xlsx --config thresholds.yaml -o out/

  # API mode
  lesion-report -serve -port 9090`)
}
