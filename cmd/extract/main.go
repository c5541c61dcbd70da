// Command extract runs the extraction pipeline over a text file without the
// HTTP server or database. Useful for checking insurer configs and prompt
// behavior against a captured OCR dump.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/Dee-Olulo/OCR-system/internal/config"
	"github.com/Dee-Olulo/OCR-system/internal/extraction"
	"github.com/Dee-Olulo/OCR-system/internal/insurer"
	"github.com/Dee-Olulo/OCR-system/internal/pipeline"
	"github.com/Dee-Olulo/OCR-system/internal/table"
	"github.com/Dee-Olulo/OCR-system/pkg/utils"
	"github.com/subosito/gotenv"
)

func main() {
	_ = gotenv.Load()

	var (
		filePath   = flag.String("file", "", "path to OCR text file (required)")
		insurerKey = flag.String("insurer", "", "insurer key; auto-detected when empty")
		configPath = flag.String("config", "configs/config.yaml", "path to config file")
	)
	flag.Parse()

	if *filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: "stderr",
		Format:     "console",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	text, err := os.ReadFile(*filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read input file: %v\n", err)
		os.Exit(1)
	}

	client := extraction.NewOpenAIClient(extraction.ClientConfig{
		APIKey:      cfg.Model.APIKey,
		BaseURL:     cfg.Model.BaseURL,
		Model:       cfg.Model.Name,
		Temperature: cfg.Model.Temperature,
		MaxTokens:   cfg.Model.MaxTokens,
		Timeout:     cfg.Model.Timeout,
		MaxRetries:  cfg.Model.MaxRetries,
	}, logger)

	mapper := insurer.NewMapper(insurer.NewFileStore(cfg.Insurers.ConfigDir), logger)
	orchestrator := extraction.NewOrchestrator(client, table.NewExtractor(logger), logger)
	svc := pipeline.NewService(orchestrator, mapper, cfg.Model.Name, logger)

	outcome, err := svc.Process(context.Background(), string(text), *insurerKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Extraction failed: %v\n", err)
		os.Exit(1)
	}

	encoded, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode outcome: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(encoded))
}
