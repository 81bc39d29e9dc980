package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/agrisense/agrisense-engine/internal/config"
	"github.com/agrisense/agrisense-engine/internal/core/domain"
	"github.com/agrisense/agrisense-engine/internal/core/ports"
	"github.com/agrisense/agrisense-engine/internal/core/usecase"
	"github.com/agrisense/agrisense-engine/internal/infrastructure/queue/nats"
	"github.com/agrisense/agrisense-engine/internal/infrastructure/repository/postgres"
	"github.com/agrisense/agrisense-engine/internal/observability/logging"
)

// seed loads one tabular file (XLSX or CSV) into durable storage as both
// harmonized records and narrative documents, then announces the change.
func main() {
	var (
		file    = flag.String("file", "", "path to .xlsx or .csv file")
		dataset = flag.String("dataset", "", "dataset name (defaults to the file name)")
		sheet   = flag.String("sheet", "", "sheet name for xlsx files (defaults to the first sheet)")
	)
	flag.Parse()
	if *file == "" {
		log.Fatal("usage: seed -file data.xlsx [-dataset name] [-sheet Sheet1]")
	}
	if *dataset == "" {
		base := filepath.Base(*file)
		*dataset = strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewJSONLogger("agrisense-seed", cfg.LogLevel)
	ctx := context.Background()

	rows, err := loadRows(*file, *sheet)
	if err != nil {
		log.Fatalf("load %s: %v", *file, err)
	}
	if len(rows) < 2 {
		log.Fatalf("%s: need a header row and at least one data row", *file)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	bus, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		logger.Warn("nats_unavailable, replicas will not auto-refresh", slog.String("error", err.Error()))
		bus = nil
	}
	var eventBus ports.EventBus
	if bus != nil {
		eventBus = bus
		defer bus.Close()
	}

	ingestion := usecase.NewIngestionService(
		postgres.NewDocumentRepository(db),
		postgres.NewRecordRepository(db),
		eventBus,
		logger,
	)

	records, documents := harmonize(*dataset, rows)
	if len(records) == 0 {
		log.Fatalf("%s: no rows with numeric measures found", *file)
	}

	if _, err := ingestion.IngestRecords(ctx, records); err != nil {
		log.Fatalf("ingest records: %v", err)
	}
	if _, err := ingestion.IngestDocuments(ctx, documents); err != nil {
		log.Fatalf("ingest documents: %v", err)
	}
	logger.Info("seed_complete",
		slog.String("dataset", *dataset),
		slog.Int("records", len(records)),
		slog.Int("documents", len(documents)))
}

func loadRows(path, sheet string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return loadXLSX(path, sheet)
	case ".csv":
		return loadCSV(path)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
}

func loadXLSX(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	return f.GetRows(sheet)
}

func loadCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	return reader.ReadAll()
}

// harmonize splits columns into dimensions and measures by whether the first
// data row parses as a number, and renders one narrative document per record
// so the semantic index can answer questions about the same rows.
func harmonize(dataset string, rows [][]string) ([]usecase.RecordInput, []usecase.DocumentInput) {
	header := rows[0]
	numeric := make([]bool, len(header))
	for col := range header {
		for _, row := range rows[1:] {
			if col >= len(row) || strings.TrimSpace(row[col]) == "" {
				continue
			}
			_, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
			numeric[col] = err == nil
			break
		}
	}

	var records []usecase.RecordInput
	var documents []usecase.DocumentInput
	for i, row := range rows[1:] {
		var dims domain.Dimensions
		measures := map[string]float64{}
		var narrative []string
		for col, name := range header {
			if col >= len(row) {
				continue
			}
			value := strings.TrimSpace(row[col])
			if value == "" {
				continue
			}
			key := strings.ToLower(strings.TrimSpace(name))
			if numeric[col] {
				v, err := strconv.ParseFloat(value, 64)
				if err != nil {
					continue
				}
				measures[key] = v
				narrative = append(narrative, fmt.Sprintf("%s %s", key, value))
			} else {
				dims = append(dims, domain.Dimension{Key: key, Value: strings.ToLower(value)})
				narrative = append(narrative, fmt.Sprintf("%s %s", key, strings.ToLower(value)))
			}
		}
		if len(measures) == 0 {
			continue
		}

		externalID := fmt.Sprintf("%s-%d", dataset, i+1)
		records = append(records, usecase.RecordInput{
			ExternalID: externalID,
			Record: domain.DatasetRecord{
				Dataset:    dataset,
				Dimensions: dims,
				Measures:   measures,
			},
		})

		state, _ := dims.Get(domain.DimensionState)
		year, _ := dims.Year()
		documents = append(documents, usecase.DocumentInput{
			ExternalID: externalID,
			Text:       fmt.Sprintf("In dataset %s: %s.", dataset, strings.Join(narrative, ", ")),
			Metadata: domain.DocumentMetadata{
				Dataset: dataset,
				State:   state,
				Year:    year,
				RowRef:  externalID,
			},
		})
	}
	return records, documents
}
