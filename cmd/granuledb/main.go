package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/harshithgowdakt/granulestore/internal/column"
	"github.com/harshithgowdakt/granulestore/internal/gologger"
	"github.com/harshithgowdakt/granulestore/internal/granularity"
	"github.com/harshithgowdakt/granulestore/internal/server"
	"github.com/harshithgowdakt/granulestore/internal/storage"
	"github.com/harshithgowdakt/granulestore/internal/types"
)

var logger = gologger.NewLogger()

func main() {
	dataDir := flag.String("data-dir", "./granulestore-data", "Data directory path")
	configPath := flag.String("config", "", "YAML file with MergeTree granularity settings for tables created by this process; existing tables keep the settings stored in their schema.json")
	addr := flag.String("addr", ":8123", "HTTP server address (also serves /metrics)")
	mergeInterval := flag.Duration("merge-interval", 5*time.Second, "Background merge interval")
	demoRows := flag.Int("demo-rows", 0, "Insert this many demo rows into table 'demo' on startup")
	demoBlockRows := flag.Int("demo-block-rows", 65536, "Rows per inserted demo block")
	flag.Parse()

	settings := granularity.DefaultSettings()
	if *configPath != "" {
		var err error
		if settings, err = granularity.LoadSettings(*configPath); err != nil {
			logger.Fatal().Err(err).Msg("failed to load settings")
		}
	}

	db, err := storage.NewDatabase(*dataDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database")
	}
	logger.Info().Str("data_dir", *dataDir).Strs("tables", db.TableNames()).Msg("granulestore started")

	if *configPath != "" && *demoRows == 0 {
		logger.Warn().Str("config", *configPath).Msg("settings only apply to newly created tables; no table is created without -demo-rows")
	}
	if *demoRows > 0 {
		if err := ingestDemo(db, settings, *demoRows, *demoBlockRows); err != nil {
			logger.Fatal().Err(err).Msg("demo ingest failed")
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := server.NewServer(db, *addr, *mergeInterval).Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
	logger.Info().Msg("shut down")
}

// ingestDemo creates the demo table if needed and inserts rows in blocks.
func ingestDemo(db *storage.Database, settings granularity.Settings, rows, blockRows int) error {
	table, ok := db.GetTable("demo")
	if !ok {
		var err error
		table, err = db.CreateTable("demo", storage.TableSchema{
			Columns: []storage.ColumnDef{
				{Name: "id", DataType: types.TypeUInt64},
				{Name: "day", DataType: types.TypeUInt32},
				{Name: "payload", DataType: types.TypeString},
			},
			OrderBy:     []string{"id"},
			PartitionBy: "day",
			Settings:    settings,
		})
		if err != nil {
			return err
		}
	}

	if blockRows <= 0 {
		blockRows = rows
	}
	start := time.Now()
	for from := 0; from < rows; from += blockRows {
		n := min(blockRows, rows-from)
		ids := make([]uint64, n)
		days := make([]uint32, n)
		payloads := make([]string, n)
		for i := range n {
			id := from + i
			ids[i] = uint64(id)
			days[i] = uint32(id % 3)
			// Variable row width so adaptive granules differ in size.
			payloads[i] = fmt.Sprintf("%0*d", 1+id%200, id)
		}
		block := column.NewBlock(
			[]string{"id", "day", "payload"},
			[]column.Column{column.NewUInt64Column(ids...), column.NewUInt32Column(days...), column.NewStringColumn(payloads...)},
		)
		if err := table.Insert(block); err != nil {
			return err
		}
	}

	for _, p := range table.GetActiveParts() {
		logger.Debug().Str("part", p.String()).Str("granularity", p.IndexGranularity().Describe()).Msg("demo part")
	}
	logger.Info().Int("rows", rows).Int("parts", len(table.GetActiveParts())).Dur("took", time.Since(start)).Msg("demo ingest done")
	return nil
}
