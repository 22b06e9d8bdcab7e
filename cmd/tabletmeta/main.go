// Package main implements the tabletmeta binary: a command line tool for
// managing tablet schema descriptors in a local catalog, with snapshot
// export and restore through object storage.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/arkilian/tabletmeta/internal/catalog"
	"github.com/arkilian/tabletmeta/internal/config"
	"github.com/arkilian/tabletmeta/internal/storage"
	"github.com/arkilian/tabletmeta/internal/tablet"
	"github.com/arkilian/tabletmeta/pkg/schemapb"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		dataDir     string
		storageType string

		registerFile  string
		listSchemas   bool
		inspectID     int64
		schemaVersion int
		bindID        int64
		tabletID      string
		snapshotPath  string
		restorePath   string

		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&storageType, "storage-type", "", "Snapshot storage type: local, s3")

	flag.StringVar(&registerFile, "register", "", "Register a schema from a JSON descriptor file")
	flag.BoolVar(&listSchemas, "list", false, "List all stored schema versions")
	flag.Int64Var(&inspectID, "inspect", 0, "Inspect a stored schema by id")
	flag.IntVar(&schemaVersion, "schema-version", 0, "Schema version for -inspect and -bind")
	flag.Int64Var(&bindID, "bind", 0, "Register a new tablet bound to a stored schema id")
	flag.StringVar(&tabletID, "tablet", "", "Show the schema a tablet is bound to")
	flag.StringVar(&snapshotPath, "snapshot", "", "Export all schemas to a snapshot object")
	flag.StringVar(&restorePath, "restore", "", "Restore schemas from a snapshot object")

	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Tabletmeta - Tablet Schema Catalog For Columnar Storage\n\n")
		fmt.Fprintf(os.Stderr, "Usage: tabletmeta [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  tabletmeta --register schema.json --data-dir /data/tabletmeta\n")
		fmt.Fprintf(os.Stderr, "  tabletmeta --inspect 42 --schema-version 1\n")
		fmt.Fprintf(os.Stderr, "  tabletmeta --bind 42 --schema-version 1\n")
		fmt.Fprintf(os.Stderr, "  tabletmeta --snapshot backups/catalog.snap\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  TABLETMETA_DATA_DIR       Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  TABLETMETA_STORAGE_TYPE   Snapshot storage type (local, s3)\n")
		fmt.Fprintf(os.Stderr, "  TABLETMETA_S3_BUCKET      S3 bucket for snapshots\n")
		fmt.Fprintf(os.Stderr, "  TABLETMETA_S3_REGION      AWS region\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("tabletmeta version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	// Optional .env for local development.
	_ = godotenv.Load()

	cfg, err := loadConfig(configFile, dataDir, storageType)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("Failed to prepare directories: %v", err)
	}

	cat, err := catalog.NewCatalog(cfg.CatalogPath())
	if err != nil {
		log.Fatalf("Failed to open catalog: %v", err)
	}
	defer cat.Close()

	ctx := context.Background()

	switch {
	case registerFile != "":
		err = runRegister(ctx, cat, cfg, registerFile)
	case listSchemas:
		err = runList(ctx, cat)
	case inspectID != 0:
		err = runInspect(ctx, cat, inspectID, schemaVersion)
	case bindID != 0:
		err = runBind(ctx, cat, bindID, schemaVersion)
	case tabletID != "":
		err = runTablet(ctx, cat, tabletID)
	case snapshotPath != "":
		err = runSnapshot(ctx, cat, cfg, snapshotPath)
	case restorePath != "":
		err = runRestore(ctx, cat, cfg, restorePath)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("Command failed: %v", err)
	}
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig(configFile, dataDir, storageType string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	// Command line flags take highest priority.
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if storageType != "" {
		cfg.Storage.Type = storageType
	}

	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runRegister(ctx context.Context, cat catalog.Catalog, cfg *config.Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read descriptor file: %w", err)
	}
	var pb schemapb.TabletSchemaPB
	if err := json.Unmarshal(data, &pb); err != nil {
		return fmt.Errorf("failed to parse descriptor file: %w", err)
	}
	applySchemaDefaults(&pb, cfg.Schema)
	if err := cat.PutSchema(ctx, &pb); err != nil {
		return err
	}
	fmt.Printf("Registered schema %d (%d columns)\n", pb.ID, len(pb.Columns))
	return nil
}

// applySchemaDefaults fills configured defaults into a descriptor.
// Descriptor content always wins; only absent fields are filled.
func applySchemaDefaults(pb *schemapb.TabletSchemaPB, defaults config.SchemaConfig) {
	if pb.CompressionType == "" {
		pb.CompressionType = defaults.DefaultCompression
	}
	if pb.NumRowsPerRowBlock == 0 {
		pb.NumRowsPerRowBlock = defaults.NumRowsPerRowBlock
	}
	if pb.BloomFilterFPP == nil {
		for _, col := range pb.Columns {
			if col.IsBloomFilterColumn {
				fpp := defaults.BloomFilterFPP
				pb.BloomFilterFPP = &fpp
				break
			}
		}
	}
}

func runList(ctx context.Context, cat catalog.Catalog) error {
	records, err := cat.ListSchemas(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No schemas stored")
		return nil
	}
	fmt.Printf("%-12s %-8s %-12s %-8s %s\n", "SCHEMA_ID", "VERSION", "KEYS_TYPE", "COLUMNS", "CREATED")
	for _, rec := range records {
		fmt.Printf("%-12d %-8d %-12s %-8d %s\n",
			rec.SchemaID, rec.SchemaVersion, rec.Descriptor.KeysType,
			len(rec.Descriptor.Columns), rec.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runInspect(ctx context.Context, cat catalog.Catalog, schemaID int64, version int) error {
	pb, err := cat.GetSchema(ctx, schemaID, version)
	if err != nil {
		return err
	}
	s, err := tablet.SchemaFromPB(pb)
	if err != nil {
		return err
	}
	fmt.Println(s.DebugString())
	fmt.Printf("estimated row size: %d bytes\n", s.EstimateRowSize(16))
	fmt.Printf("memory usage: %d bytes\n", s.MemUsage())
	return nil
}

func runBind(ctx context.Context, cat catalog.Catalog, schemaID int64, version int) error {
	id, err := cat.RegisterTablet(ctx, schemaID, version)
	if err != nil {
		return err
	}
	fmt.Printf("Registered tablet %s (schema %d version %d)\n", id, schemaID, version)
	return nil
}

func runTablet(ctx context.Context, cat catalog.Catalog, tabletID string) error {
	pb, err := cat.GetTabletSchema(ctx, tabletID)
	if err != nil {
		return err
	}
	s, err := tablet.SchemaFromPB(pb)
	if err != nil {
		return err
	}
	fmt.Println(s.DebugString())
	return nil
}

func runSnapshot(ctx context.Context, cat catalog.Catalog, cfg *config.Config, path string) error {
	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	return catalog.ExportSnapshot(ctx, cat, store, path)
}

func runRestore(ctx context.Context, cat catalog.Catalog, cfg *config.Config, path string) error {
	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	restored, err := catalog.ImportSnapshot(ctx, cat, store, path)
	if err != nil {
		return err
	}
	fmt.Printf("Restored %d schemas\n", restored)
	return nil
}

// newStore creates the snapshot object store configured for this run.
func newStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	switch cfg.Storage.Type {
	case "s3":
		return storage.NewS3Store(ctx, cfg.Storage.S3.Bucket, storage.S3Config{
			Region:   cfg.Storage.S3.Region,
			Endpoint: cfg.Storage.S3.Endpoint,
		})
	default:
		return storage.NewLocalStore(cfg.Storage.Path)
	}
}
