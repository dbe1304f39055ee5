package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/harshithgowdakt/granulestore/internal/granularity"
	"github.com/harshithgowdakt/granulestore/internal/types"
)

const schemaFileName = "schema.json"

// Database manages all tables and the base data directory.
type Database struct {
	DataDir string
	tables  map[string]*MergeTreeTable
	mu      sync.RWMutex
}

// NewDatabase creates a new database rooted at dataDir.
func NewDatabase(dataDir string) (*Database, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	db := &Database{
		DataDir: dataDir,
		tables:  make(map[string]*MergeTreeTable),
	}
	if err := db.LoadMetadata(); err != nil {
		return nil, fmt.Errorf("loading metadata: %w", err)
	}
	return db, nil
}

// CreateTable creates a new table.
func (db *Database) CreateTable(name string, schema TableSchema) (*MergeTreeTable, error) {
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("table %s: %w", name, err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.tables[name]; exists {
		return nil, fmt.Errorf("table %s already exists", name)
	}

	tableDir := filepath.Join(db.DataDir, name)
	if err := os.MkdirAll(tableDir, 0755); err != nil {
		return nil, err
	}
	if err := saveTableSchema(tableDir, name, &schema); err != nil {
		return nil, err
	}

	table := NewMergeTreeTable(name, schema, tableDir)
	db.tables[name] = table
	logger.Info().Str("table", name).Interface("settings", schema.Settings).Msg("created table")
	return table, nil
}

// GetTable returns a table by name.
func (db *Database) GetTable(name string) (*MergeTreeTable, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	t, ok := db.tables[name]
	return t, ok
}

// DropTable removes a table and its data.
func (db *Database) DropTable(name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	t, ok := db.tables[name]
	if !ok {
		return fmt.Errorf("table %s does not exist", name)
	}
	if err := os.RemoveAll(t.DataDir); err != nil {
		return err
	}
	delete(db.tables, name)
	return nil
}

// TableNames returns all table names, sorted.
func (db *Database) TableNames() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	names := make([]string, 0, len(db.tables))
	for n := range db.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// AllTables returns all tables.
func (db *Database) AllTables() []*MergeTreeTable {
	db.mu.RLock()
	defer db.mu.RUnlock()
	tables := make([]*MergeTreeTable, 0, len(db.tables))
	for _, t := range db.tables {
		tables = append(tables, t)
	}
	return tables
}

// LoadMetadata scans the data directory on startup, reconstructing tables,
// their parts and each part's granularity.
func (db *Database) LoadMetadata() error {
	entries, err := os.ReadDir(db.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		tableName := entry.Name()
		tableDir := filepath.Join(db.DataDir, tableName)

		schema, err := loadTableSchema(tableDir)
		if err != nil {
			logger.Warn().Err(err).Str("dir", tableDir).Msg("skipping directory without valid schema")
			continue
		}

		table := NewMergeTreeTable(tableName, *schema, tableDir)
		if err := db.loadParts(table); err != nil {
			return err
		}
		db.tables[tableName] = table
	}
	return nil
}

func (db *Database) loadParts(table *MergeTreeTable) error {
	partEntries, err := os.ReadDir(table.DataDir)
	if err != nil {
		return err
	}
	for _, pe := range partEntries {
		if !pe.IsDir() {
			continue
		}
		dir := filepath.Join(table.DataDir, pe.Name())
		if strings.HasPrefix(pe.Name(), "tmp_") {
			// Leftover of an interrupted write.
			logger.Warn().Str("dir", dir).Msg("removing temporary part")
			os.RemoveAll(dir)
			continue
		}

		partInfo, err := parsePartDirName(pe.Name())
		if err != nil {
			continue
		}
		part, err := LoadPart(dir, *partInfo, &table.Schema)
		if err != nil {
			logger.Error().Err(err).Str("part", pe.Name()).Str("table", table.Name).Msg("skipping broken part")
			continue
		}
		table.AddPart(part)
	}

	// A merged part supersedes the parts it covers.
	active := table.GetActiveParts()
	for _, p := range active {
		for _, q := range active {
			if q.Info.Contains(p.Info) {
				p.State = PartOutdated
				break
			}
		}
	}
	logger.Info().Str("table", table.Name).Int("parts", len(table.GetActiveParts())).Msg("loaded table")
	return nil
}

// parsePartDirName parses "partition_min_max_level" into PartInfo.
func parsePartDirName(name string) (*PartInfo, error) {
	// partitionID can contain underscores, so split off the last three fields.
	parts := strings.Split(name, "_")
	if len(parts) < 4 {
		return nil, fmt.Errorf("invalid part dir name: %s", name)
	}

	level, err := strconv.ParseUint(parts[len(parts)-1], 10, 32)
	if err != nil {
		return nil, err
	}
	maxBlock, err := strconv.ParseUint(parts[len(parts)-2], 10, 64)
	if err != nil {
		return nil, err
	}
	minBlock, err := strconv.ParseUint(parts[len(parts)-3], 10, 64)
	if err != nil {
		return nil, err
	}

	return &PartInfo{
		PartitionID: strings.Join(parts[:len(parts)-3], "_"),
		MinBlock:    minBlock,
		MaxBlock:    maxBlock,
		Level:       uint32(level),
	}, nil
}

// tableSchemaJSON is the JSON representation of a table schema saved to disk.
type tableSchemaJSON struct {
	Name        string               `json:"name"`
	Columns     []columnDefJSON      `json:"columns"`
	OrderBy     []string             `json:"order_by"`
	PartitionBy string               `json:"partition_by,omitempty"`
	Settings    granularity.Settings `json:"settings"`
}

type columnDefJSON struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
}

func saveTableSchema(tableDir, name string, schema *TableSchema) error {
	j := tableSchemaJSON{
		Name:        name,
		OrderBy:     schema.OrderBy,
		PartitionBy: schema.PartitionBy,
		Settings:    schema.Settings,
	}
	for _, c := range schema.Columns {
		j.Columns = append(j.Columns, columnDefJSON{Name: c.Name, DataType: c.DataType.Name()})
	}
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(tableDir, schemaFileName), data, 0644)
}

func loadTableSchema(tableDir string) (*TableSchema, error) {
	data, err := os.ReadFile(filepath.Join(tableDir, schemaFileName))
	if err != nil {
		return nil, err
	}
	j := tableSchemaJSON{Settings: granularity.DefaultSettings()}
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", schemaFileName, err)
	}
	schema := &TableSchema{
		OrderBy:     j.OrderBy,
		PartitionBy: j.PartitionBy,
		Settings:    j.Settings,
	}
	for _, c := range j.Columns {
		dt, err := types.ParseDataType(c.DataType)
		if err != nil {
			return nil, err
		}
		schema.Columns = append(schema.Columns, ColumnDef{Name: c.Name, DataType: dt})
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	return schema, nil
}
