package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/harshithgowdakt/granulestore/internal/granularity"
	"github.com/harshithgowdakt/granulestore/internal/storage"
	"github.com/harshithgowdakt/granulestore/internal/types"
)

// Handler serves table, part and range-read requests.
type Handler struct {
	db *storage.Database
}

// NewHandler creates a new handler.
func NewHandler(db *storage.Database) *Handler {
	return &Handler{db: db}
}

type tableJSON struct {
	Name        string               `json:"name"`
	Columns     []string             `json:"columns"`
	OrderBy     []string             `json:"order_by"`
	PartitionBy string               `json:"partition_by,omitempty"`
	ActiveParts int                  `json:"active_parts"`
	Settings    granularity.Settings `json:"settings"`
}

// PartJSON describes one active part and its index granularity.
type PartJSON struct {
	Name           string `json:"name"`
	UUID           string `json:"uuid"`
	Type           string `json:"type"`
	Rows           int    `json:"rows"`
	Bytes          uint64 `json:"bytes"`
	Marks          int    `json:"marks"`
	HasFinalMark   bool   `json:"has_final_mark"`
	MarksExtension string `json:"marks_extension"`
	Granularity    string `json:"granularity"`
}

// HandlePing responds with "Ok." for health checks.
func (h *Handler) HandlePing(c echo.Context) error {
	return c.String(http.StatusOK, "Ok.\n")
}

// HandleTables lists the tables of the database.
func (h *Handler) HandleTables(c echo.Context) error {
	out := []tableJSON{}
	for _, name := range h.db.TableNames() {
		t, ok := h.db.GetTable(name)
		if !ok {
			continue
		}
		out = append(out, tableJSON{
			Name:        name,
			Columns:     t.Schema.ColumnNames(),
			OrderBy:     t.Schema.OrderBy,
			PartitionBy: t.Schema.PartitionBy,
			ActiveParts: len(t.GetActiveParts()),
			Settings:    t.Schema.Settings,
		})
	}
	return c.JSONPretty(http.StatusOK, out, "  ")
}

// HandleParts lists the active parts of a table.
func (h *Handler) HandleParts(c echo.Context) error {
	t, err := h.table(c)
	if err != nil {
		return err
	}
	out := []PartJSON{}
	for _, p := range t.GetActiveParts() {
		g := p.IndexGranularity()
		out = append(out, PartJSON{
			Name:           p.Info.DirName(),
			UUID:           p.UUID.String(),
			Type:           p.Type.String(),
			Rows:           int(p.NumRows),
			Bytes:          p.SizeBytes,
			Marks:          g.MarksCount(),
			HasFinalMark:   g.HasFinalMark(),
			MarksExtension: p.GranularityInfo.MarksFileExtension(),
			Granularity:    g.Describe(),
		})
	}
	return c.JSONPretty(http.StatusOK, out, "  ")
}

// HandleSelect reads rows whose key lies in [lo, hi). Query parameters:
// columns (comma separated, default all), key (default first ORDER BY
// column), lo, hi and format.
func (h *Handler) HandleSelect(c echo.Context) error {
	t, err := h.table(c)
	if err != nil {
		return err
	}

	columns := t.Schema.ColumnNames()
	if s := c.QueryParam("columns"); s != "" {
		columns = strings.Split(s, ",")
	}
	key := c.QueryParam("key")
	if key == "" && len(t.Schema.OrderBy) > 0 {
		key = t.Schema.OrderBy[0]
	}
	keyDef, ok := t.Schema.GetColumnDef(key)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown key column %s", key))
	}

	var bounds [2]types.Value
	for i, name := range []string{"lo", "hi"} {
		s := c.QueryParam(name)
		if s == "" {
			continue
		}
		v, err := types.ParseValue(keyDef.DataType, s)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		bounds[i] = v
	}

	block, err := t.Select(columns, key, bounds[0], bounds[1])
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("select error: %v", err))
	}

	format := ParseFormat(c.QueryParam("format"))
	switch format {
	case FormatJSON:
		c.Response().Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	case FormatCSV:
		c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	default:
		c.Response().Header().Set(echo.HeaderContentType, "text/tab-separated-values")
	}
	c.Response().WriteHeader(http.StatusOK)
	if err := FormatBlock(c.Response(), block, format); err != nil {
		zerolog.Ctx(c.Request().Context()).Error().Err(err).Str("table", c.Param("table")).Msg("format result")
	}
	return nil
}

func (h *Handler) table(c echo.Context) (*storage.MergeTreeTable, error) {
	name := c.Param("table")
	t, ok := h.db.GetTable(name)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("table %s not found", name))
	}
	return t, nil
}
