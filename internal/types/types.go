package types

import (
	"fmt"
	"strings"
)

// DataType is a column data type.
type DataType uint8

const (
	TypeUInt8 DataType = iota
	TypeUInt16
	TypeUInt32
	TypeUInt64
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeString
	TypeDateTime // unix seconds as uint32
)

type typeInfo struct {
	name      string
	fixedSize int // 0 for variable-length
}

var typeInfos = [...]typeInfo{
	TypeUInt8:    {"UInt8", 1},
	TypeUInt16:   {"UInt16", 2},
	TypeUInt32:   {"UInt32", 4},
	TypeUInt64:   {"UInt64", 8},
	TypeInt8:     {"Int8", 1},
	TypeInt16:    {"Int16", 2},
	TypeInt32:    {"Int32", 4},
	TypeInt64:    {"Int64", 8},
	TypeFloat32:  {"Float32", 4},
	TypeFloat64:  {"Float64", 8},
	TypeString:   {"String", 0},
	TypeDateTime: {"DateTime", 4},
}

var typeByName = func() map[string]DataType {
	m := make(map[string]DataType, len(typeInfos))
	for dt, ti := range typeInfos {
		m[strings.ToLower(ti.name)] = DataType(dt)
	}
	return m
}()

// ParseDataType converts a case-insensitive type name to a DataType.
func ParseDataType(name string) (DataType, error) {
	dt, ok := typeByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown data type: %s", name)
	}
	return dt, nil
}

func (dt DataType) valid() bool {
	return int(dt) < len(typeInfos)
}

// Name returns the type name as written in schemas.
func (dt DataType) Name() string {
	if !dt.valid() {
		return "Unknown"
	}
	return typeInfos[dt].name
}

// FixedSize returns the byte width of fixed-size types and 0 otherwise.
func (dt DataType) FixedSize() int {
	if !dt.valid() {
		return 0
	}
	return typeInfos[dt].fixedSize
}
