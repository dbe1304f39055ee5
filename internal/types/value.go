package types

import (
	"cmp"
	"fmt"
	"strconv"
)

// Value holds one cell using the native Go type of its DataType:
// UInt8 -> uint8, ..., String -> string, DateTime -> uint32.
type Value = any

// CompareValues compares two values of the same DataType and returns -1, 0
// or 1.
func CompareValues(dt DataType, a, b Value) int {
	switch dt {
	case TypeUInt8:
		return cmp.Compare(a.(uint8), b.(uint8))
	case TypeUInt16:
		return cmp.Compare(a.(uint16), b.(uint16))
	case TypeUInt32, TypeDateTime:
		return cmp.Compare(a.(uint32), b.(uint32))
	case TypeUInt64:
		return cmp.Compare(a.(uint64), b.(uint64))
	case TypeInt8:
		return cmp.Compare(a.(int8), b.(int8))
	case TypeInt16:
		return cmp.Compare(a.(int16), b.(int16))
	case TypeInt32:
		return cmp.Compare(a.(int32), b.(int32))
	case TypeInt64:
		return cmp.Compare(a.(int64), b.(int64))
	case TypeFloat32:
		return cmp.Compare(a.(float32), b.(float32))
	case TypeFloat64:
		return cmp.Compare(a.(float64), b.(float64))
	case TypeString:
		return cmp.Compare(a.(string), b.(string))
	default:
		return 0
	}
}

// ValueToString renders a value for dumps and partition IDs.
func ValueToString(_ DataType, v Value) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprint(v)
}

// ParseValue parses the text form of a value of type dt.
func ParseValue(dt DataType, s string) (Value, error) {
	var (
		v   Value
		err error
	)
	switch dt {
	case TypeUInt8, TypeUInt16, TypeUInt32, TypeUInt64, TypeDateTime:
		var u uint64
		u, err = strconv.ParseUint(s, 10, dt.FixedSize()*8)
		switch dt {
		case TypeUInt8:
			v = uint8(u)
		case TypeUInt16:
			v = uint16(u)
		case TypeUInt32, TypeDateTime:
			v = uint32(u)
		default:
			v = u
		}
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		var i int64
		i, err = strconv.ParseInt(s, 10, dt.FixedSize()*8)
		switch dt {
		case TypeInt8:
			v = int8(i)
		case TypeInt16:
			v = int16(i)
		case TypeInt32:
			v = int32(i)
		default:
			v = i
		}
	case TypeFloat32:
		var f float64
		f, err = strconv.ParseFloat(s, 32)
		v = float32(f)
	case TypeFloat64:
		v, err = strconv.ParseFloat(s, 64)
	case TypeString:
		v = s
	default:
		return nil, fmt.Errorf("unsupported data type: %d", dt)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s value %q: %w", dt.Name(), s, err)
	}
	return v, nil
}
