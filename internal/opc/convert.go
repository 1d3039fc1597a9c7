package opc

import (
	"fmt"
	"strconv"
	"strings"

	sm "station_monitor"
)

// TypeConversionError reports a value that cannot be represented as the
// tag's declared protocol type.
type TypeConversionError struct {
	DataType string
	Value    interface{}
}

func (e *TypeConversionError) Error() string {
	return fmt.Sprintf("cannot convert %v (%T) to %s", e.Value, e.Value, e.DataType)
}

// ConvertValue coerces a value into the wire representation of the tag's
// declared data type. Unknown declared types pass the value through
// unchanged; callers log a warning in that case rather than failing the
// write outright.
func ConvertValue(dataType string, value interface{}) (interface{}, error) {
	switch dataType {
	case sm.DataTypeBoolean:
		return toBool(value)
	case sm.DataTypeFloat:
		f, err := toFloat(dataType, value)
		if err != nil {
			return nil, err
		}
		return float32(f), nil
	case sm.DataTypeDouble:
		return toFloat(dataType, value)
	case sm.DataTypeInt16:
		i, err := toInt(dataType, value)
		if err != nil {
			return nil, err
		}
		return int16(i), nil
	case sm.DataTypeUInt16:
		i, err := toInt(dataType, value)
		if err != nil {
			return nil, err
		}
		return uint16(i), nil
	case sm.DataTypeInt32:
		i, err := toInt(dataType, value)
		if err != nil {
			return nil, err
		}
		return int32(i), nil
	case sm.DataTypeUInt32:
		i, err := toInt(dataType, value)
		if err != nil {
			return nil, err
		}
		return uint32(i), nil
	case sm.DataTypeInt64:
		return toInt(dataType, value)
	case sm.DataTypeUInt64:
		i, err := toInt(dataType, value)
		if err != nil {
			return nil, err
		}
		return uint64(i), nil
	case sm.DataTypeString:
		return fmt.Sprintf("%v", value), nil
	default:
		// Last resort: pass through and let the server decide.
		return value, nil
	}
}

func toBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "on":
			return true, nil
		case "false", "0", "off":
			return false, nil
		}
	case int:
		return v != 0, nil
	case float64:
		return v != 0, nil
	}
	return false, &TypeConversionError{DataType: sm.DataTypeBoolean, Value: value}
}

func toFloat(dataType string, value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil {
			return f, nil
		}
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	return 0, &TypeConversionError{DataType: dataType, Value: value}
}

func toInt(dataType string, value interface{}) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case float32:
		return int64(v), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err == nil {
			return i, nil
		}
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	return 0, &TypeConversionError{DataType: dataType, Value: value}
}
