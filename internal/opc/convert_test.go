package opc

import (
	"errors"
	"testing"

	sm "station_monitor"
)

func TestConvertValue(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		dataType string
		in       interface{}
		want     interface{}
	}{
		{"bool passthrough", sm.DataTypeBoolean, true, true},
		{"bool from string", sm.DataTypeBoolean, "on", true},
		{"bool from zero int", sm.DataTypeBoolean, 0, false},
		{"float32 from float64", sm.DataTypeFloat, 21.5, float32(21.5)},
		{"float32 from string", sm.DataTypeFloat, " 3.25 ", float32(3.25)},
		{"double from int", sm.DataTypeDouble, 7, 7.0},
		{"int16", sm.DataTypeInt16, 12, int16(12)},
		{"uint16", sm.DataTypeUInt16, 12, uint16(12)},
		{"int32 from float", sm.DataTypeInt32, 9.9, int32(9)},
		{"uint32", sm.DataTypeUInt32, 4, uint32(4)},
		{"int64 from string", sm.DataTypeInt64, "123", int64(123)},
		{"uint64", sm.DataTypeUInt64, 99, uint64(99)},
		{"string from int", sm.DataTypeString, 5, "5"},
		{"unknown type passes through", "Guid", "abc", "abc"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ConvertValue(tc.dataType, tc.in)
			if err != nil {
				t.Fatalf("ConvertValue: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %v (%T), want %v (%T)", got, got, tc.want, tc.want)
			}
		})
	}
}

func TestConvertValue_Invalid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		dataType string
		in       interface{}
	}{
		{"bool from garbage string", sm.DataTypeBoolean, "maybe"},
		{"float from struct", sm.DataTypeDouble, struct{}{}},
		{"int from garbage string", sm.DataTypeInt32, "12abc"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := ConvertValue(tc.dataType, tc.in)
			if err == nil {
				t.Fatal("expected conversion error")
			}
			var convErr *TypeConversionError
			if !errors.As(err, &convErr) {
				t.Fatalf("expected TypeConversionError, got %T", err)
			}
		})
	}
}
