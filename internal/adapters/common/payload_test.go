package common_test

import (
	"reflect"
	"testing"

	"github.com/example/whatsapp-gateway/internal/adapters/common"
)

func TestFieldAccessorsTolerateAnything(t *testing.T) {
	var nilMap map[string]any
	if common.StringField(nilMap, "x") != "" {
		t.Fatal("StringField on nil map must return empty string")
	}
	if common.MapField(nilMap, "x") != nil {
		t.Fatal("MapField on nil map must return nil")
	}
	if common.SliceField(nilMap, "x") != nil {
		t.Fatal("SliceField on nil map must return nil")
	}
	if common.BoolField(nilMap, "x") {
		t.Fatal("BoolField on nil map must return false")
	}

	m := map[string]any{"s": 42, "m": "not a map", "b": "true"}
	if common.StringField(m, "s") != "" {
		t.Fatal("StringField must ignore non-string values")
	}
	if common.MapField(m, "m") != nil {
		t.Fatal("MapField must ignore non-map values")
	}
	if common.BoolField(m, "b") {
		t.Fatal("BoolField must ignore string booleans")
	}
}

func TestInt64FieldAcceptsStringsAndNumbers(t *testing.T) {
	m := map[string]any{
		"str":    "1677234567",
		"float":  float64(1677234567),
		"int":    1677234567,
		"padded": " 1677234567 ",
		"junk":   "soon",
		"flag":   true,
	}
	for _, key := range []string{"str", "float", "int", "padded"} {
		got, ok := common.Int64Field(m, key)
		if !ok || got != 1677234567 {
			t.Fatalf("Int64Field(%q) = %d, %v; want 1677234567, true", key, got, ok)
		}
	}
	for _, key := range []string{"junk", "flag", "missing"} {
		if _, ok := common.Int64Field(m, key); ok {
			t.Fatalf("Int64Field(%q) unexpectedly succeeded", key)
		}
	}
}

func TestFirstMapSkipsNonObjects(t *testing.T) {
	s := []any{"scalar", 7, map[string]any{"id": "x"}}
	got := common.FirstMap(s)
	if got == nil || got["id"] != "x" {
		t.Fatalf("FirstMap returned %v", got)
	}
	if common.FirstMap(nil) != nil {
		t.Fatal("FirstMap(nil) must return nil")
	}
}

func TestTopLevelKeys(t *testing.T) {
	keys := common.TopLevelKeys(map[string]any{"b": 1, "a": 2})
	if !reflect.DeepEqual(keys, []string{"a", "b"}) {
		t.Fatalf("expected sorted keys, got %v", keys)
	}
	if got := common.TopLevelKeys(nil); !reflect.DeepEqual(got, []string{"<nil>"}) {
		t.Fatalf("unexpected keys for nil payload: %v", got)
	}
	if got := common.TopLevelKeys([]any{1}); !reflect.DeepEqual(got, []string{"<array>"}) {
		t.Fatalf("unexpected keys for array payload: %v", got)
	}
	if got := common.TopLevelKeys("x"); !reflect.DeepEqual(got, []string{"<scalar>"}) {
		t.Fatalf("unexpected keys for scalar payload: %v", got)
	}
}
