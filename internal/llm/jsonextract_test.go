package llm

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestExtractJSONRaw(t *testing.T) {
	raw, err := ExtractJSON(`{"anomalies": []}`)
	if err != nil {
		t.Fatalf("extract raw json: %v", err)
	}
	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("unmarshal extracted: %v", err)
	}
	if _, ok := parsed["anomalies"]; !ok {
		t.Fatalf("expected anomalies key, got %v", parsed)
	}
}

func TestExtractJSONFenced(t *testing.T) {
	text := "```json\n{\"forecast_30d\": 5150.0}\n```"
	raw, err := ExtractJSON(text)
	if err != nil {
		t.Fatalf("extract fenced json: %v", err)
	}
	var parsed map[string]float64
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("unmarshal extracted: %v", err)
	}
	if parsed["forecast_30d"] != 5150.0 {
		t.Fatalf("expected 5150.0, got %v", parsed["forecast_30d"])
	}
}

func TestExtractJSONEmbeddedBlock(t *testing.T) {
	text := `Here is the result you asked for: {"trend": "stable", "note": "contains } in string"} hope it helps`
	raw, err := ExtractJSON(text)
	if err != nil {
		t.Fatalf("extract embedded json: %v", err)
	}
	var parsed map[string]string
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("unmarshal extracted: %v", err)
	}
	if parsed["trend"] != "stable" {
		t.Fatalf("expected trend stable, got %q", parsed["trend"])
	}
}

func TestExtractJSONArray(t *testing.T) {
	text := `result: [{"a": 1}, {"a": 2}]`
	raw, err := ExtractJSON(text)
	if err != nil {
		t.Fatalf("extract array: %v", err)
	}
	var parsed []map[string]int
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("unmarshal extracted: %v", err)
	}
	if len(parsed) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(parsed))
	}
}

func TestExtractJSONTruncated(t *testing.T) {
	if _, err := ExtractJSON(`{"anomalies": [{"score": 0.9`); !errors.Is(err, ErrNoJSON) {
		t.Fatalf("expected ErrNoJSON for truncated input, got %v", err)
	}
}

func TestExtractJSONNonJSON(t *testing.T) {
	if _, err := ExtractJSON("I could not find any anomalies in this subscription."); !errors.Is(err, ErrNoJSON) {
		t.Fatalf("expected ErrNoJSON for prose input, got %v", err)
	}
}

func TestExtractJSONEmpty(t *testing.T) {
	if _, err := ExtractJSON("   "); !errors.Is(err, ErrNoJSON) {
		t.Fatalf("expected ErrNoJSON for empty input, got %v", err)
	}
}
