package dag

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestCanonicalJSON_SortedKeys(t *testing.T) {
	input := map[string]any{"b": 1, "a": 2}
	got, err := CanonicalJSON(input)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"a":2,"b":1}`
	if string(got) != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestCanonicalJSON_CompactEncoding(t *testing.T) {
	input := map[string]any{"key": "value", "num": 42}
	got, err := CanonicalJSON(input)
	if err != nil {
		t.Fatal(err)
	}
	// Must have no spaces after : or ,
	s := string(got)
	for i, c := range s {
		if c == ':' && i > 0 && s[i-1] == ' ' {
			t.Error("space before colon")
		}
		if c == ',' && i+1 < len(s) && s[i+1] == ' ' {
			t.Error("space after comma")
		}
	}
	want := `{"key":"value","num":42}`
	if s != want {
		t.Errorf("got %s, want %s", s, want)
	}
}

func TestCanonicalJSON_NestedObjects(t *testing.T) {
	input := map[string]any{
		"z": map[string]any{
			"b": 1,
			"a": 2,
		},
		"a": "first",
	}
	got, err := CanonicalJSON(input)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"a":"first","z":{"a":2,"b":1}}`
	if string(got) != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestCanonicalJSON_ArraysPreserved(t *testing.T) {
	input := map[string]any{
		"arr": []any{3, 1, 2},
	}
	got, err := CanonicalJSON(input)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"arr":[3,1,2]}`
	if string(got) != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestCanonicalJSON_EmptyArrays(t *testing.T) {
	// Ensure []string{} → [] not null.
	// Go's json.Marshal converts []string{} to [].
	input := map[string]any{
		"refs": []string{},
		"tags": []string{},
	}
	got, err := CanonicalJSON(input)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"refs":[],"tags":[]}`
	if string(got) != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestCanonicalJSON_NilSliceBecomesNull(t *testing.T) {
	// This is a gotcha: nil slices marshal as null.
	// Code must use []string{} not nil to get [].
	type Foo struct {
		Items []string `json:"items"`
	}
	got, err := CanonicalJSON(Foo{Items: nil})
	if err != nil {
		t.Fatal(err)
	}
	s := string(got)
	// nil slice → "null" in JSON
	if s != `{"items":null}` {
		t.Errorf("nil slice: got %s", s)
	}

	got2, err := CanonicalJSON(Foo{Items: []string{}})
	if err != nil {
		t.Fatal(err)
	}
	if string(got2) != `{"items":[]}` {
		t.Errorf("empty slice: got %s", got2)
	}
}

func TestCanonicalJSON_CommitRecord(t *testing.T) {
	want := `{"author":"ada","commitMessage":"first","files":{"a.txt":{"hash":"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824","lastEdited":1700000000}},"parentCommits":["EMPTY-COMMIT"],"timestamp":1700000001}`

	c := &Commit{
		ID:        "ignored",
		Message:   "first",
		Author:    "ada",
		Timestamp: 1700000001,
		Parents:   []string{EmptyCommit},
		Files: FileTable{
			"a.txt": {Hash: HashBytes([]byte("hello")), LastEdited: 1700000000},
		},
	}
	got, err := CanonicalJSON(c)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != want {
		t.Errorf("commit record mismatch\n  got:  %s\n  want: %s", got, want)
	}
}

func TestCanonicalJSON_LargeIntegersExact(t *testing.T) {
	input := map[string]any{"ns": int64(1700000000123456789)}
	got, err := CanonicalJSON(input)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"ns":1700000000123456789}` {
		t.Errorf("got %s", got)
	}
}

func TestCanonicalJSON_Deterministic(t *testing.T) {
	// Same input must always produce same output.
	input := map[string]any{
		"c": 3, "a": 1, "b": 2,
		"nested": map[string]any{"z": true, "a": false},
	}
	first, _ := CanonicalJSON(input)
	for i := 0; i < 50; i++ {
		got, _ := CanonicalJSON(input)
		if string(got) != string(first) {
			t.Fatalf("non-deterministic on iteration %d:\n  first: %s\n  got:   %s", i, first, got)
		}
	}
}

func TestCanonicalJSON_SpecialCharacters(t *testing.T) {
	input := map[string]any{
		"msg": "hello \"world\"\nnewline",
	}
	got, err := CanonicalJSON(input)
	if err != nil {
		t.Fatal(err)
	}
	// Verify it's valid JSON
	var check map[string]any
	if err := json.Unmarshal(got, &check); err != nil {
		t.Fatalf("output is not valid JSON: %s", got)
	}
	if check["msg"] != "hello \"world\"\nnewline" {
		t.Errorf("round-trip value mismatch: %v", check["msg"])
	}
}

func TestDecodeStrict_RejectsUnknownFields(t *testing.T) {
	var e FileEntry
	err := decodeStrict([]byte(`{"hash":"x","lastEdited":1,"extra":true}`), &e, "entry")
	if !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("err = %v, want ErrInvalidRecord", err)
	}
}

func TestDecodeStrict_RejectsTrailingData(t *testing.T) {
	var e FileEntry
	err := decodeStrict([]byte(`{"hash":"x","lastEdited":1} {}`), &e, "entry")
	if !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("err = %v, want ErrInvalidRecord", err)
	}
}

func TestDecodeStrict_Accepts(t *testing.T) {
	var e FileEntry
	if err := decodeStrict([]byte(`{"hash":"x","lastEdited":7}`), &e, "entry"); err != nil {
		t.Fatal(err)
	}
	if e.Hash != "x" || e.LastEdited != 7 {
		t.Errorf("decoded %+v", e)
	}
}
