package episodes

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/bingefriend/episode-importer/pkg/tvmaze"
)

func intPtr(n int) *int {
	return &n
}

func TestNewRow_FullRecord(t *testing.T) {
	record := &tvmaze.Episode{
		ID:       12345,
		URL:      "https://www.tvmaze.com/episodes/12345/some-episode",
		Name:     "Pilot",
		Season:   1,
		Number:   intPtr(1),
		Type:     "regular",
		Airdate:  "2013-06-24",
		Airtime:  "22:00",
		Airstamp: "2013-06-25T02:00:00+00:00",
		Runtime:  intPtr(60),
		Rating:   json.RawMessage(`{"average":8.5}`),
		Image:    json.RawMessage(`{"medium":"https://example.com/m.jpg"}`),
		Summary:  "<p>A pilot.</p>",
		Links:    json.RawMessage(`{"self":{"href":"https://api.tvmaze.com/episodes/12345"}}`),
	}

	row := newRow(record, 42)

	if row.ID != 12345 {
		t.Errorf("ID = %d, want 12345", row.ID)
	}
	if row.ShowID != 42 {
		t.Errorf("ShowID = %d, want 42", row.ShowID)
	}
	if row.URL != record.URL {
		t.Errorf("URL = %q, want %q", row.URL, record.URL)
	}
	if row.Name == nil || *row.Name != "Pilot" {
		t.Errorf("Name = %v, want Pilot", row.Name)
	}
	if row.Season == nil || *row.Season != 1 {
		t.Errorf("Season = %v, want 1", row.Season)
	}
	if row.Number == nil || *row.Number != 1 {
		t.Errorf("Number = %v, want 1", row.Number)
	}
	if row.Airdate == nil {
		t.Fatal("Airdate should be set")
	}
	want := time.Date(2013, 6, 24, 0, 0, 0, 0, time.UTC)
	if !row.Airdate.Equal(want) {
		t.Errorf("Airdate = %v, want %v", row.Airdate, want)
	}
	if row.Runtime == nil || *row.Runtime != 60 {
		t.Errorf("Runtime = %v, want 60", row.Runtime)
	}
	if string(row.Rating) != `{"average":8.5}` {
		t.Errorf("Rating = %s, want average 8.5 payload", row.Rating)
	}
	if row.Summary == nil || *row.Summary != "<p>A pilot.</p>" {
		t.Errorf("Summary = %v, want pilot summary", row.Summary)
	}
	if len(row.Links) == 0 {
		t.Error("Links should be set")
	}
}

func TestNewRow_SparseRecord(t *testing.T) {
	// Unaired specials come through with most fields empty or null.
	record := &tvmaze.Episode{
		ID:     99,
		URL:    "https://www.tvmaze.com/episodes/99/special",
		Rating: json.RawMessage(`null`),
	}

	row := newRow(record, 7)

	if row.Name != nil {
		t.Errorf("Name = %v, want nil", row.Name)
	}
	if row.Season != nil {
		t.Errorf("Season = %v, want nil", row.Season)
	}
	if row.Number != nil {
		t.Errorf("Number = %v, want nil", row.Number)
	}
	if row.Airdate != nil {
		t.Errorf("Airdate = %v, want nil", row.Airdate)
	}
	if row.Runtime != nil {
		t.Errorf("Runtime = %v, want nil", row.Runtime)
	}
	if row.Rating != nil {
		t.Errorf("Rating = %s, want nil for JSON null", row.Rating)
	}
	if row.Image != nil {
		t.Errorf("Image = %s, want nil", row.Image)
	}
	if row.Summary != nil {
		t.Errorf("Summary = %v, want nil", row.Summary)
	}
}

func TestParseAirdate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  *time.Time
	}{
		{
			name:  "valid date",
			input: "2024-01-15",
			want:  timePtr(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)),
		},
		{
			name:  "empty string",
			input: "",
			want:  nil,
		},
		{
			name:  "not a date",
			input: "soon",
			want:  nil,
		},
		{
			name:  "wrong layout",
			input: "15.01.2024",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseAirdate(tt.input)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("parseAirdate(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if got != nil && !got.Equal(*tt.want) {
				t.Errorf("parseAirdate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestNullableJSON(t *testing.T) {
	tests := []struct {
		name  string
		input json.RawMessage
		want  JSON
	}{
		{
			name:  "payload",
			input: json.RawMessage(`{"average":7.1}`),
			want:  JSON(`{"average":7.1}`),
		},
		{
			name:  "empty",
			input: nil,
			want:  nil,
		},
		{
			name:  "literal null",
			input: json.RawMessage(`null`),
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nullableJSON(tt.input)
			if string(got) != string(tt.want) {
				t.Errorf("nullableJSON(%s) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestJSON_MarshalJSON(t *testing.T) {
	type wrapper struct {
		Rating JSON `json:"rating"`
	}

	withValue, err := json.Marshal(wrapper{Rating: JSON(`{"average":9}`)})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(withValue) != `{"rating":{"average":9}}` {
		t.Errorf("Marshal = %s, want embedded rating document", withValue)
	}

	empty, err := json.Marshal(wrapper{})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(empty) != `{"rating":null}` {
		t.Errorf("Marshal = %s, want rating null", empty)
	}
}

func TestJSON_ScanValue(t *testing.T) {
	var j JSON
	if err := j.Scan([]byte(`{"a":1}`)); err != nil {
		t.Fatalf("Scan bytes failed: %v", err)
	}
	if string(j) != `{"a":1}` {
		t.Errorf("Scan bytes = %s, want {\"a\":1}", j)
	}

	if err := j.Scan("[1,2]"); err != nil {
		t.Fatalf("Scan string failed: %v", err)
	}
	if string(j) != "[1,2]" {
		t.Errorf("Scan string = %s, want [1,2]", j)
	}

	if err := j.Scan(nil); err != nil {
		t.Fatalf("Scan nil failed: %v", err)
	}
	if j != nil {
		t.Errorf("Scan nil = %s, want nil", j)
	}

	if err := j.Scan(42); err == nil {
		t.Error("Scan int should fail")
	}

	v, err := JSON(`{"b":2}`).Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}
	if v != `{"b":2}` {
		t.Errorf("Value = %v, want {\"b\":2}", v)
	}

	nv, err := JSON(nil).Value()
	if err != nil {
		t.Fatalf("Value of nil failed: %v", err)
	}
	if nv != nil {
		t.Errorf("Value of nil = %v, want nil", nv)
	}
}
