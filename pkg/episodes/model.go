// Package episodes persists episode records in the relational sink and
// serves reads for the HTTP surface.
package episodes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bingefriend/episode-importer/pkg/tvmaze"
)

// JSON stores a raw JSON document in a jsonb column. Upstream payload
// fragments such as rating, image and links are kept verbatim instead of
// being flattened into columns.
type JSON []byte

// Value implements driver.Valuer.
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// Scan implements sql.Scanner.
func (j *JSON) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append(JSON(nil), v...)
	case string:
		*j = JSON(v)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", value)
	}
	return nil
}

// MarshalJSON returns the stored document, or null when empty.
func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON stores the raw document.
func (j *JSON) UnmarshalJSON(data []byte) error {
	*j = append((*j)[0:0], data...)
	return nil
}

// Episode is one row of the episodes table. The id is the upstream episode
// id, never generated locally.
type Episode struct {
	ID        int        `gorm:"primaryKey;autoIncrement:false" json:"id"`
	ShowID    int        `gorm:"not null;index" json:"show_id"`
	URL       string     `gorm:"type:text" json:"url"`
	Name      *string    `gorm:"type:text" json:"name"`
	Season    *int       `json:"season"`
	Number    *int       `json:"number"`
	Type      *string    `gorm:"type:varchar(255)" json:"type"`
	Airdate   *time.Time `gorm:"type:date" json:"airdate"`
	Airtime   *string    `gorm:"type:varchar(255)" json:"airtime"`
	Airstamp  *string    `gorm:"type:varchar(255)" json:"airstamp"`
	Runtime   *int       `json:"runtime"`
	Rating    JSON       `gorm:"type:jsonb" json:"rating"`
	Image     JSON       `gorm:"type:jsonb" json:"image"`
	Summary   *string    `gorm:"type:text" json:"summary"`
	Links     JSON       `gorm:"type:jsonb" json:"_links"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Episode) TableName() string {
	return "episodes"
}

// newRow maps an upstream episode to its table row. Empty strings and empty
// JSON fragments become NULL columns, matching the upstream payload where
// those fields are null or absent.
func newRow(record *tvmaze.Episode, showID int) Episode {
	return Episode{
		ID:       record.ID,
		ShowID:   showID,
		URL:      record.URL,
		Name:     nullableString(record.Name),
		Season:   nullableInt(record.Season),
		Number:   record.Number,
		Type:     nullableString(record.Type),
		Airdate:  parseAirdate(record.Airdate),
		Airtime:  nullableString(record.Airtime),
		Airstamp: nullableString(record.Airstamp),
		Runtime:  record.Runtime,
		Rating:   nullableJSON(record.Rating),
		Image:    nullableJSON(record.Image),
		Summary:  nullableString(record.Summary),
		Links:    nullableJSON(record.Links),
	}
}

// parseAirdate parses an upstream air date. Unaired episodes carry an empty
// string; anything unparseable is treated the same way.
func parseAirdate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableInt(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

// nullableJSON drops empty fragments and JSON null so the column stays NULL
// instead of holding a literal null document.
func nullableJSON(raw json.RawMessage) JSON {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return JSON(raw)
}
