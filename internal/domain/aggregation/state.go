package aggregation

import (
	"context"

	"github.com/okian/vinyl/internal/domain/model"
)

// CellState is the serializable form of one accumulator.
type CellState struct {
	Key      string              `json:"key"`
	Category string              `json:"category"`
	Period   string              `json:"period,omitempty"`
	Sum      []byte              `json:"sum"`
	Count    int                 `json:"count"`
	Present  map[model.Field]int `json:"present"`
}

// Contributor is the metadata table entry of one artist.
type Contributor struct {
	ArtistID string           `json:"artist_id"`
	Uploads  []model.Metadata `json:"uploads"`
}

// RecordState is the serializable form of a retained EncryptedRecord.
type RecordState struct {
	ID           string         `json:"id"`
	Contribution []byte         `json:"contribution"`
	Present      model.FieldSet `json:"present"`
	Metadata     model.Metadata `json:"metadata"`
}

// Change is everything one AddRecord writes: the touched accumulators with
// their new sums, the updated contributor and, when records are retained,
// the record itself.
type Change struct {
	Fingerprint string
	Cells       []CellState
	Contributor Contributor
	Record      *RecordState
}

// Snapshot is the complete persisted state of a Store.
type Snapshot struct {
	Fingerprint  string
	Cells        []CellState
	Contributors []Contributor
	Records      []RecordState
}

// Empty reports whether the snapshot holds no state.
func (s Snapshot) Empty() bool {
	return len(s.Cells) == 0 && len(s.Contributors) == 0 && len(s.Records) == 0
}

// Persister stores changes durably. SaveCells must apply a Change
// atomically: all of it or none of it.
type Persister interface {
	SaveCells(ctx context.Context, change Change) error
}
