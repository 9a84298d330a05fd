package seed

import (
	"math/rand/v2"

	"github.com/okian/vinyl/internal/domain/aggregation"
	"github.com/okian/vinyl/internal/domain/model"
)

// Generate returns n random valid records. A zero seed draws a random one.
func Generate(n int, seed uint64) []model.RawRecord {
	if n <= 0 {
		return nil
	}
	if seed == 0 {
		seed = rand.Uint64()
	}
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // sample data
	recs := make([]model.RawRecord, n)
	for i := range recs {
		recs[i] = aggregation.RandomRecord(r)
	}
	return recs
}
