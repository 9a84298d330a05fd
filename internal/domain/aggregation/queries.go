package aggregation

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/vinyl/internal/domain/encoder"
	"github.com/okian/vinyl/internal/domain/model"
	"github.com/okian/vinyl/internal/domain/scoring"
	"github.com/okian/vinyl/pkg/logger"
	"github.com/okian/vinyl/pkg/metrics"
)

// Fixed descriptive strings of the privacy report.
const (
	PrivacyLevel     = "high: individual contributions are never decrypted"
	EncryptionMethod = "CKKS approximate homomorphic encryption"
	DataProcessing   = "sums are computed on ciphertexts; only category aggregates are decrypted"
)

// AllCategoryAverages returns the average revenue of every category with
// at least one contribution.
func (s *Store) AllCategoryAverages(ctx context.Context) (map[model.Category]float64, error) {
	out := make(map[model.Category]float64, len(model.Categories))
	revenueSlot := model.FieldIndex(model.FieldRevenue)
	for _, cat := range model.Categories {
		sum, count, _ := s.read(cellKey(string(cat), ""))
		if count == 0 {
			continue
		}
		values, err := s.he.Decrypt(ctx, sum, revenueSlot+1)
		if err != nil {
			metrics.RecordQuery("averages", "error")
			return nil, fmt.Errorf("decrypt %s: %w", cat, err)
		}
		out[cat] = values[revenueSlot] / float64(count) * revenueScale
	}
	metrics.RecordQuery("averages", "success")
	return out, nil
}

// CategoryProfile returns the average of every tracked field for category,
// or for (category, period) when period is set. A field is averaged over
// the contributions that supplied it.
func (s *Store) CategoryProfile(ctx context.Context, category, period string) (model.Profile, error) {
	key, err := s.queryKey(category, period)
	if err != nil {
		metrics.RecordQuery("profile", "invalid")
		return model.Profile{}, err
	}
	profile := model.Profile{Category: category, Period: period, Averages: map[model.Field]float64{}}

	sum, count, present := s.read(key)
	if count == 0 {
		metrics.RecordQuery("profile", string(model.StatusInsufficientData))
		return profile, nil
	}
	values, err := s.he.Decrypt(ctx, sum, len(model.TrackedFields))
	if err != nil {
		metrics.RecordQuery("profile", "error")
		return model.Profile{}, fmt.Errorf("decrypt %s: %w", key, err)
	}

	profile.SampleCount = count
	for i, f := range model.TrackedFields {
		if present[i] == 0 {
			continue
		}
		mean := values[i] / float64(present[i])
		if f == model.FieldRevenue {
			profile.Averages[f] = mean * revenueScale
			continue
		}
		profile.Averages[f] = encoder.Denormalize(mean, f)
	}
	metrics.RecordQuery("profile", string(model.StatusSuccess))
	return profile, nil
}

// CompareAgainstMarket compares value with the average revenue of category
// (and period, when set). A target with no contributions yields an
// insufficient-data result, not an error.
func (s *Store) CompareAgainstMarket(ctx context.Context, value float64, category, period string) (model.ComparisonResult, error) {
	key, err := s.queryKey(category, period)
	if err != nil {
		metrics.RecordQuery("compare", "invalid")
		return model.ComparisonResult{}, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		metrics.RecordQuery("compare", "invalid")
		return model.ComparisonResult{}, &model.ValidationError{Field: string(model.FieldRevenue), Reason: "must be a non-negative finite number"}
	}

	res := model.ComparisonResult{Category: category, Period: period, Value: value}
	sum, count, _ := s.read(key)
	if count == 0 {
		res.Status = model.StatusInsufficientData
		res.Message = insufficientMessage(category, period)
		metrics.RecordQuery("compare", string(res.Status))
		return res, nil
	}

	revenueSlot := model.FieldIndex(model.FieldRevenue)
	values, err := s.he.Decrypt(ctx, sum, revenueSlot+1)
	if err != nil {
		metrics.RecordQuery("compare", "error")
		return model.ComparisonResult{}, fmt.Errorf("decrypt %s: %w", key, err)
	}
	res.Average = values[revenueSlot] / float64(count) * revenueScale
	res.SampleCount = count

	ratio, ok := scoring.Ratio(value, res.Average)
	if !ok {
		res.Status = model.StatusInsufficientData
		res.Message = "market average is zero; no baseline to compare against"
		metrics.RecordQuery("compare", string(res.Status))
		return res, nil
	}
	pos, perf := s.classifier.Classify(ratio)
	res.Status = model.StatusSuccess
	res.Ratio = ratio
	res.Position = string(pos)
	res.Performance = string(perf)
	metrics.RecordQuery("compare", string(res.Status))
	s.logger.Debug(ctx, "market comparison",
		logger.String("key", key),
		logger.Int("sample_count", count),
		logger.String("performance", res.Performance))
	return res, nil
}

func insufficientMessage(category, period string) string {
	if period == "" {
		return fmt.Sprintf("no contributions recorded for %s yet", category)
	}
	return fmt.Sprintf("no contributions recorded for %s in %s yet", category, period)
}

// queryKey resolves the accumulator key of a query target.
func (s *Store) queryKey(category, period string) (string, error) {
	if model.CategoryIndex(category) < 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	if period == "" {
		return cellKey(category, ""), nil
	}
	if model.PeriodIndex(period) < 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
	}
	return cellKey(category, period), nil
}

// PrivacyReport summarizes the cleartext metadata. Nothing is decrypted.
func (s *Store) PrivacyReport(_ context.Context) model.PrivacyReport {
	s.metaMu.RLock()
	defer s.metaMu.RUnlock()

	report := model.PrivacyReport{
		TotalRecords:         s.totalRecords,
		TotalArtists:         len(s.contributors),
		CategoryDistribution: make(map[string]int, len(s.categoryCounts)),
		PeriodDistribution:   make(map[string]int, len(s.periodCounts)),
		PrivacyLevel:         PrivacyLevel,
		EncryptionMethod:     EncryptionMethod,
		DataProcessing:       DataProcessing,
	}
	for k, v := range s.categoryCounts {
		report.CategoryDistribution[k] = v
	}
	for k, v := range s.periodCounts {
		report.PeriodDistribution[k] = v
	}
	return report
}
