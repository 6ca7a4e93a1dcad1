package filter

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
)

var revenueSuffixes = map[byte]float64{
	'K': 1_000,
	'M': 1_000_000,
	'B': 1_000_000_000,
}

// ParseRevenue converts a free-text revenue value to dollars. Accepted forms:
// "$1,200,000", "1200000", "2M", "1.5K", "3B".
func ParseRevenue(s string) (float64, error) {
	clean := strings.TrimSpace(strings.NewReplacer("$", "", ",", "").Replace(s))
	if clean == "" {
		return 0, eris.New("empty revenue value")
	}

	mult := 1.0
	last := clean[len(clean)-1]
	if m, ok := revenueSuffixes[last]; ok {
		mult = m
		clean = clean[:len(clean)-1]
	} else if m, ok := revenueSuffixes[last&^0x20]; ok { // lowercase suffix
		mult = m
		clean = clean[:len(clean)-1]
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(clean), 64)
	if err != nil {
		return 0, eris.Wrapf(err, "parse revenue %q", s)
	}
	return v * mult, nil
}

// Revenue keeps leads whose annual revenue falls inside [min, max]. Either
// bound may be nil. Leads with missing or unparseable revenue are excluded.
// Returns EmptyResultError when every lead is removed.
func Revenue(leads []model.Lead, min, max *float64) ([]model.Lead, error) {
	if min == nil && max == nil {
		return leads, nil
	}

	kept := make([]model.Lead, 0, len(leads))
	for _, lead := range leads {
		revenue, err := ParseRevenue(lead.CompanyRevenue)
		if err != nil {
			zap.L().Warn("excluding lead with unusable revenue",
				zap.String("email", lead.Email),
				zap.String("revenue", lead.CompanyRevenue))
			continue
		}
		if min != nil && revenue < *min {
			continue
		}
		if max != nil && revenue > *max {
			continue
		}
		kept = append(kept, lead)
	}

	zap.L().Info("revenue filter applied",
		zap.Int("before", len(leads)), zap.Int("after", len(kept)))

	if len(kept) == 0 && len(leads) > 0 {
		return nil, &EmptyResultError{Filter: "revenue"}
	}
	return kept, nil
}
