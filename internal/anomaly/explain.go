package anomaly

import (
	"github.com/xela07ax/fraudprofile/internal/domain"
)

// rule — именованный порог над живым вектором признаков.
type rule struct {
	label   string
	trigger func(v Vector) bool
}

var riskRules = map[domain.EventType][]rule{
	domain.EventLogin: {
		{"High login velocity", func(v Vector) bool { return v[0] > 10 }},
		{"Multiple locations", func(v Vector) bool { return v[1] > 3 }},
		{"Multiple devices", func(v Vector) bool { return v[2] > 2 }},
	},
	domain.EventTransaction: {
		{"High transaction velocity", func(v Vector) bool { return v[0] > 20 }},
		{"Large amount", func(v Vector) bool { return v[1] > 2*v[2] }},
		{"Unusual merchant", func(v Vector) bool { return v[3] > 5 }},
	},
	domain.EventFeatureUsage: {
		{"High feature usage velocity", func(v Vector) bool { return v[0] > 50 }},
		{"Unusual number of features", func(v Vector) bool { return v[1] > 10 }},
		{"Abnormal usage frequency", func(v Vector) bool { return v[3] > v[2] }},
		{"High total frequency", func(v Vector) bool { return v[4] > 100 }},
	},
	domain.EventSession: {
		{"High session velocity", func(v Vector) bool { return v[0] > 15 }},
		{"Long duration", func(v Vector) bool { return v[1] > 3600 }},
		{"Multiple sessions", func(v Vector) bool { return v[3] > 10 }},
	},
}

// Explain — чистая функция: сырые признаки, скор и только сработавшие факторы.
func Explain(t domain.EventType, v Vector, score float64) domain.Explanation {
	names := featureNames[t]
	features := make(map[string]float64, len(names))
	for i, name := range names {
		if i < len(v) {
			features[name] = v[i]
		}
	}

	factors := []string{}
	if len(v) == len(names) {
		for _, r := range riskRules[t] {
			if r.trigger(v) {
				factors = append(factors, r.label)
			}
		}
	}

	return domain.Explanation{
		EventType:    t,
		Features:     features,
		AnomalyScore: score,
		RiskFactors:  factors,
	}
}
