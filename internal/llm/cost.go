package llm

import "strings"

// pricing is USD per 1K tokens, [input, output], keyed by model family.
// Providers report dated model names ("gpt-4o-mini-2024-07-18"), so lookups
// match the longest family prefix.
var pricing = map[string][2]float64{
	"gpt-4o":       {0.0025, 0.01},
	"gpt-4o-mini":  {0.00015, 0.0006},
	"gpt-4.1":      {0.002, 0.008},
	"gpt-4.1-mini": {0.0004, 0.0016},

	"claude-3-5-haiku": {0.0008, 0.004},
	"claude-sonnet-4":  {0.003, 0.015},
	"claude-opus-4":    {0.015, 0.075},
}

func CalculateCost(model string, inputTokens, outputTokens int) float64 {
	var best string
	for family := range pricing {
		if strings.HasPrefix(model, family) && len(family) > len(best) {
			best = family
		}
	}
	if best == "" {
		return 0
	}
	p := pricing[best]
	return float64(inputTokens)/1000*p[0] + float64(outputTokens)/1000*p[1]
}
