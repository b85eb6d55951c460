package llm

// costPerToken stores per-1K-token pricing for known models.
// Prices in USD per 1K tokens: [input, output].
var costPerToken = map[string][2]float64{
	// Groq
	"meta-llama/llama-4-scout-17b-16e-instruct":     {0.00011, 0.00034},
	"meta-llama/llama-4-maverick-17b-128e-instruct": {0.0002, 0.0006},

	// OpenAI
	"gpt-4-turbo": {0.01, 0.03},
	"gpt-4o":      {0.005, 0.015},
	"gpt-4o-mini": {0.00015, 0.0006},

	// Anthropic
	"claude-3-5-sonnet-20241022": {0.003, 0.015},
	"claude-3-5-haiku-20241022":  {0.0008, 0.004},
	"claude-sonnet-4-20250514":   {0.003, 0.015},
}

func CalculateCost(model string, inputTokens, outputTokens int) float64 {
	prices, ok := costPerToken[model]
	if !ok {
		return 0
	}
	inputCost := float64(inputTokens) / 1000.0 * prices[0]
	outputCost := float64(outputTokens) / 1000.0 * prices[1]
	return inputCost + outputCost
}
