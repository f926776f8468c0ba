package rag

import "strings"

// shoppingKeywords mark a query as an inventory lookup.
var shoppingKeywords = []string{
	"find", "show", "recommend", "list", "suggest",
	"under", "budget", "cheap", "price", "afford",
	"mileage", "efficient",
	"suv", "sedan", "hatchback",
	"buy",
}

// hintKeywords are searched in the model's preliminary reply.
var hintKeywords = []string{"find", "show", "recommend", "list", "suggest"}

// Classify decides whether a query needs inventory retrieval.
// hint is the model's preliminary reply and may be empty.
func Classify(query, hint string) bool {
	return containsAny(query, shoppingKeywords) || containsAny(hint, hintKeywords)
}

func containsAny(s string, keywords []string) bool {
	if s == "" {
		return false
	}
	s = strings.ToLower(s)
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
