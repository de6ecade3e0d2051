package history

import "chatrelay/internal/models"

// Assemble appends the new user turn to the stored history and truncates
// the result to the most recent max entries. It never reorders, never
// deduplicates and passes message content through untouched; empty input
// is rejected at the request boundary, not here.
func Assemble(stored []models.Message, userText string, max int) []models.Message {
	merged := make([]models.Message, 0, len(stored)+1)
	merged = append(merged, stored...)
	merged = append(merged, models.UserMessage(userText))
	return Cap(merged, max)
}

// Cap truncates a history to its most recent max entries. The oldest
// messages are dropped; the suffix is always kept.
func Cap(messages []models.Message, max int) []models.Message {
	if max <= 0 || len(messages) <= max {
		return messages
	}
	return messages[len(messages)-max:]
}
