package usecases

import "github.com/0xcro3dile/ragchat-go/internal/domain/entities"

// DefaultHistoryWindow is how many conversational messages ride along with a query.
const DefaultHistoryWindow = 6

// DeriveContext builds the chat history for an outgoing query: only user and
// assistant messages, in transcript order, limited to the most recent limit.
// The result is never nil so it encodes as an empty JSON array.
func DeriveContext(messages []entities.Message, limit int) []entities.ChatTurn {
	if limit <= 0 {
		limit = DefaultHistoryWindow
	}

	turns := make([]entities.ChatTurn, 0, limit)
	for _, m := range messages {
		if !m.Type.Conversational() {
			continue
		}
		turns = append(turns, entities.ChatTurn{
			Role:    string(m.Type),
			Content: m.Content,
		})
	}

	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns
}
