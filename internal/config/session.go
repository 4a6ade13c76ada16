package config

// Session holds the chat settings a user can change mid-conversation.
// Each chat session owns its own copy; see AppConfig.Session.
type Session struct {
	SystemMessage    string
	UserID           string
	MaxTokens        int
	Temperature      float64
	TopN             int
	PresencePenalty  *float64
	FrequencyPenalty *float64
	StopSequences    []string
	Debug            bool
}
