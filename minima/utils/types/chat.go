package types

type GenerateRequest struct {
	Prompt      string   `json:"prompt"`
	Temperature float64  `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Provider    string   `json:"provider,omitempty"`
	StudyMode   bool     `json:"study_mode,omitempty"`
	ActiveTools []string `json:"active_tools,omitempty"`
}

type GenerateResponse struct {
	Response string `json:"response"`
	Provider string `json:"provider"`
}

type CreateSessionRequest struct {
	Title string `json:"title"`
}

type UpdateSessionRequest struct {
	Title *string `json:"title,omitempty"`
}

type CreateMessageRequest struct {
	ChatSessionID string `json:"chat_session_id"`
	Role          string `json:"role"`
	Content       string `json:"content"`
	Provider      string `json:"provider,omitempty"`
}
