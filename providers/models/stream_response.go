package models

// StreamResponse is one chunk of a streamed completion.
type StreamResponse struct {
	Content string
	Err     error
	Done    bool
}

// AIError is the error envelope returned by OpenAI-compatible and Ollama APIs.
type AIError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}
