package types

type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

type UploadResponse struct {
	Filename    string `json:"filename"`
	Key         string `json:"key"`
	TextContent string `json:"text_content"`
	Status      string `json:"status"`
}
