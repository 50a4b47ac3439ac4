package rpc

// RankFilesRequest asks the daemon to localize one bug report.
type RankFilesRequest struct {
	Project     string `json:"project"`
	BugID       string `json:"bug_id"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Model       string `json:"model,omitempty"`
}

// RankedFile mirrors one entry of the final ranking.
type RankedFile struct {
	File          string `json:"file"`
	Justification string `json:"justification"`
}

// Usage reports tokens accumulated over a run.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// RankFilesResponse carries the ranking and run accounting.
type RankFilesResponse struct {
	RunID      string       `json:"run_id"`
	Project    string       `json:"project"`
	BugID      string       `json:"bug_id"`
	Model      string       `json:"model"`
	Analysis   string       `json:"analysis_of_the_bug_report"`
	RankedList []RankedFile `json:"ranked_list"`
	Iterations int          `json:"iterations"`
	Usage      Usage        `json:"usage"`
	TracePath  string       `json:"trace_path,omitempty"`
}

// ErrorResponse is the body of a failed plain JSON request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}
