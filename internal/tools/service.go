package tools

import "context"

// CodebaseService answers the read-only lookups behind the tool catalog.
type CodebaseService interface {
	SearchFile(ctx context.Context, filename string) (FileMatches, error)
	SearchMethod(ctx context.Context, methodName string) (FileMatches, error)
	CandidateFilenames(ctx context.Context) (FileMatches, error)
	MethodSignatures(ctx context.Context, filename string) (MethodSignatures, error)
	MethodBody(ctx context.Context, filename, signature string) (MethodBody, error)
}

// FileMatches lists fully qualified file names.
type FileMatches struct {
	Files   []string `json:"files"`
	Message string   `json:"message,omitempty"`
}

// MethodSignatures lists the method signatures declared in a file.
type MethodSignatures struct {
	File       string   `json:"file"`
	Signatures []string `json:"signatures"`
}

// MethodBody carries the source text of a single method.
type MethodBody struct {
	File      string `json:"file"`
	Signature string `json:"signature"`
	Body      string `json:"body"`
}

// ErrorResult is the payload returned to the model when a call cannot be served.
type ErrorResult struct {
	Error string `json:"error"`
}
