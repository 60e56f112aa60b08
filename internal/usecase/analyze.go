package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"vidyaguide/internal/domain"
)

const (
	minResumeTextLen    = 20
	analysisTemperature = 0.1
	analysisMaxTokens   = 2000
)

// PDFSniffer reports whether content looks like a PDF document.
type PDFSniffer func(content []byte) bool

// TextExtractor turns a PDF document into plain text.
type TextExtractor func(content []byte) (string, error)

type AnalyzeService struct {
	llm     LLMClient
	isPDF   PDFSniffer
	extract TextExtractor
	model   string
}

type AnalyzeInput struct {
	Filename string
	Content  []byte
}

func NewAnalyzeService(llm LLMClient, isPDF PDFSniffer, extract TextExtractor, model string) (*AnalyzeService, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if isPDF == nil {
		return nil, errors.New("usecase: pdf sniffer must not be nil")
	}
	if extract == nil {
		return nil, errors.New("usecase: text extractor must not be nil")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	return &AnalyzeService{llm: llm, isPDF: isPDF, extract: extract, model: model}, nil
}

func (s *AnalyzeService) Analyze(ctx context.Context, in AnalyzeInput) (domain.ResumeAnalysis, error) {
	if strings.TrimSpace(in.Filename) == "" || len(in.Content) == 0 {
		return domain.ResumeAnalysis{}, newError(ErrorInvalidInput, "missing_file", nil)
	}
	if !strings.EqualFold(filepath.Ext(in.Filename), ".pdf") || !s.isPDF(in.Content) {
		return domain.ResumeAnalysis{}, newError(ErrorInvalidInput, "not_pdf", nil)
	}

	text, err := s.extract(in.Content)
	if err != nil {
		return domain.ResumeAnalysis{}, newError(ErrorInvalidInput, "unreadable_pdf", err)
	}
	if len(strings.Join(strings.Fields(text), "")) < minResumeTextLen {
		return domain.ResumeAnalysis{}, newError(ErrorInvalidInput, "no_text", nil)
	}

	raw, err := s.llm.Complete(ctx, domain.Completion{
		Model:       s.model,
		Messages:    []domain.ChatMessage{{Role: "user", Content: buildAnalysisPrompt(text)}},
		Temperature: analysisTemperature,
		MaxTokens:   analysisMaxTokens,
	})
	if err != nil {
		return domain.ResumeAnalysis{}, upstreamError("llm", err)
	}

	analysis, err := parseAnalysis(raw)
	if err != nil {
		return domain.ResumeAnalysis{}, newError(ErrorUpstream, "malformed_analysis", err)
	}
	return analysis, nil
}
