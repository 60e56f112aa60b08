package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"vidyaguide/internal/domain"
)

const analysisSchema = `{
 "score": 0,
 "strengths": [],
 "weaknesses": [],
 "skills_missing": [],
 "job_roles": [],
 "career_paths": [],
 "roadmap_6m": [],
 "roadmap_12m": [],
 "interview_questions": [],
 "summary": ""
}`

func buildAnalysisPrompt(resumeText string) string {
	return strings.Join([]string{
		"You are VidyaGuide AI, a strict JSON-only resume analyzer.",
		"Your output MUST be valid JSON only: no prose, no markdown.",
		"",
		"Return exactly this structure:",
		analysisSchema,
		"",
		"score is an integer from 0 to 100.",
		"roadmap_6m and roadmap_12m list concrete steps for the next 6 and 12 months.",
		"",
		"Analyze this resume:",
		strings.TrimSpace(resumeText),
	}, "\n")
}

// extractJSONObject returns the span from the first '{' to the last '}'.
// Models often wrap the object in prose or code fences.
func extractJSONObject(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return "", false
	}
	return raw[start : end+1], true
}

func parseAnalysis(raw string) (domain.ResumeAnalysis, error) {
	obj, ok := extractJSONObject(raw)
	if !ok {
		return domain.ResumeAnalysis{}, errors.New("usecase: no JSON object in analysis reply")
	}
	var out domain.ResumeAnalysis
	if err := json.Unmarshal([]byte(obj), &out); err != nil {
		return domain.ResumeAnalysis{}, fmt.Errorf("usecase: decode analysis: %w", err)
	}
	out.Score = min(max(out.Score, 0), 100)
	return normalizeAnalysis(out), nil
}

// normalizeAnalysis replaces missing lists with empty ones so clients always
// see arrays.
func normalizeAnalysis(a domain.ResumeAnalysis) domain.ResumeAnalysis {
	for _, list := range []*[]string{
		&a.Strengths, &a.Weaknesses, &a.SkillsMissing, &a.JobRoles, &a.CareerPaths,
		&a.Roadmap6M, &a.Roadmap12M, &a.InterviewQuestions,
	} {
		if *list == nil {
			*list = []string{}
		}
	}
	a.Summary = strings.TrimSpace(a.Summary)
	return a
}
