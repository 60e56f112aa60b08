package domain

// ResumeAnalysis is the structured result of a resume review.
type ResumeAnalysis struct {
	Score              int      `json:"score"`
	Strengths          []string `json:"strengths"`
	Weaknesses         []string `json:"weaknesses"`
	SkillsMissing      []string `json:"skills_missing"`
	JobRoles           []string `json:"job_roles"`
	CareerPaths        []string `json:"career_paths"`
	Roadmap6M          []string `json:"roadmap_6m"`
	Roadmap12M         []string `json:"roadmap_12m"`
	InterviewQuestions []string `json:"interview_questions"`
	Summary            string   `json:"summary"`
}
