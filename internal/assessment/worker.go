// Package assessment generates burnout assessments, scores, and summaries by
// delegating natural-language work to the GenAI client.
package assessment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maremivazquez1/DigitalTherapyAssistant-sub001/internal/genai"
	"github.com/maremivazquez1/DigitalTherapyAssistant-sub001/internal/models"
)

// StandardQuestionCount is the number of Likert-scale questions generated per domain.
const StandardQuestionCount = 3

// Prompt texts for the generation tasks. Scoring and summarization receive the
// formatted transcript, not structured data, so the model can stay an opaque
// natural-language black box.
const (
	standardQuestionSystemPrompt = "You are an expert in mental health and burnout assessment. " +
		"Create professional, evidence-based burnout assessment questions that allow users to self-reflect on their experiences. " +
		"The questions should be framed as statements that a person would rate on a 7-point Likert scale from 0 (Never) to 6 (Every day). " +
		"The questions should be clear, direct, and focused on the specific domain."

	standardQuestionUserPrompt = "Generate %d burnout assessment statements for the %s domain (%s). " +
		"These should be statements that users would rate on a scale of 0-6. " +
		"Format each question on its own line with no numbering or prefixes."

	multimodalQuestionSystemPrompt = "You are an expert in mental health and burnout assessment. " +
		"Create professional prompts that ask users to provide a video response about their experiences related to a specific domain. " +
		"The prompts should encourage users to share their thoughts and feelings, providing a basis for multimodal analysis of their " +
		"facial expressions, voice tone, and emotional state. The questions should be open-ended but focused."

	multimodalQuestionUserPrompt = "Only generate a single sentence. Create a video response prompt for the %s domain (%s). " +
		"The prompt should ask users to describe a specific experience or feeling related to this domain " +
		"that would reveal emotional and behavioral markers of potential burnout through video analysis."

	scoreSystemPrompt = "You are a mental health professional specializing in burnout assessment scoring. " +
		"Your task is to analyze the responses to burnout assessment questions and calculate a single numerical burnout score. " +
		"Responses are rated on a 0-6 scale (0 = Never, 6 = Every day), and some may include multimodal insights such as text, voice tone, and facial expressions."

	scoreUserPrompt = "Review the following burnout assessment responses rated on a 0-6 scale (0 = Never, 6 = Every day):\n%s\n\n" +
		"Based on the overall patterns in the responses and multimodal insights, calculate a single overall burnout score on a scale of 0-10. " +
		"Then, provide a 3-sentence explanation for the score. The explanation should be concise. " +
		"Return your response as a JSON object with two fields: 'score' (a numeric value) and 'explanation' (a string)."

	summarySystemPrompt = "You are a mental health professional trained to interpret burnout assessments. " +
		"Your task is to generate a concise 4-5 sentence summary based on the user's responses to a burnout assessment. " +
		"Responses are rated on a 0-6 scale (0 = Never, 6 = Every day), and may include multimodal inputs such as text, tone of voice, and facial expression. " +
		"Your summary should describe the types of questions asked, highlight areas where the user rated themselves positively or negatively, and include insights from the user's verbal and textual responses. " +
		"Use concise, user-directed language (e.g., 'Today your burnout assessment shows you...'). Do not provide advice or recommendations."

	summaryUserPrompt = "Review the following burnout assessment session:\n%s\n\n" +
		"Generate a 4-5 sentence summary that includes:\n" +
		"- What kinds of questions were asked,\n" +
		"- Where the user rated themselves positively or negatively,\n" +
		"- Any insights from their text and spoken responses.\n\n" +
		"Use direct, personal language aimed at the user. Do not include any advice or suggestions."
)

// Worker generates assessment content. It makes no retries; any underlying
// generation failure propagates to the caller.
type Worker struct {
	genaiClient genai.ClientInterface
}

// NewWorker creates an assessment worker backed by the given GenAI client.
func NewWorker(genaiClient genai.ClientInterface) *Worker {
	return &Worker{genaiClient: genaiClient}
}

// GenerateAssessment builds the full question set: for each domain in fixed
// order, three standard Likert statements followed by one multimodal prompt.
// No partial assessment is ever returned; the first failure aborts.
func (w *Worker) GenerateAssessment(ctx context.Context) (models.Assessment, error) {
	slog.Debug("Worker.GenerateAssessment: generating assessment")

	var questions []models.Question
	for _, domain := range models.AllDomains() {
		standard, err := w.generateStandardQuestions(ctx, domain)
		if err != nil {
			slog.Error("Worker.GenerateAssessment: standard question generation failed", "error", err, "domain", domain)
			return models.Assessment{}, fmt.Errorf("%w: standard questions for %s: %v", models.ErrGenerationFailed, domain, err)
		}
		for i, text := range standard {
			questions = append(questions, models.Question{
				QuestionID: fmt.Sprintf("%s_std_%d", strings.ToLower(string(domain)), i+1),
				Text:       text,
				Domain:     domain,
				Multimodal: false,
			})
		}

		multimodal, err := w.generateMultimodalQuestion(ctx, domain)
		if err != nil {
			slog.Error("Worker.GenerateAssessment: multimodal question generation failed", "error", err, "domain", domain)
			return models.Assessment{}, fmt.Errorf("%w: multimodal question for %s: %v", models.ErrGenerationFailed, domain, err)
		}
		questions = append(questions, models.Question{
			QuestionID: fmt.Sprintf("%s_multi_1", strings.ToLower(string(domain))),
			Text:       multimodal,
			Domain:     domain,
			Multimodal: true,
		})
	}

	assessment := models.Assessment{Questions: questions}
	if err := assessment.Validate(); err != nil {
		slog.Error("Worker.GenerateAssessment: generated assessment invalid", "error", err)
		return models.Assessment{}, fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
	}

	slog.Info("Worker.GenerateAssessment: assessment generated", "question_count", len(questions))
	return assessment, nil
}

// generateStandardQuestions requests the Likert statements for one domain and
// splits them one per line, dropping blanks.
func (w *Worker) generateStandardQuestions(ctx context.Context, domain models.AssessmentDomain) ([]string, error) {
	userPrompt := fmt.Sprintf(standardQuestionUserPrompt, StandardQuestionCount, domain.DisplayName(), domain.Description())
	raw, err := w.genaiClient.GeneratePromptWithContext(ctx, standardQuestionSystemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	var questions []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		questions = append(questions, line)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("empty question list returned")
	}
	if len(questions) > StandardQuestionCount {
		questions = questions[:StandardQuestionCount]
	}
	return questions, nil
}

// generateMultimodalQuestion requests the single open-response prompt for one domain.
func (w *Worker) generateMultimodalQuestion(ctx context.Context, domain models.AssessmentDomain) (string, error) {
	userPrompt := fmt.Sprintf(multimodalQuestionUserPrompt, domain.DisplayName(), domain.Description())
	raw, err := w.genaiClient.GeneratePromptWithContext(ctx, multimodalQuestionSystemPrompt, userPrompt)
	if err != nil {
		return "", err
	}
	question := strings.TrimSpace(raw)
	if question == "" {
		return "", fmt.Errorf("empty multimodal question returned")
	}
	return question, nil
}

// scoreResult is the structured shape expected from the scoring capability.
type scoreResult struct {
	Score       *float64 `json:"score"`
	Explanation string   `json:"explanation"`
}

// GenerateScore submits the transcript to the scoring capability and parses
// the JSON result. The model sometimes wraps output in markdown fences, which
// are stripped before parsing. A score outside [0,10] counts as malformed.
func (w *Worker) GenerateScore(ctx context.Context, transcript string) (float64, string, error) {
	raw, err := w.genaiClient.GeneratePromptWithContext(ctx, scoreSystemPrompt, fmt.Sprintf(scoreUserPrompt, transcript))
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
	}

	cleaned := StripMarkdownFences(raw)
	var result scoreResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		slog.Error("Worker.GenerateScore: score output is not valid JSON", "error", err)
		return 0, "", fmt.Errorf("%w: %v", models.ErrScoreParse, err)
	}
	if result.Score == nil {
		slog.Error("Worker.GenerateScore: score field missing")
		return 0, "", fmt.Errorf("%w: missing score field", models.ErrScoreParse)
	}
	if *result.Score < 0 || *result.Score > 10 {
		slog.Error("Worker.GenerateScore: score out of range", "score", *result.Score)
		return 0, "", fmt.Errorf("%w: score %v out of range [0,10]", models.ErrScoreParse, *result.Score)
	}

	slog.Debug("Worker.GenerateScore: score parsed", "score", *result.Score, "explanation_length", len(result.Explanation))
	return *result.Score, result.Explanation, nil
}

// GenerateSummary submits the transcript to the summarization capability.
func (w *Worker) GenerateSummary(ctx context.Context, transcript string) (string, error) {
	raw, err := w.genaiClient.GeneratePromptWithContext(ctx, summarySystemPrompt, fmt.Sprintf(summaryUserPrompt, transcript))
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
	}
	summary := strings.TrimSpace(raw)
	if summary == "" {
		return "", fmt.Errorf("%w: empty summary returned", models.ErrGenerationFailed)
	}
	return summary, nil
}

// StripMarkdownFences removes a leading ```json (or bare ```) fence and the
// trailing ``` from model output.
func StripMarkdownFences(s string) string {
	cleaned := strings.TrimSpace(s)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
		cleaned = strings.TrimSpace(cleaned)
	}
	return cleaned
}
