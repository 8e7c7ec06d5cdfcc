package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/sandeepkv93/ai-saas-backend/internal/domain"
	"github.com/sandeepkv93/ai-saas-backend/internal/observability"
	"github.com/sandeepkv93/ai-saas-backend/internal/repository"
)

const (
	articleTemperature = 0.7
	titleTemperature   = 0.9
	creditsPerCreation = 10
	defaultTitleCount  = 5
	maxTitleCount      = 20
	maxImageCount      = 4
	resumeTemperature  = 0.3
	maxResumeRunes     = 5000
)

var (
	ErrTopicRequired    = fmt.Errorf("%w: please provide a topic", ErrValidation)
	ErrPromptRequired   = fmt.Errorf("%w: please provide an image prompt", ErrValidation)
	ErrResumeRequired   = fmt.Errorf("%w: please upload a resume", ErrValidation)
	ErrCreationNotFound = errors.New("creation not found")
)

var listNumberPrefix = regexp.MustCompile(`^\d+[.)]\s*`)

type ArticleRequest struct {
	Topic    string `json:"topic"`
	Tone     string `json:"tone"`
	Length   int    `json:"length"`
	Keywords string `json:"keywords"`
}

type ArticleResult struct {
	Article   string `json:"article"`
	WordCount int    `json:"wordCount"`
}

type TitleRequest struct {
	Topic    string `json:"topic"`
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type BlogTitle struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

type ImageRequest struct {
	Prompt string `json:"prompt"`
	Style  string `json:"style"`
	Size   string `json:"size"`
	Count  int    `json:"count"`
}

type GeneratedImage struct {
	ID     int    `json:"id"`
	URL    string `json:"url"`
	Prompt string `json:"prompt"`
	Style  string `json:"style"`
	Size   string `json:"size"`
}

type ResumeRequest struct {
	Resume     string `json:"resume"`
	TargetRole string `json:"targetRole"`
}

type ResumeScores struct {
	Content    int `json:"content"`
	Formatting int `json:"formatting"`
	ATS        int `json:"ats"`
	Experience int `json:"experience"`
	Skills     int `json:"skills"`
}

type ResumeKeywords struct {
	Found   []string `json:"found"`
	Missing []string `json:"missing"`
}

type ResumeReview struct {
	OverallScore int            `json:"overallScore"`
	Scores       ResumeScores   `json:"scores"`
	Strengths    []string       `json:"strengths"`
	Improvements []string       `json:"improvements"`
	Keywords     ResumeKeywords `json:"keywords"`
	ATSScore     int            `json:"atsScore"`
}

// fallbackResumeReview is returned when the model output is not the
// requested JSON document.
func fallbackResumeReview() ResumeReview {
	return ResumeReview{
		OverallScore: 75,
		Scores:       ResumeScores{Content: 80, Formatting: 75, ATS: 70, Experience: 75, Skills: 80},
		Strengths:    []string{"Well-structured content", "Clear experience section"},
		Improvements: []string{"Add more keywords", "Improve ATS compatibility"},
		Keywords:     ResumeKeywords{Found: []string{"Management", "Leadership"}, Missing: []string{"Agile", "Scrum"}},
		ATSScore:     70,
	}
}

// ContentService runs content tools and records each output as a creation.
type ContentService struct {
	generator   ContentGenerator
	creations   repository.CreationRepository
	freeCredits int64
}

func NewContentService(generator ContentGenerator, creations repository.CreationRepository, freeCredits int64) *ContentService {
	return &ContentService{generator: generator, creations: creations, freeCredits: freeCredits}
}

func (s *ContentService) WriteArticle(ctx context.Context, userID uint, req ArticleRequest) (*ArticleResult, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, ErrTopicRequired
	}
	tone := strings.TrimSpace(req.Tone)
	if tone == "" {
		tone = "professional"
	}
	length := req.Length
	if length <= 0 {
		length = 800
	}
	prompt := fmt.Sprintf("Write a %s article about %q that is approximately %d words long. ", tone, topic, length)
	if kw := strings.TrimSpace(req.Keywords); kw != "" {
		prompt += fmt.Sprintf("Include these keywords: %s. ", kw)
	}
	prompt += "Use markdown formatting with headers, bullet points where appropriate. Make it engaging and informative."

	article, err := s.generate(ctx, "write-article", prompt, articleTemperature)
	if err != nil {
		return nil, err
	}
	wordCount := len(strings.Fields(article))
	if err := s.creations.Create(ctx, &domain.Creation{
		UserID:   userID,
		Type:     domain.CreationTypeArticle,
		Prompt:   topic,
		Output:   article,
		Tool:     domain.ToolWriteArticle,
		Metadata: datatypes.JSONMap{"tone": tone, "length": length, "wordCount": wordCount},
	}); err != nil {
		return nil, fmt.Errorf("save creation: %w", err)
	}
	return &ArticleResult{Article: article, WordCount: wordCount}, nil
}

func (s *ContentService) BlogTitles(ctx context.Context, userID uint, req TitleRequest) ([]BlogTitle, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, ErrTopicRequired
	}
	count := req.Count
	if count <= 0 {
		count = defaultTitleCount
	}
	if count > maxTitleCount {
		count = maxTitleCount
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = "general"
	}
	prompt := fmt.Sprintf("Generate %d catchy, SEO-friendly blog titles about %q in the %s category. "+
		"Make them engaging, click-worthy, and include power words. Format as a numbered list.", count, topic, category)

	text, err := s.generate(ctx, "blog-titles", prompt, titleTemperature)
	if err != nil {
		return nil, err
	}
	titles := ParseNumberedList(text)
	if err := s.creations.Create(ctx, &domain.Creation{
		UserID:   userID,
		Type:     domain.CreationTypeTitle,
		Prompt:   topic,
		Output:   text,
		Tool:     domain.ToolBlogTitle,
		Metadata: datatypes.JSONMap{"category": category, "count": len(titles)},
	}); err != nil {
		return nil, fmt.Errorf("save creation: %w", err)
	}
	return titles, nil
}

var placeholderResolutions = map[string]string{
	"1:1":  "800x800",
	"9:16": "600x1067",
	"16:9": "1067x600",
}

var placeholderColors = []string{"6366f1", "8b5cf6", "ec4899", "3b82f6", "10b981"}

// GenerateImages returns placeholder images; no image model is wired.
func (s *ContentService) GenerateImages(ctx context.Context, userID uint, req ImageRequest) ([]GeneratedImage, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, ErrPromptRequired
	}
	count := req.Count
	if count <= 0 {
		count = 1
	}
	if count > maxImageCount {
		count = maxImageCount
	}
	resolution, ok := placeholderResolutions[req.Size]
	if !ok {
		resolution = "800x800"
	}
	text := url.QueryEscape(strings.TrimSpace(req.Style + " " + prompt))
	images := make([]GeneratedImage, 0, count)
	urls := make([]string, 0, count)
	for i := 0; i < count; i++ {
		img := GeneratedImage{
			ID:     i + 1,
			URL:    fmt.Sprintf("https://via.placeholder.com/%s/%s/ffffff?text=%s", resolution, placeholderColors[i%len(placeholderColors)], text),
			Prompt: prompt,
			Style:  req.Style,
			Size:   req.Size,
		}
		images = append(images, img)
		urls = append(urls, img.URL)
	}
	if err := s.creations.Create(ctx, &domain.Creation{
		UserID:   userID,
		Type:     domain.CreationTypeImage,
		Prompt:   prompt,
		Output:   strings.Join(urls, "\n"),
		Tool:     domain.ToolGenerateImages,
		Metadata: datatypes.JSONMap{"style": req.Style, "size": req.Size, "urls": urls},
	}); err != nil {
		return nil, fmt.Errorf("save creation: %w", err)
	}
	return images, nil
}

// ReviewResume scores plain resume text. Only the first maxResumeRunes
// runes reach the model.
func (s *ContentService) ReviewResume(ctx context.Context, userID uint, req ResumeRequest) (*ResumeReview, error) {
	resume := strings.TrimSpace(req.Resume)
	if resume == "" {
		return nil, ErrResumeRequired
	}
	if r := []rune(resume); len(r) > maxResumeRunes {
		resume = string(r[:maxResumeRunes])
	}
	role := strings.TrimSpace(req.TargetRole)
	subject := "Analyze this resume"
	if role != "" {
		subject += " for a " + role + " position"
	}
	prompt := subject + ` and provide:
1. Overall score (0-100)
2. Scores for: content, formatting, ATS compatibility, experience, skills (each 0-100)
3. Top 5 strengths
4. Top 5 areas for improvement
5. Keywords found and keywords missing
6. ATS compatibility score

Resume content:
` + resume + `

Provide response in this JSON format:
{
  "overallScore": number,
  "scores": {"content": number, "formatting": number, "ats": number, "experience": number, "skills": number},
  "strengths": ["string"],
  "improvements": ["string"],
  "keywords": {"found": ["string"], "missing": ["string"]},
  "atsScore": number
}`

	text, err := s.generate(ctx, "review-resume", prompt, resumeTemperature)
	if err != nil {
		return nil, err
	}
	review, parsed := ParseResumeReview(text)
	output, err := json.Marshal(review)
	if err != nil {
		return nil, err
	}
	promptLabel := role
	if promptLabel == "" {
		promptLabel = "General review"
	}
	if err := s.creations.Create(ctx, &domain.Creation{
		UserID:   userID,
		Type:     domain.CreationTypeResume,
		Prompt:   promptLabel,
		Output:   string(output),
		Tool:     domain.ToolReviewResume,
		Metadata: datatypes.JSONMap{"targetRole": role, "parsed": parsed, "overallScore": review.OverallScore},
	}); err != nil {
		return nil, fmt.Errorf("save creation: %w", err)
	}
	return &review, nil
}

// ParseResumeReview decodes model output, tolerating a markdown code fence.
// The bool is false when the fallback review was substituted.
func ParseResumeReview(text string) (ResumeReview, bool) {
	raw := strings.TrimSpace(text)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	}
	var review ResumeReview
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &review); err != nil {
		return fallbackResumeReview(), false
	}
	return review, true
}

func (s *ContentService) ListCreations(ctx context.Context, userID uint, page repository.PageRequest) (repository.PageResult[domain.Creation], error) {
	return s.creations.ListByUser(ctx, userID, page)
}

func (s *ContentService) Stats(ctx context.Context, userID uint) (*domain.CreationStats, error) {
	total, tools, err := s.creations.StatsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	used := total * creditsPerCreation
	remaining := s.freeCredits - used
	if remaining < 0 {
		remaining = 0
	}
	return &domain.CreationStats{
		TotalCreations:   total,
		CreditsUsed:      used,
		CreditsRemaining: remaining,
		ToolsUsed:        tools,
	}, nil
}

func (s *ContentService) DeleteCreation(ctx context.Context, userID, id uint) error {
	if err := s.creations.DeleteForUser(ctx, userID, id); err != nil {
		if errors.Is(err, repository.ErrCreationNotFound) {
			return ErrCreationNotFound
		}
		return err
	}
	return nil
}

func (s *ContentService) generate(ctx context.Context, tool, prompt string, temperature float64) (string, error) {
	ctx, span := observability.StartSpan(ctx, "content."+tool)
	defer span.End()

	start := time.Now()
	out, err := s.generator.Generate(ctx, prompt, temperature)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		observability.RecordContentGeneration(ctx, tool, "error", elapsed)
		return "", fmt.Errorf("generate %s: %w", tool, err)
	}
	observability.RecordContentGeneration(ctx, tool, "success", elapsed)
	return out, nil
}

// ParseNumberedList splits model output into titles, dropping list numbering
// and blank lines.
func ParseNumberedList(text string) []BlogTitle {
	var out []BlogTitle
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		title := strings.TrimSpace(listNumberPrefix.ReplaceAllString(line, ""))
		title = strings.Trim(title, `*"`)
		if title == "" {
			continue
		}
		out = append(out, BlogTitle{ID: len(out) + 1, Title: title})
	}
	return out
}
