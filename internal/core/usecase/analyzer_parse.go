package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/document-enrichment/internal/core/domain"
)

const (
	summaryLanguage    = "en"
	maxKeyPoints       = 5
	minKeyPointLength  = 20
	classificationNote = "classified by model"
)

// parseClassification tolerates code fences and prose around the JSON object.
func parseClassification(raw string) domain.ClassificationResult {
	result := domain.ClassificationResult{
		PrimaryCategory: domain.CategoryUnknown,
		Tags:            []string{},
	}

	payload, err := jsonObject(stripCodeFences(raw))
	if err == nil {
		var fields map[string]any
		if err = json.Unmarshal([]byte(payload), &fields); err == nil {
			category, confidence, tags := classificationFields(fields)
			if category != "" {
				result.PrimaryCategory = category
			}
			result.Confidence = map[string]float64{result.PrimaryCategory: confidence}
			result.Tags = tags
			result.ProcessingNotes = classificationNote
			return result
		}
	}

	result.Confidence = map[string]float64{domain.CategoryUnknown: 0}
	result.Err = domain.WrapError(domain.ErrParse, "parse classification", err)
	result.ProcessingNotes = fmt.Sprintf("parse error: %v", err)
	return result
}

func classificationFields(fields map[string]any) (string, float64, []string) {
	category, _ := fields["category"].(string)
	category = strings.TrimSpace(category)

	var confidence float64
	switch v := fields["confidence"].(type) {
	case float64:
		confidence = v
	case string:
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			confidence = parsed
		}
	}
	confidence = min(max(confidence, 0), 1)

	tags := []string{}
	if list, ok := fields["tags"].([]any); ok {
		for _, item := range list {
			if tag, ok := item.(string); ok && strings.TrimSpace(tag) != "" {
				tags = append(tags, strings.TrimSpace(tag))
			}
		}
	}
	return category, confidence, tags
}

func stripCodeFences(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		} else {
			text = strings.TrimPrefix(text, "```")
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// jsonObject returns the text between the first '{' and the last '}'.
func jsonObject(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", errors.New("no json object in response")
	}
	return raw[start : end+1], nil
}

func parseSummary(raw string) domain.SummaryResult {
	summary := strings.TrimSpace(raw)
	return domain.SummaryResult{
		Summary:   summary,
		Language:  summaryLanguage,
		KeyPoints: keyPoints(summary),
	}
}

// keyPoints keeps the first sentences longer than minKeyPointLength characters.
func keyPoints(summary string) []string {
	out := []string{}
	sentences := strings.FieldsFunc(summary, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if utf8.RuneCountInString(sentence) <= minKeyPointLength {
			continue
		}
		out = append(out, sentence)
		if len(out) == maxKeyPoints {
			break
		}
	}
	return out
}
