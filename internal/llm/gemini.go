package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"certverify/internal/models"
)

const DefaultModel = "gemini-2.0-flash-lite"

const prompt = `You are an expert data extraction assistant. Your job is to extract specific fields from the following raw text of a course completion certificate and return the data in a clean JSON format.

Here are the rules:
1. The required fields are: "name" (candidate name), "course", "certificate_id", "score", "term" (month and year or month range and year), "institute" and "roll_no".
2. If a field cannot be found in the text, its value in the JSON must be null. Never guess.
3. Your entire response must be ONLY the JSON object. Do not include any explanations, apologies, or any text before or after the JSON.
4. Clean the extracted data by removing any unnecessary newline characters or extra whitespace.

Here is the raw text:
"""
%s
"""`

// Parser asks Gemini for certificate fields the heuristic extractor missed.
type Parser struct {
	client *genai.Client
	model  string
}

// New creates a Gemini client. It is meant to live for the whole process.
func New(ctx context.Context, apiKey, model string) (*Parser, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("missing GEMINI_API_KEY")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to init Gemini client: %w", err)
	}
	return &Parser{client: client, model: model}, nil
}

func (p *Parser) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

// Fill returns the fields Gemini finds in text. Nothing is requested when
// the name, course and certificate id are already known.
func (p *Parser) Fill(ctx context.Context, text string, fields models.ExtractedFields) (models.ExtractedFields, error) {
	if fields.Name.IsSet() && fields.Course.IsSet() && fields.CertificateID.IsSet() {
		return fields, nil
	}
	if strings.TrimSpace(text) == "" {
		return fields, nil
	}

	model := p.client.GenerativeModel(p.model)
	// Ask Gemini to return JSON only
	model.GenerationConfig = genai.GenerationConfig{ResponseMIMEType: "application/json"}

	resp, err := model.GenerateContent(ctx, genai.Text(fmt.Sprintf(prompt, text)))
	if err != nil {
		return fields, fmt.Errorf("gemini generation failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return fields, errors.New("empty response from Gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return DecodeFields(sb.String())
}

// DecodeFields parses a model reply into ExtractedFields. The reply may be
// wrapped in Markdown code fences or surrounded by prose. Null, missing and
// blank values are absent.
func DecodeFields(reply string) (models.ExtractedFields, error) {
	var out models.ExtractedFields

	jsonStr := stripCodeFences(reply)
	if jsonStr == "" {
		return out, errors.New("no text in Gemini response")
	}
	if candidate, ok := extractFirstJSON(jsonStr); ok {
		jsonStr = candidate
	}

	// Tolerate nulls and numbers by unmarshaling into a map first
	var tmp map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &tmp); err != nil {
		return out, fmt.Errorf("failed to parse Gemini JSON: %w", err)
	}
	get := func(k string) models.Value {
		v, ok := tmp[k]
		if !ok || v == nil {
			return models.None()
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		default:
			b, _ := json.Marshal(t)
			s = string(b)
		}
		s = strings.Join(strings.Fields(s), " ")
		if s == "" {
			return models.None()
		}
		return models.Some(s)
	}

	out.Name = get("name")
	out.Course = get("course")
	out.CertificateID = get("certificate_id")
	if id, ok := out.CertificateID.Get(); ok {
		out.CertificateID = models.Some(strings.ToUpper(id))
	}
	out.Score = get("score")
	out.Term = get("term")
	out.Institute = get("institute")
	out.RollNo = get("roll_no")
	return out, nil
}

// stripCodeFences removes surrounding Markdown code fences like ```json ... ```.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		// remove a possible language tag at the start of the fence
		if i := strings.IndexByte(s, '\n'); i != -1 {
			first := strings.TrimSpace(s[:i])
			if len(first) < 20 && !strings.ContainsAny(first, "{[") {
				s = s[i+1:]
			}
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

// extractFirstJSON attempts to extract the first balanced JSON object or array.
func extractFirstJSON(s string) (string, bool) {
	if obj, ok := extractBalanced(s, '{', '}'); ok {
		return obj, true
	}
	if arr, ok := extractBalanced(s, '[', ']'); ok {
		return arr, true
	}
	return "", false
}

func extractBalanced(s string, open, close rune) (string, bool) {
	start := -1
	depth := 0
	for i, r := range s {
		switch {
		case r == open:
			if depth == 0 {
				start = i
			}
			depth++
		case r == close && depth > 0:
			depth--
			if depth == 0 && start != -1 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
