package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// DefaultConfidence is assumed when the vision tool does not state one.
const DefaultConfidence = 0.8

// OCRConfig selects the Tesseract engine and a single uniform block of text.
const OCRConfig = "--oem 3 --psm 6"

const captchaPrompt = `This is a CAPTCHA image. Read the text or answer shown in it.
Reply with JSON only: {"answer": "<answer>", "confidence": <0..1>}`

// Solution is a CAPTCHA answer proposed by the vision tool.
type Solution struct {
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
}

// SolveCaptcha asks the vision tool to read the CAPTCHA image at path.
func (c *Client) SolveCaptcha(ctx context.Context, path string) (Solution, error) {
	text, err := c.Call(ctx, c.vision, map[string]any{
		"prompt": captchaPrompt,
		"image":  path,
	})
	if err != nil {
		return Solution{}, err
	}
	return parseSolution(text)
}

// reply is the JSON the vision tool is asked for. A nil Confidence means
// the field was missing.
type reply struct {
	Answer     string   `json:"answer"`
	Confidence *float64 `json:"confidence"`
}

// parseSolution accepts either the requested JSON or a bare answer.
func parseSolution(text string) (Solution, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.Trim(text, "`\n ")

	var r reply
	if err := json.Unmarshal([]byte(text), &r); err == nil {
		answer := strings.TrimSpace(r.Answer)
		if answer == "" {
			return Solution{}, ErrEmptyResult
		}
		if r.Confidence == nil {
			return Solution{Answer: answer, Confidence: DefaultConfidence}, nil
		}
		confidence, err := normalizeConfidence(*r.Confidence)
		if err != nil {
			return Solution{}, err
		}
		return Solution{Answer: answer, Confidence: confidence}, nil
	}

	answer, _, _ := strings.Cut(text, "\n")
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return Solution{}, ErrEmptyResult
	}
	return Solution{Answer: answer, Confidence: DefaultConfidence}, nil
}

// normalizeConfidence maps c into [0,1]. Values in (1,100] are read as
// percentages.
func normalizeConfidence(c float64) (float64, error) {
	switch {
	case math.IsNaN(c) || c < 0 || c > 100:
		return 0, fmt.Errorf("%w: %v", ErrInvalidConfidence, c)
	case c > 1:
		return c / 100, nil
	default:
		return c, nil
	}
}

// ExtractText runs OCR over the image at path.
func (c *Client) ExtractText(ctx context.Context, path, language string) (string, error) {
	text, err := c.Call(ctx, c.ocr, map[string]any{
		"input_data": path,
		"language":   language,
		"config":     OCRConfig,
	})
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}
	return text, nil
}
