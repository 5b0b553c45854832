package utils

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PredictionResponse is the JSON object LLM classifiers are asked to answer with
type PredictionResponse struct {
	Prediction  string  `json:"prediction"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}

const urlPromptFormat = `You are a phishing detection system. Analyze the following URL and determine if it is a phishing site.
Respond with a JSON object containing:
- prediction: string, either "phishing" or "legitimate"
- confidence: number between 0 and 1 (how confident you are in your assessment)
- explanation: string (brief explanation of your assessment)

URL: %s

Respond only with the JSON object and nothing else.`

const emailPromptFormat = `You are a phishing detection system. Analyze the following email and determine if it is a phishing attempt.
Respond with a JSON object containing:
- prediction: string, either "phishing" or "legitimate"
- confidence: number between 0 and 1 (how confident you are in your assessment)
- explanation: string (brief explanation of your assessment)

Email:
From: %s
Subject: %s
Body:
%s

Respond only with the JSON object and nothing else.`

// URLPrompt builds the classification prompt for a URL
func URLPrompt(url string) string {
	return fmt.Sprintf(urlPromptFormat, url)
}

// EmailPrompt builds the classification prompt for an email
func EmailPrompt(sender, subject, body string) string {
	return fmt.Sprintf(emailPromptFormat, sender, subject, body)
}

// ParsePrediction decodes a model completion, tolerating text around the JSON object
func ParsePrediction(text string) (*PredictionResponse, error) {
	var resp PredictionResponse
	if err := json.Unmarshal([]byte(text), &resp); err == nil {
		return &resp, nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("failed to extract JSON from LLM response")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response as JSON: %w", err)
	}
	return &resp, nil
}
