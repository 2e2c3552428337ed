package companion

import (
	"context"
	"strings"

	"github.com/mindease/mindease-api/internal/model"
)

// Reply is a responder's answer and how sure it is, between 0 and 1.
type Reply struct {
	Content    string
	Confidence float64
}

// Responder produces the companion's side of the conversation.
type Responder interface {
	GenerateReply(ctx context.Context, message string, history []*model.CompanionMessage) (Reply, error)
}

type rule struct {
	keywords   []string
	reply      string
	confidence float64
}

// Crisis rules come first so they win over everything else.
var rules = []rule{
	{
		keywords:   []string{"suicide", "kill myself", "end my life", "self-harm", "hurt myself"},
		reply:      "I'm really sorry you're feeling this way. You deserve support right now: please contact your local emergency number or a crisis line, or reach out to someone you trust. I'm an AI companion and can't replace professional help, but I'm here to keep talking.",
		confidence: 0.95,
	},
	{
		keywords:   []string{"anxious", "anxiety", "panic", "nervous", "worried"},
		reply:      "It sounds like anxiety is weighing on you. Try a slow breath: in for four counts, hold for four, out for six. What do you notice in your body right now?",
		confidence: 0.8,
	},
	{
		keywords:   []string{"sad", "depressed", "down", "lonely", "empty"},
		reply:      "I'm sorry you're feeling low. Those feelings are valid. Would you like to tell me a bit more about what has been going on lately?",
		confidence: 0.8,
	},
	{
		keywords:   []string{"sleep", "insomnia", "tired", "exhausted"},
		reply:      "Rest problems can make everything feel harder. A steady wind-down routine and less screen time before bed can help. How have your evenings looked this week?",
		confidence: 0.75,
	},
	{
		keywords:   []string{"stress", "stressed", "overwhelmed", "pressure", "work"},
		reply:      "That sounds like a lot to carry. Sometimes it helps to pick just one small thing to handle next. What feels most urgent to you?",
		confidence: 0.75,
	},
	{
		keywords:   []string{"angry", "frustrated", "annoyed", "mad"},
		reply:      "Frustration often points to something that matters to you. What happened that brought this up?",
		confidence: 0.7,
	},
	{
		keywords:   []string{"therapist", "therapy", "book", "session", "appointment"},
		reply:      "Talking with a therapist can really help. You can browse therapists and book a session from the Therapists page whenever you're ready.",
		confidence: 0.85,
	},
	{
		keywords:   []string{"thank", "thanks", "better", "good", "great"},
		reply:      "I'm glad to hear that. What do you think helped the most?",
		confidence: 0.7,
	},
	{
		keywords:   []string{"hello", "hi", "hey"},
		reply:      "Hi, I'm your MindEase companion. How are you feeling today?",
		confidence: 0.9,
	},
}

const (
	fallbackReply      = "I hear you. Can you tell me a little more about how that makes you feel?"
	fallbackConfidence = 0.5
)

// RuleResponder answers by keyword matching. It never fails.
type RuleResponder struct{}

func NewRuleResponder() *RuleResponder {
	return &RuleResponder{}
}

func (r *RuleResponder) GenerateReply(_ context.Context, message string, _ []*model.CompanionMessage) (Reply, error) {
	words := tokenize(message)
	lower := strings.ToLower(message)
	for _, rl := range rules {
		for _, kw := range rl.keywords {
			if matches(kw, words, lower) {
				return Reply{Content: rl.reply, Confidence: rl.confidence}, nil
			}
		}
	}
	return Reply{Content: fallbackReply, Confidence: fallbackConfidence}, nil
}

// Multi-word keywords match as substrings, single words as whole words.
func matches(keyword string, words map[string]struct{}, lower string) bool {
	if strings.ContainsAny(keyword, " -") {
		return strings.Contains(lower, keyword)
	}
	_, ok := words[keyword]
	return ok
}

func tokenize(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r == '\'')
	}) {
		out[w] = struct{}{}
	}
	return out
}
