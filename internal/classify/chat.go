package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	json "github.com/goccy/go-json"
	"github.com/kaptinlin/jsonrepair"
)

// ErrMalformed means the model answered with something that is not a
// classification object.
var ErrMalformed = errors.New("malformed classification response")

// promptExcerptLimit caps how many characters of a text excerpt go into the
// prompt.
const promptExcerptLimit = 500

const systemPrompt = "You are an AI file analyzer that processes file metadata to categorize and tag files. " +
	"Based on the file name, type, and any available content, determine:\n" +
	"1. The most appropriate category from this list: Documents, Images, Videos, Audio, Archives, Presentations, Spreadsheets, Code, Books, Other\n" +
	"2. A list of relevant tags (5 maximum)\n" +
	"3. A short description of what the file likely contains\n" +
	`Respond with a JSON object only, with the keys "category", "tags" and "description".`

// ChatCapability classifies files by prompting a chat model.
type ChatCapability struct {
	chat model.BaseChatModel
}

// NewChatCapability wraps any eino chat model.
func NewChatCapability(chat model.BaseChatModel) *ChatCapability {
	return &ChatCapability{chat: chat}
}

// OpenAIConfig selects an OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewOpenAI builds a capability backed by an OpenAI-compatible chat API.
func NewOpenAI(ctx context.Context, cfg OpenAIConfig) (*ChatCapability, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("api key is required")
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = "gpt-4o"
	}
	temperature := float32(0)
	chat, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       modelName,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	return NewChatCapability(chat), nil
}

// Classify implements Capability.
func (c *ChatCapability) Classify(ctx context.Context, desc Descriptor, content *Content) (Result, error) {
	messages := []*schema.Message{
		{Role: schema.System, Content: systemPrompt},
		{Role: schema.User, Content: userPrompt(desc, content)},
	}
	resp, err := c.chat.Generate(ctx, messages)
	if err != nil {
		return Result{}, fmt.Errorf("generate: %w", err)
	}
	if resp == nil {
		return Result{}, ErrMalformed
	}
	return parseResult(resp.Content)
}

func userPrompt(desc Descriptor, content *Content) string {
	var b strings.Builder
	b.WriteString("Analyze this file:\n")
	fmt.Fprintf(&b, "Filename: %s\n", desc.Name)
	fmt.Fprintf(&b, "File type: %s\n", desc.Kind)
	fmt.Fprintf(&b, "File size: %d bytes\n", desc.Size)
	b.WriteString(contentDescription(content))
	return b.String()
}

func contentDescription(content *Content) string {
	switch {
	case content == nil || (content.Text == "" && !content.Binary):
		return "No file content available for analysis."
	case content.Text == "":
		return "Binary file content is available for analysis."
	case utf8.RuneCountInString(content.Text) > promptExcerptLimit:
		return "File content excerpt: " + truncateRunes(content.Text, promptExcerptLimit) + "..."
	default:
		return "File content: " + content.Text
	}
}

// truncateRunes keeps the first n runes of s.
func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// parseResult decodes a model answer, tolerating code fences and the usual
// near-JSON mistakes.
func parseResult(raw string) (Result, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if s == "" {
		return Result{}, ErrMalformed
	}
	var res Result
	if err := json.Unmarshal([]byte(s), &res); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(s)
		if rerr != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if err := json.Unmarshal([]byte(repaired), &res); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	return res, nil
}
