package extractor

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog/log"

	"github.com/kasku/chat-gateway/internal/model"
)

const systemPrompt = `You extract personal finance transactions from chat messages, voice transcripts and receipt photos.
Reply with JSON only: {"transactions":[{"amount":number,"type":"income"|"expense","category":string,"description":string}]}.
Amounts are plain numbers without currency symbols or separators. Use one entry per line item on receipts.
Use categories such as "Food & Dining", "Transportation", "Shopping", "Bills & Utilities", "Entertainment", "Health", "Salary", "Other".
If the input does not describe a transaction reply {"transactions":[]}.`

// OpenAI implements Delegate with chat completions and audio transcription.
type OpenAI struct {
	client          openai.Client
	model           string
	transcribeModel string
}

var _ Delegate = (*OpenAI)(nil)

func NewOpenAI(apiKey, chatModel, transcribeModel string, opts ...option.RequestOption) *OpenAI {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAI{
		client:          openai.NewClient(opts...),
		model:           chatModel,
		transcribeModel: transcribeModel,
	}
}

func (o *OpenAI) ExtractTransactions(ctx context.Context, p Payload) ([]Candidate, error) {
	var user openai.ChatCompletionMessageParamUnion

	switch p.Kind {
	case PayloadVoice:
		text, err := o.transcribe(ctx, p)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}
		user = openai.UserMessage(text)

	case PayloadImage:
		uri := "data:" + p.MimeType + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
		parts := []openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart("Receipt or screenshot. Caption: " + p.Text),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: uri}),
		}
		user = openai.UserMessage(parts)

	default:
		user = openai.UserMessage(p.Text)
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt + "\n" + localeHint(p.Locale) + " Today is " + p.Now.Format("2006-01-02") + "."),
			user,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, nil
	}

	candidates, err := ParseCandidates(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("kind", string(p.Kind)).
		Int("candidates", len(candidates)).
		Msg("transactions extracted")

	return candidates, nil
}

func (o *OpenAI) transcribe(ctx context.Context, p Payload) (string, error) {
	resp, err := o.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(o.transcribeModel),
		File:  openai.File(bytes.NewReader(p.Data), "voice.ogg", p.MimeType),
	})
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return resp.Text, nil
}

func localeHint(l model.Locale) string {
	if l == model.LocaleEN {
		return "Descriptions in English."
	}
	return "Descriptions in Indonesian. Amounts are in Rupiah; \"rb\" or \"k\" means thousand and \"jt\" means million."
}
