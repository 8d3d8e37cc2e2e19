package gcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/Lllllllleong/documentpreview/internal/models"
)

// --- Converter Model Prompts ---
const ConverterSystemPrompt = "You are a document conversion tool. Your task is to read a legacy Microsoft Office file and reproduce its content as markdown for a read-only preview. Accuracy and information preservation are of utmost importance."
const ConverterUserPrompt = `You will be provided with a legacy Microsoft Office file (Word, Excel or PowerPoint).

Follow these instructions to convert it to markdown:

Text: Reproduce all body text as markdown paragraphs, keeping headings as markdown headings.
Tables and sheets: Reproduce the first worksheet or each table as a markdown table.
Slides: Start every slide with a "## Slide N" heading followed by its text.
Images: Replace each image with a short description in italics.

Return ONLY the markdown content. Do not include any preambles or surround the output with backtick fences.`

// legacyMIMETypes maps office kinds to the MIME type of their legacy binary format.
var legacyMIMETypes = map[models.Kind]string{
	models.KindWord:         "application/msword",
	models.KindSpreadsheet:  "application/vnd.ms-excel",
	models.KindPresentation: "application/vnd.ms-powerpoint",
}

// ConverterModel converts legacy office files to markdown with Gemini.
type ConverterModel struct {
	model      *genai.GenerativeModel
	baseClient *genai.Client
	logger     *slog.Logger
}

// NewConverterModel creates a converter backed by modelName in the given region.
func NewConverterModel(ctx context.Context, projectID, region, modelName string, logger *slog.Logger) (*ConverterModel, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewConverterModel: projectID and region cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	model := baseClient.GenerativeModel(modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(ConverterSystemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.0),
	}

	return &ConverterModel{model: model, baseClient: baseClient, logger: logger}, nil
}

// ConvertToMarkdown sends data inline to the model and returns the markdown it produced.
func (c *ConverterModel) ConvertToMarkdown(ctx context.Context, kind models.Kind, data []byte) (string, error) {
	mimeType, ok := legacyMIMETypes[kind]
	if !ok {
		return "", fmt.Errorf("no legacy format for kind %s", kind)
	}
	logCtx := c.logger.With("kind", kind, "bytes", len(data))
	logCtx.Info("Converting legacy office file.")

	resp, err := c.model.GenerateContent(ctx, genai.Blob{MIMEType: mimeType, Data: data}, genai.Text(ConverterUserPrompt))
	if err != nil {
		logCtx.Error("Failed to call Vertex AI.", "error", err)
		return "", fmt.Errorf("failed to generate content from gemini: %w", err)
	}

	md := extractMarkdown(resp)
	if md == "" {
		return "", fmt.Errorf("gemini returned no content")
	}
	return md, nil
}

func (c *ConverterModel) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}

// extractMarkdown concatenates the text parts of the first candidate and
// strips a surrounding code fence.
func extractMarkdown(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}

	out := strings.TrimSpace(sb.String())
	out = strings.TrimPrefix(out, "```markdown")
	out = strings.TrimPrefix(out, "```")
	out = strings.TrimSuffix(out, "```")
	return strings.TrimSpace(out)
}
