package gcp

import (
	"testing"

	"cloud.google.com/go/vertexai/genai"
	"github.com/stretchr/testify/assert"
)

func TestExtractMarkdown(t *testing.T) {
	resp := func(parts ...genai.Part) *genai.GenerateContentResponse {
		return &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: parts}}},
		}
	}

	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		want string
	}{
		{name: "nil", resp: nil, want: ""},
		{name: "no candidates", resp: &genai.GenerateContentResponse{}, want: ""},
		{name: "plain", resp: resp(genai.Text("# Title")), want: "# Title"},
		{name: "fenced", resp: resp(genai.Text("```markdown\n# Title\n```")), want: "# Title"},
		{name: "joined parts", resp: resp(genai.Text("a "), genai.Blob{MIMEType: "image/png"}, genai.Text("b")), want: "a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractMarkdown(tt.resp))
		})
	}
}
