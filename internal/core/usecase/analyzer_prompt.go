package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/document-enrichment/internal/core/domain"
)

var knownCategories = []string{
	"Invoice", "Receipt", "Bank Statement", "Financial Report", "Tax Form",
	"Contract", "Agreement", "Legal Notice", "Policy",
	"Letter", "Email", "Memo",
	"Report", "Specification", "Manual", "Log", "Dataset",
	"Resume", "Identity Document", "Medical Record",
	"Other",
}

func documentHeader(doc *domain.Document, content domain.ExtractedContent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Document name: %s\n", doc.DisplayName())
	fmt.Fprintf(&b, "Document id: %s\n", doc.ID)
	fmt.Fprintf(&b, "Content type: %s\n", content.ContentType)
	if content.IsTruncated {
		b.WriteString("Note: the content below was truncated.\n")
	}
	return b.String()
}

func buildClassificationPrompt(doc *domain.Document, content domain.ExtractedContent) string {
	return `You are a document classifier.
Return a strict JSON object with keys:
category (string, one of: ` + strings.Join(knownCategories, ", ") + `),
confidence (number from 0 to 1), tags (array of short strings).
No markdown, no extra keys.

` + documentHeader(doc, content) + `
Content:
` + content.Text
}

func buildSummaryPrompt(doc *domain.Document, content domain.ExtractedContent) string {
	return `Summarize the following document in English in 3 to 5 sentences.
Focus on its purpose, the parties or systems involved, and key figures or dates.
Reply with the summary text only.

` + documentHeader(doc, content) + `
Content:
` + content.Text
}
