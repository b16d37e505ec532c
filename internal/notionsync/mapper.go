package notionsync

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/dvloznov/ledger/internal/ledger"
	"github.com/jomei/notionapi"
)

// Property names of the records database.
const (
	PropDescription = "Description"
	PropRecordID    = "Record ID"
	PropDate        = "Date"
	PropAmount      = "Amount"
	PropKind        = "Kind"
	PropTags        = "Tags"
	PropRecurring   = "Recurring"
	PropAutoLabeled = "Auto Labeled"
	PropChecksum    = "Checksum"
)

// RecordToNotionProperties converts a ledger record to page properties.
// The Checksum property lets a later sync skip pages that already match.
func RecordToNotionProperties(r ledger.Record) notionapi.Properties {
	amount, _ := r.Amount.Float64()
	date := notionapi.Date(r.Timestamp)

	tags := make([]notionapi.Option, 0, len(r.Tags))
	for _, t := range r.Tags {
		tags = append(tags, notionapi.Option{Name: t})
	}

	return notionapi.Properties{
		PropDescription: notionapi.TitleProperty{
			Title: []notionapi.RichText{richText(r.Description)},
		},
		PropRecordID: notionapi.RichTextProperty{
			RichText: []notionapi.RichText{richText(r.ID)},
		},
		PropDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &date},
		},
		PropAmount: notionapi.NumberProperty{
			Number: amount,
		},
		PropKind: notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(r.Kind)},
		},
		PropTags: notionapi.MultiSelectProperty{
			MultiSelect: tags,
		},
		PropRecurring: notionapi.CheckboxProperty{
			Checkbox: r.Recurring,
		},
		PropAutoLabeled: notionapi.CheckboxProperty{
			Checkbox: r.AutoLabeled,
		},
		PropChecksum: notionapi.RichTextProperty{
			RichText: []notionapi.RichText{richText(Checksum(r))},
		},
	}
}

// Checksum fingerprints the mirrored fields of r.
func Checksum(r ledger.Record) string {
	data, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

func richText(content string) notionapi.RichText {
	return notionapi.RichText{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: content},
	}
}

// extractText returns the plain text of a title or rich text property.
// Returns empty string if not found.
func extractText(page notionapi.Page, name string) string {
	var texts []notionapi.RichText
	switch p := page.Properties[name].(type) {
	case *notionapi.RichTextProperty:
		texts = p.RichText
	case notionapi.RichTextProperty:
		texts = p.RichText
	case *notionapi.TitleProperty:
		texts = p.Title
	case notionapi.TitleProperty:
		texts = p.Title
	}
	if len(texts) == 0 {
		return ""
	}
	if texts[0].PlainText != "" {
		return texts[0].PlainText
	}
	if texts[0].Text != nil {
		return texts[0].Text.Content
	}
	return ""
}

func extractRecordID(page notionapi.Page) string {
	return extractText(page, PropRecordID)
}

func extractChecksum(page notionapi.Page) string {
	return extractText(page, PropChecksum)
}
