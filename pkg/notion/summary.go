package notion

import (
	"context"
	"fmt"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// RunSummary carries the fields written to the tracker database for one
// forecast run.
type RunSummary struct {
	RunID            string
	Status           string
	BaseYear         int
	HorizonYear      int
	Methodologies    int
	Segments         int
	Occupations      int
	ForecastRows     int
	MaxDivergencePct float64
	Warnings         []string
	OutputDir        string
	Error            string
}

// PublishRunSummary creates one tracker page describing a forecast run:
// status, year range, branch count, max validation divergence, and any
// warnings.
func PublishRunSummary(ctx context.Context, c Client, dbID string, s RunSummary) (*notionapi.Page, error) {
	if dbID == "" {
		return nil, eris.New("notion: runs database id not configured")
	}

	props := notionapi.Properties{
		"Name": notionapi.TitleProperty{
			Type:  notionapi.PropertyTypeTitle,
			Title: richText(fmt.Sprintf("Forecast run %s", shortID(s.RunID))),
		},
		"Status": notionapi.StatusProperty{
			Status: notionapi.Status{Name: s.Status},
		},
		"Years": notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: richText(fmt.Sprintf("%d-%d", s.BaseYear, s.HorizonYear)),
		},
		"Methodologies":    numberProp(float64(s.Methodologies)),
		"Segments":         numberProp(float64(s.Segments)),
		"Occupations":      numberProp(float64(s.Occupations)),
		"Forecast Rows":    numberProp(float64(s.ForecastRows)),
		"Max Divergence %": numberProp(s.MaxDivergencePct),
	}
	if len(s.Warnings) > 0 {
		props["Warnings"] = richTextProp(strings.Join(s.Warnings, "; "))
	}
	if s.OutputDir != "" {
		props["Output"] = richTextProp(s.OutputDir)
	}
	if s.Error != "" {
		props["Error"] = richTextProp(s.Error)
	}

	page, err := c.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(dbID),
		},
		Properties: props,
	})
	if err != nil {
		return nil, eris.Wrap(err, "notion: publish run summary")
	}
	return page, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: content}},
	}
}

func richTextProp(content string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		Type:     notionapi.PropertyTypeRichText,
		RichText: richText(content),
	}
}

func numberProp(v float64) notionapi.NumberProperty {
	return notionapi.NumberProperty{
		Type:   notionapi.PropertyTypeNumber,
		Number: v,
	}
}
