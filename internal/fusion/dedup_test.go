package fusion

import (
	"testing"

	"github.com/mkessel/trident/internal/models"
)

func TestTextOverlap_Same(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{
			"identical text",
			"the ingestion pipeline retries failed batches",
			"the ingestion pipeline retries failed batches",
			true,
		},
		{
			"smaller contained in larger",
			"pipeline retries failed batches",
			"the ingestion pipeline always retries failed batches after errors",
			true,
		},
		{
			"unrelated text",
			"graph extraction runs per chunk",
			"vector search uses cosine distance",
			false,
		},
		{
			"boilerplate prefix stripped",
			"Source: the billing service depends on postgres",
			"the billing service depends on postgres",
			true,
		},
		{
			"case and punctuation ignored",
			"Billing Service depends on Postgres.",
			"billing service depends on postgres",
			true,
		},
		{
			"empty text never matches",
			"",
			"anything at all here",
			false,
		},
	}

	d := TextOverlap{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Same(models.Hit{Text: tt.a}, models.Hit{Text: tt.b})
			if got != tt.want {
				t.Errorf("Same(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestTextOverlap_ThresholdTunable(t *testing.T) {
	a := models.Hit{Text: "alpha beta gamma delta"}
	b := models.Hit{Text: "alpha beta gamma epsilon zeta eta theta"}

	// 3 of 4 smaller-set words shared: 0.75.
	if (TextOverlap{}).Same(a, b) {
		t.Error("0.75 containment should not match the default threshold")
	}
	if !(TextOverlap{Threshold: 0.7}).Same(a, b) {
		t.Error("0.75 containment should match a 0.7 threshold")
	}
}
