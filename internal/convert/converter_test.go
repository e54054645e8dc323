package convert

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mkessel/trident/internal/models"
)

func TestPlainText_StripsMarkup(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		contains string
		excludes string
	}{
		{
			"markdown heading",
			"## Architecture\nThe service has three layers.",
			"Architecture",
			"##",
		},
		{
			"markdown link keeps label",
			"See the [design doc](https://example.com/doc) for details.",
			"design doc",
			"https://example.com/doc",
		},
		{
			"html tags removed",
			"<p>Hello <b>world</b></p>",
			"Hello",
			"<p>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := PlainText{}.Convert(context.Background(),
				models.Document{Name: "t.md", Text: tt.text}, nil)
			if err != nil {
				t.Fatalf("Convert: %v", err)
			}
			if !strings.Contains(out.Text, tt.contains) {
				t.Errorf("output missing %q: %q", tt.contains, out.Text)
			}
			if strings.Contains(out.Text, tt.excludes) {
				t.Errorf("output still contains %q: %q", tt.excludes, out.Text)
			}
		})
	}
}

func TestPlainText_EmptyContent(t *testing.T) {
	_, err := PlainText{}.Convert(context.Background(),
		models.Document{Name: "empty.md", Text: "<div></div>"}, nil)
	if err == nil {
		t.Fatal("expected error for document with no textual content")
	}
}

func TestPlainText_CancelledPredicate(t *testing.T) {
	_, err := PlainText{}.Convert(context.Background(),
		models.Document{Name: "t.md", Text: "content"},
		func() bool { return true })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// slowConverter blocks until its context expires.
type slowConverter struct{}

func (slowConverter) Convert(ctx context.Context, doc models.Document, cancelled func() bool) (models.Document, error) {
	<-ctx.Done()
	return models.Document{}, ctx.Err()
}

func TestWithTimeout_ReportsConvertTimeout(t *testing.T) {
	c := WithTimeout(slowConverter{}, 10*time.Millisecond)
	_, err := c.Convert(context.Background(), models.Document{Name: "big.pdf"}, nil)
	if !errors.Is(err, ErrConvertTimeout) {
		t.Errorf("expected ErrConvertTimeout, got %v", err)
	}
}

func TestWithTimeout_OuterCancellationNotMistakenForTimeout(t *testing.T) {
	c := WithTimeout(slowConverter{}, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := c.Convert(ctx, models.Document{Name: "t.md"}, nil)
	if errors.Is(err, ErrConvertTimeout) {
		t.Error("outer cancellation misreported as conversion timeout")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestWithTimeout_ZeroDisablesWrapper(t *testing.T) {
	inner := PlainText{}
	if got := WithTimeout(inner, 0); got != Converter(inner) {
		t.Error("zero timeout should return the converter unchanged")
	}
}
