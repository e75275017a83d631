package markup

import (
	"context"
	"strings"
	"testing"
)

func TestExtractRendersVisibleText(t *testing.T) {
	page := `<!doctype html><html><head><title>Court Opinion</title>
<meta name="author" content="Clerk of Court"><style>p{color:red}</style>
<script>var secret = "do not index";</script></head>
<body><h1>Opinion</h1><p>The judgment of the district court is <b>affirmed</b>.</p>
<table><tr><td>Filed</td><td>2024-05-01</td></tr></table></body></html>`

	out, err := NewExtractor().Extract(context.Background(), []byte(page))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if strings.Contains(out.Text, "secret") || strings.Contains(out.Text, "color:red") {
		t.Fatalf("non-visible content leaked: %q", out.Text)
	}
	want := "Opinion\nThe judgment of the district court is affirmed.\nFiled 2024-05-01"
	if out.Text != want {
		t.Fatalf("got %q, want %q", out.Text, want)
	}
	if out.Metadata.Title != "Court Opinion" || out.Metadata.Author != "Clerk of Court" {
		t.Fatalf("unexpected metadata %+v", out.Metadata)
	}
}

func TestExtractFailsWithoutVisibleText(t *testing.T) {
	if _, err := NewExtractor().Extract(context.Background(), []byte("<html><script>x()</script></html>")); err == nil {
		t.Fatalf("expected error")
	}
}
