package markdown

import (
	"strings"
	"testing"
)

func TestHTML(t *testing.T) {
	p := NewParser()

	out, err := p.HTML("**Strong** jawline\n\n- item")
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	if !strings.Contains(out, "<strong>Strong</strong>") || !strings.Contains(out, "<li>item</li>") {
		t.Fatalf("unexpected html: %s", out)
	}

	out, err = p.HTML(`<script>alert(1)</script>`)
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	if strings.Contains(out, "<script>") {
		t.Fatalf("raw html rendered: %s", out)
	}

	if out, _ := p.HTML(""); out != "" {
		t.Fatalf("empty input rendered %q", out)
	}
}
