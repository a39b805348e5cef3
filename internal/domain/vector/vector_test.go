package vector

import "testing"

func TestNewSpec(t *testing.T) {
	s, err := NewSpec("products", "text-embedding-3-small", 1536)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Name != "products-text-embedding-3-small-1536" {
		t.Errorf("Name = %q", s.Name)
	}
	if s.Dim != 1536 || s.Metric != MetricCosine {
		t.Errorf("spec = %+v", s)
	}
}

func TestNewSpec_Invalid(t *testing.T) {
	tests := []struct {
		name, prefix, model string
		dim                 int
	}{
		{"zero dim", "products", "m", 0},
		{"no prefix", "--", "m", 8},
		{"no model", "products", "", 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSpec(tt.prefix, tt.model, tt.dim); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"text-embedding-3-small":    "text-embedding-3-small",
		"Qwen/Qwen3-Embedding-8B":   "qwen-qwen3-embedding-8b",
		"  nomic embed  text v1.5 ": "nomic-embed-text-v1-5",
		"___":                       "",
	}
	for in, want := range tests {
		if got := Slug(in); got != want {
			t.Errorf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}
