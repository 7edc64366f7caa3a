package scraper

import "testing"

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Primeiro artigo | Revista Liberta", "Primeiro artigo"},
		{"Revista Liberta - Ensaio", ""},
		{"Pós-modernidade e mercado - Liberta", "Pós-modernidade e mercado"},
		{"  A crise – Revista Liberta  ", "A crise"},
		{"Sem sufixo", "Sem sufixo"},
	}
	for _, tc := range tests {
		if got := cleanTitle(tc.raw, "Revista Liberta"); got != tc.want {
			t.Fatalf("cleanTitle(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestSlugFromHref(t *testing.T) {
	tests := []struct {
		href string
		want string
	}{
		{"/digital/edicao/edicao-18/", "edicao-18"},
		{"https://example.test/digital/edicao/edicao-7", "edicao-7"},
		{"edicao-3?ref=menu", "edicao-3"},
	}
	for _, tc := range tests {
		if got := slugFromHref(tc.href); got != tc.want {
			t.Fatalf("slugFromHref(%q) = %q, want %q", tc.href, got, tc.want)
		}
	}
}

func TestRenderChapterWithoutAuthor(t *testing.T) {
	got := renderChapter("Título", "", "", "Corpo")
	if got != "# Título\n\nCorpo\n" {
		t.Fatalf("unexpected chapter %q", got)
	}
}
