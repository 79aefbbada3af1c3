// Package catalog defines the portal's searchable documents and the ways
// they are loaded, validated and persisted.
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is a single searchable article. Title is required; every other
// text field is empty when absent.
type Document struct {
	ID          int64  `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Content     string `json:"content,omitempty" yaml:"content"`
	Description string `json:"description,omitempty" yaml:"description"`
	Category    string `json:"category,omitempty" yaml:"category"`
	URL         string `json:"url,omitempty" yaml:"url"`
}

// SearchableText joins the indexed fields with single spaces, in the order
// title, content, description, category.
func (d Document) SearchableText() string {
	return d.Title + " " + d.Content + " " + d.Description + " " + d.Category
}

// Seed returns the built-in articles the portal ships with.
func Seed() []Document {
	return []Document{
		{
			ID:       1,
			Title:    "Perubahan Iklim: Kutub Utara Mencair",
			Content:  "Data satelit terbaru menunjukkan lapisan es Greenland kehilangan es per jam",
			Category: "Alam",
			URL:      "/pages/information.html",
		},
		{
			ID:       2,
			Title:    "AI Google Mampu Deteksi Kanker Payudara",
			Content:  "Sistem kecerdasan buatan memiliki akurasi tinggi dalam mendeteksi sel kanker",
			Category: "Medis",
			URL:      "/pages/information.html",
		},
		{
			ID:       3,
			Title:    "Teleskop James Webb Temukan Planet Layak Huni",
			Content:  "Ditemukan tanda-tanda molekul organik dalam atmosfer planet ekstrasolar",
			Category: "Astronomi",
			URL:      "/pages/information.html",
		},
	}
}

// LoadFile reads a YAML list of documents. JSON files parse as well since
// JSON is a subset of YAML.
func LoadFile(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file %s: %w", path, err)
	}
	var docs []Document
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parsing catalog file %s: %w", path, err)
	}
	return docs, nil
}
