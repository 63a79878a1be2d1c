package models

import (
	"encoding/json"
	"sort"
	"strings"
)

// LegacySizeStock is one size level inside a legacy variant entry.
type LegacySizeStock struct {
	Size  string `json:"size"`
	Stock int    `json:"stock"`
}

// LegacyVariant is one color entry of the legacy variants blob, normalized
// from either stored shape.
type LegacyVariant struct {
	Color      string            `json:"color"`
	ColorHex   string            `json:"colorHex,omitempty"`
	Images     []string          `json:"images,omitempty"`
	SizeStocks []LegacySizeStock `json:"sizeStocks"`
}

// LegacyVariants is the normalized in-memory form of the legacy blob.
// Lookups are case-insensitive and trimmed on both color and size.
type LegacyVariants []LegacyVariant

// legacyListEntry tolerates the field aliases seen across schema revisions.
type legacyListEntry struct {
	Color       string            `json:"color"`
	ColorName   string            `json:"color_name"`
	ColorHex    string            `json:"colorHex"`
	Images      []string          `json:"images"`
	SizeStocks  []LegacySizeStock `json:"sizeStocks"`
	SizeStocks2 []LegacySizeStock `json:"size_stocks"`
}

// ParseLegacyVariants loads the legacy variants column. Two shapes occur in
// the wild: a dict {color: {size: stock}} and a list
// [{color, colorHex, sizeStocks: [{size, stock}]}]. Both normalize to the
// same form; anything else (including null/empty) yields an empty set.
func ParseLegacyVariants(raw json.RawMessage) (LegacyVariants, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var entries []legacyListEntry
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, err
		}
		out := make(LegacyVariants, 0, len(entries))
		for _, e := range entries {
			color := e.Color
			if color == "" {
				color = e.ColorName
			}
			sizes := e.SizeStocks
			if len(sizes) == 0 {
				sizes = e.SizeStocks2
			}
			out = append(out, LegacyVariant{
				Color:      color,
				ColorHex:   e.ColorHex,
				Images:     e.Images,
				SizeStocks: sizes,
			})
		}
		return out, nil
	}

	var dict map[string]map[string]int
	if err := json.Unmarshal(raw, &dict); err != nil {
		return nil, err
	}
	colors := make([]string, 0, len(dict))
	for color := range dict {
		colors = append(colors, color)
	}
	sort.Strings(colors)

	out := make(LegacyVariants, 0, len(colors))
	for _, color := range colors {
		sizes := dict[color]
		labels := make([]string, 0, len(sizes))
		for label := range sizes {
			labels = append(labels, label)
		}
		sort.Strings(labels)

		stocks := make([]LegacySizeStock, 0, len(labels))
		for _, label := range labels {
			stocks = append(stocks, LegacySizeStock{Size: label, Stock: sizes[label]})
		}
		out = append(out, LegacyVariant{Color: color, SizeStocks: stocks})
	}
	return out, nil
}

func foldKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// FindColor returns the variant entry matching color, case-insensitive.
func (lv LegacyVariants) FindColor(color string) (LegacyVariant, bool) {
	want := foldKey(color)
	for _, v := range lv {
		if foldKey(v.Color) == want {
			return v, true
		}
	}
	return LegacyVariant{}, false
}

// Stock returns available stock for (color, size), case-insensitive.
func (lv LegacyVariants) Stock(color, size string) (int, bool) {
	v, ok := lv.FindColor(color)
	if !ok {
		return 0, false
	}
	want := foldKey(size)
	for _, s := range v.SizeStocks {
		if foldKey(s.Size) == want {
			return s.Stock, true
		}
	}
	return 0, false
}

// Matrix projects the variants into {color: {size: stock}} for the
// stock_data API field.
func (lv LegacyVariants) Matrix() map[string]map[string]int {
	out := make(map[string]map[string]int, len(lv))
	for _, v := range lv {
		sizes := make(map[string]int, len(v.SizeStocks))
		for _, s := range v.SizeStocks {
			sizes[s.Size] = s.Stock
		}
		out[v.Color] = sizes
	}
	return out
}
