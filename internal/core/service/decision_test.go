package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllInStock(t *testing.T) {
	tests := []struct {
		name         string
		skus         []string
		availability map[string]bool
		want         bool
	}{
		{name: "all available", skus: []string{"A", "B"}, availability: map[string]bool{"A": true, "B": true}, want: true},
		{name: "one unavailable", skus: []string{"A", "B"}, availability: map[string]bool{"A": true, "B": false}, want: false},
		{name: "missing sku", skus: []string{"A", "B"}, availability: map[string]bool{"A": true}, want: false},
		{name: "nil availability", skus: []string{"A"}, availability: nil, want: false},
		{name: "extra skus ignored", skus: []string{"A"}, availability: map[string]bool{"A": true, "Z": false}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AllInStock(tt.skus, tt.availability))
		})
	}
}
