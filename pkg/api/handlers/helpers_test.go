package handlers

import (
	"reflect"
	"testing"
)

func TestNormalizeProperties(t *testing.T) {
	tests := []struct {
		name  string
		props map[string]any
		want  map[string]any
	}{
		{
			name:  "nil map",
			props: nil,
			want:  nil,
		},
		{
			name:  "empty map",
			props: map[string]any{},
			want:  nil,
		},
		{
			name:  "integral number becomes unsigned",
			props: map[string]any{"volsize": float64(1 << 30)},
			want:  map[string]any{"volsize": uint64(1 << 30)},
		},
		{
			name:  "zero is integral",
			props: map[string]any{"quota": float64(0)},
			want:  map[string]any{"quota": uint64(0)},
		},
		{
			name:  "fractional number passes through",
			props: map[string]any{"ratio": 1.5},
			want:  map[string]any{"ratio": 1.5},
		},
		{
			name:  "negative number passes through",
			props: map[string]any{"offset": float64(-1)},
			want:  map[string]any{"offset": float64(-1)},
		},
		{
			name:  "strings and booleans pass through",
			props: map[string]any{"com.example:note": "hi", "readonly": true},
			want:  map[string]any{"com.example:note": "hi", "readonly": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeProperties(tt.props)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("normalizeProperties(%v) = %#v, want %#v", tt.props, got, tt.want)
			}
		})
	}
}
