package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClosest(t *testing.T) {
	kinds := []string{"controllers", "models", "middleware", "services", "providers", "views"}
	directives := []string{"else", "elseif", "endforeach", "endif", "foreach", "if"}

	tests := []struct {
		name       string
		input      string
		candidates []string
		want       string
	}{
		{"transposed letters", "modles", kinds, "models"},
		{"missing letter", "endforech", directives, "endforeach"},
		{"prefix of a much longer name", "con", kinds, ""},
		{"case is ignored", "VIEWS", kinds, "views"},
		{"nothing close", "section", directives, ""},
		{"no candidates", "models", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Closest(tt.input, tt.candidates))
		})
	}
}
