package bpmn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanDiagramText(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain",
			raw:  "title: A\ncolourtheme: BLUEMOUNTAIN",
			want: "title: A\ncolourtheme: BLUEMOUNTAIN",
		},
		{
			name: "fenced with prose",
			raw:  "Вот диаграмма:\n```piperflow\ntitle: A\n[\"Шаг\"] as s\n```\nГотово!",
			want: "title: A\n[Шаг] as s",
		},
		{
			name: "prose before title",
			raw:  "Конечно! title: B\nfooter: f",
			want: "title: B\nfooter: f",
		},
		{
			name: "unclosed fence",
			raw:  "```\ntitle: C\n",
			want: "title: C",
		},
		{
			name: "only fences",
			raw:  "```\n```",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanDiagramText(tt.raw))
		})
	}
}
