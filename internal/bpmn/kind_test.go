package bpmn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		raw  string
		want RequestKind
		ok   bool
	}{
		{"TYPE_1", KindCreateNew, true},
		{"  type_2\n", KindAddElement, true},
		{"TYPE_3.", KindEditExisting, true},
		{"`TYPE_1`", KindCreateNew, true},
		{"TYPE_4", "", false},
		{"Ответ: TYPE_2", "", false},
		{"", "", false},
		{"UNRELATED", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseKind(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequestKind_NeedsDiagram(t *testing.T) {
	assert.False(t, KindCreateNew.NeedsDiagram())
	assert.True(t, KindAddElement.NeedsDiagram())
	assert.True(t, KindEditExisting.NeedsDiagram())
	assert.False(t, KindUnrelated.NeedsDiagram())
}
