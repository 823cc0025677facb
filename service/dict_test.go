package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractMarkerJSON(t *testing.T) {
	testCases := []struct {
		description string
		text        string
		expect      map[string]interface{}
		expectError bool
	}{
		{
			description: "single marker line",
			text:        "Command: (princ)\n[MCP:JSON]{\"ok\":true,\"found\":false}\n",
			expect:      map[string]interface{}{"ok": true, "found": false},
		},
		{
			description: "last marker wins",
			text:        "[MCP:JSON]{\"ok\":false}\nnoise\n[MCP:JSON]{\"ok\":true,\"n\":2}\n",
			expect:      map[string]interface{}{"ok": true, "n": float64(2)},
		},
		{
			description: "marker embedded mid-line",
			text:        "prompt echo [MCP:JSON]{\"ok\":true}",
			expect:      map[string]interface{}{"ok": true},
		},
		{
			description: "no marker",
			text:        "Command: LINE\nSpecify first point:",
			expectError: true,
		},
		{
			description: "empty text",
			text:        "",
			expectError: true,
		},
		{
			description: "marker with invalid payload",
			text:        "[MCP:JSON]{not json}",
			expectError: true,
		},
	}

	for _, testCase := range testCases {
		actual, err := extractMarkerJSON(testCase.text)
		if testCase.expectError {
			assert.Error(t, err, testCase.description)
			continue
		}
		if !assert.Nil(t, err, testCase.description) {
			continue
		}
		assert.EqualValues(t, testCase.expect, actual, testCase.description)
	}
}

func TestLispTypedValues(t *testing.T) {
	testCases := []struct {
		description string
		values      []DictValue
		expect      string
		expectError bool
	}{
		{
			description: "empty list",
			expect:      "'()",
		},
		{
			description: "string and int",
			values:      []DictValue{{Code: 1, Value: "hello"}, {Code: 70, Value: 5}},
			expect:      `(list (cons 1 "hello") (cons 70 5))`,
		},
		{
			description: "float from json decoding",
			values:      []DictValue{{Code: 40, Value: float64(2.5)}},
			expect:      "(list (cons 40 2.5))",
		},
		{
			description: "point list",
			values:      []DictValue{{Code: 10, Value: []interface{}{float64(1), float64(2), float64(0)}}},
			expect:      "(list (cons 10 '(1 2 0)))",
		},
		{
			description: "string with quotes escaped",
			values:      []DictValue{{Code: 1, Value: `say "hi"`}},
			expect:      `(list (cons 1 "say \"hi\""))`,
		},
		{
			description: "unsupported value type",
			values:      []DictValue{{Code: 1, Value: map[string]interface{}{"x": 1}}},
			expectError: true,
		},
		{
			description: "non-numeric point element",
			values:      []DictValue{{Code: 10, Value: []interface{}{"x"}}},
			expectError: true,
		},
	}

	for _, testCase := range testCases {
		actual, err := lispTypedValues(testCase.values)
		if testCase.expectError {
			assert.Error(t, err, testCase.description)
			continue
		}
		if !assert.Nil(t, err, testCase.description) {
			continue
		}
		assert.EqualValues(t, testCase.expect, actual, testCase.description)
	}
}

func TestRemarshal(t *testing.T) {
	object := map[string]interface{}{
		"found":  true,
		"values": []interface{}{[]interface{}{float64(1), "text"}},
	}
	result := &XrecordGetResult{}
	err := remarshal(object, result)
	assert.Nil(t, err)
	assert.True(t, result.Found)
	if assert.Equal(t, 1, len(result.Values)) {
		assert.EqualValues(t, []interface{}{float64(1), "text"}, result.Values[0])
	}
}
