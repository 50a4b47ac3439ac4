package agent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRanking(t *testing.T) {
	tests := []struct {
		name    string
		content string
		files   []string
		wantErr bool
	}{
		{name: "valid", content: personRanking, files: []string{"src/main/java/com/example/Person.java"}},
		{name: "fenced", content: "```json\n" + personRanking + "\n```", files: []string{"src/main/java/com/example/Person.java"}},
		{name: "empty list", content: `{"analysis_of_the_bug_report":"x","ranked_list":[]}`, files: []string{}},
		{name: "empty content", content: "  ", wantErr: true},
		{name: "not json", content: "Person.java is buggy", wantErr: true},
		{name: "missing analysis", content: `{"ranked_list":[]}`, wantErr: true},
		{name: "unknown field", content: `{"analysis_of_the_bug_report":"x","ranked_list":[],"confidence":1}`, wantErr: true},
		{name: "missing justification", content: `{"analysis_of_the_bug_report":"x","ranked_list":[{"file":"A.java"}]}`, wantErr: true},
		{name: "blank file", content: `{"analysis_of_the_bug_report":"x","ranked_list":[{"file":" ","justification":"y"}]}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRanking(tt.content)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedAnswer)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.files, got.Files())
		})
	}
}

func TestParseRankingKeepsOrderAndDuplicates(t *testing.T) {
	got, err := ParseRanking(`{"analysis_of_the_bug_report":"x","ranked_list":[
		{"file":"B.java","justification":"1"},
		{"file":"A.java","justification":"2"},
		{"file":"B.java","justification":"3"}]}`)
	require.NoError(t, err)
	require.Equal(t, []string{"B.java", "A.java", "B.java"}, got.Files())
}

func TestRankingResponseSchemaIsValidJSON(t *testing.T) {
	rs := RankingResponseSchema()
	require.Equal(t, "output_format", rs.Name)
	require.True(t, rs.Strict)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rs.Schema, &doc))
	require.Equal(t, []any{"analysis_of_the_bug_report", "ranked_list"}, doc["required"])
}

func TestRankingResultString(t *testing.T) {
	got, err := ParseRanking(personRanking)
	require.NoError(t, err)
	require.JSONEq(t, personRanking, got.String())
}
