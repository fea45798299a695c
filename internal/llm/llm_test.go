package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func filterAll(chunks ...string) (string, bool) {
	var f HandoffFilter
	var out strings.Builder
	for _, c := range chunks {
		out.WriteString(f.Write(c))
	}
	out.WriteString(f.Flush())
	return out.String(), f.Seen()
}

func TestHandoffFilter(t *testing.T) {
	cases := []struct {
		name   string
		chunks []string
		want   string
		seen   bool
	}{
		{"no marker", []string{"Hola, ", "te quedan ", "14 días."}, "Hola, te quedan 14 días.", false},
		{"whole marker", []string{"[[HANDOFF]] Un agente ", "te atenderá."}, "Un agente te atenderá.", true},
		{"split marker", []string{"[[HAN", "DOFF", "]]", " Un agente."}, "Un agente.", true},
		{"one byte chunks", strings.Split("[[HANDOFF]]ok", ""), "ok", true},
		{"bracket that is not a marker", []string{"see [[note", "]] here"}, "see [[note]] here", false},
		{"trailing partial flushed", []string{"ends with [[HAND"}, "ends with [[HAND", false},
		{"leading whitespace before marker", []string{"\n ", "[[HANDOFF]]", " Un agente."}, "Un agente.", true},
		{"marker mid reply", []string{"Te ayudo. [[HANDOFF]] sigue"}, "Te ayudo.  sigue", false},
		{"marker in a later chunk", []string{"Te ayudo.", " [[HAND", "OFF]]"}, "Te ayudo. ", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, seen := filterAll(tc.chunks...)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.seen, seen)
		})
	}
}

func TestToContentsMapsRoles(t *testing.T) {
	contents := toContents([]Message{
		{Role: RoleUser, Content: "¿Cuántos días me quedan?"},
		{Role: RoleAssistant, Content: "Te quedan 14 días."},
		{Role: RoleUser, Content: "Gracias"},
	})
	require.Len(t, contents, 3)

	var roles, texts []string
	for _, c := range contents {
		roles = append(roles, c.Role)
		require.Len(t, c.Parts, 1)
		texts = append(texts, c.Parts[0].Text)
	}
	assert.Equal(t, []string{genai.RoleUser, genai.RoleModel, genai.RoleUser}, roles)
	assert.Equal(t, "Te quedan 14 días.", texts[1])
	assert.Empty(t, toContents(nil))
}

func TestStaticClientStreamsWords(t *testing.T) {
	c := NewStaticClient("uno dos tres")
	var chunks []string
	full, err := c.Stream(context.Background(), Request{}, func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "uno dos tres", full)
	assert.Equal(t, []string{"uno ", "dos ", "tres"}, chunks)
}

func TestStaticClientStopsOnCallbackError(t *testing.T) {
	stop := errors.New("client gone")
	full, err := NewStaticClient("a b c").Stream(context.Background(), Request{}, func(string) error { return stop })
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, "a ", full)
}

func TestStaticClientDefaultReply(t *testing.T) {
	assert.Equal(t, DefaultStaticReply, NewStaticClient("").Reply)
}
