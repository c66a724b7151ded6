package testutils

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingT struct {
	failures []string
}

func (r *recordingT) Helper() {}
func (r *recordingT) Errorf(format string, args ...interface{}) {
	r.failures = append(r.failures, fmt.Sprintf(format, args...))
}

func TestTextAsserter(t *testing.T) {
	rt := &recordingT{}
	ta := NewTextAsserter(rt)

	assert.True(t, ta.Assert("\n  ID  NAME   \n  1   left\n", "ID  NAME\n  1   left"), "surrounding and trailing whitespace MUST be ignored by default")
	assert.Empty(t, rt.failures)

	assert.False(t, ta.Assert("battery 40%", "battery 41%"))
	if assert.Len(t, rt.failures, 1) {
		assert.Contains(t, rt.failures[0], "-battery 41%")
		assert.Contains(t, rt.failures[0], "+battery 40%")
	}

	strict := NewTextAsserter(rt).WithOptions(TextAssertOptions{})
	assert.NotEmpty(t, strict.Diff("a \n", "a"), "strict options MUST keep whitespace")

	lenient := NewTextAsserter(rt).WithOptions(TextAssertOptions{IgnoreEmptyLines: true})
	assert.Empty(t, lenient.Diff("a\n\nb", "a\nb"))

	colored := NewTextAsserter(rt).WithOptions(TextAssertOptions{EnableColors: true})
	d := colored.Diff("a b", "a c")
	assert.True(t, strings.Contains(d, "\x1b["), "colored diff MUST carry ANSI escapes")
	assert.Contains(t, d, "·")
}

func TestJSONAsserter(t *testing.T) {
	rt := &recordingT{}
	ja := NewJSONAsserter(rt)

	actual := `{"id":1,"nickname":"left","mac":"AA:BB","date_added":"2024-05-04T10:00:00Z","settings":{"goal":8000,"lock":false}}`

	assert.True(t, ja.Assert(actual, `{"id":1,"nickname":"left","date_added":"<<PRESENCE>>","settings":{"goal":8000}}`))
	assert.Empty(t, rt.failures)

	assert.False(t, ja.Assert(actual, `{"id":2}`))
	assert.Len(t, rt.failures, 1)

	assert.NotEmpty(t, NewJSONAsserter(rt).Strict().Diff(actual, `{"id":1}`), "strict mode MUST report extra keys")
	assert.Empty(t, NewJSONAsserter(rt).Strict().WithIgnoredFields("nickname", "mac", "date_added", "settings").Diff(actual, `{"id":1}`))

	assert.Empty(t, ja.Diff(`[{"id":1,"x":true},{"id":2}]`, `[{"id":1},{"id":2}]`), "root arrays MUST compare element-wise")
	assert.NotEmpty(t, ja.Diff(`[{"id":1}]`, `[{"id":1},{"id":2}]`))
	assert.Contains(t, ja.Diff(`{`, `{}`), "invalid actual JSON")
	assert.Contains(t, ja.Diff(`{}`, `nope`), "invalid expected JSON")

	assert.NotEmpty(t, ja.Diff(`{"id":1}`, `{"date_added":"<<PRESENCE>>"}`), "placeholder MUST still require the key")
}
