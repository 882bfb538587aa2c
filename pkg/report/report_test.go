package report

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"gitlab.com/tozd/go/errors"
)

func newTestReporter() (*Reporter, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(&buf, zerolog.Nop()), &buf
}

func TestReporter_ActionLine(t *testing.T) {
	r, buf := newTestReporter()
	r.Action("copy", "a.js", "b.js")

	out := buf.String()
	assert.Contains(t, out, "copy")
	assert.Contains(t, out, "a.js")
	assert.Contains(t, out, "b.js")
}

func TestReporter_UnitLifecycle(t *testing.T) {
	r, buf := newTestReporter()
	r.StartUnit("owner/repo", "https://github.com/owner/repo")
	r.UnitSucceeded("owner/repo")

	out := buf.String()
	assert.Contains(t, out, "deploying owner/repo")
	assert.Contains(t, out, "deployed owner/repo")
}

func TestReporter_SummaryCountsFailures(t *testing.T) {
	r, buf := newTestReporter()
	r.StartUnit("a/one", "u1")
	r.UnitSucceeded("a/one")
	r.StartUnit("a/two", "u2")
	r.UnitFailed("a/two", errors.New("boom"))
	r.Summary()

	out := buf.String()
	assert.Contains(t, out, "a/two")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "1 of 2")
}

func TestReporter_SummaryAllClean(t *testing.T) {
	r, buf := newTestReporter()
	r.StartUnit("a/one", "u1")
	r.UnitSucceeded("a/one")
	r.Summary()

	assert.Contains(t, buf.String(), "1 unit(s) deployed")
}
