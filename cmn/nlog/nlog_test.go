package nlog_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nginfra/movici-simulation-core-sub002/cmn/nlog"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	nlog.SetOutput(&buf)
	nlog.SetFormat("plain")
	nlog.SetLevel("warning")

	nlog.Infoln("should be filtered")
	assert.Empty(t, buf.String())

	nlog.Warningln("should appear")
	assert.Contains(t, buf.String(), "should appear")

	nlog.SetLevel("info")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	nlog.SetOutput(&buf)
	nlog.SetFormat("json")
	nlog.SetLevel("info")

	nlog.Errorf("model %s failed", "traffic")
	line := strings.TrimSpace(buf.String())
	assert.Contains(t, line, `"level":"error"`)
	assert.Contains(t, line, `model traffic failed`)

	nlog.SetFormat("plain")
}
