package printer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
)

func TestPrinter_PlainOutput(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)

	p.Section("Server")
	p.CheckItem("listen", "127.0.0.1:3000")
	p.WarnItem("origins", "")
	p.FailItem("data dir", "permission denied")
	p.Successf("joined %s", "studio")
	p.Infof("%d rooms", 2)
	p.Warnf("slow")
	p.Printf("plain")

	want := "Server\n" +
		"  ✔ listen: 127.0.0.1:3000\n" +
		"  • origins\n" +
		"  ✘ data dir: permission denied\n" +
		"✔ joined studio\n" +
		"• 2 rooms\n" +
		"• slow\n" +
		"plain\n"
	assert.Equal(t, want, buf.String())
}

func TestPrinter_FatalError(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).FatalError(errors.New("dial: connection refused"))

	assert.Equal(t, "╭ Error\n│ dial: connection refused\n╵\n", buf.String())
}

func TestPrinter_FatalErrorNil(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).FatalError(nil)
	assert.Empty(t, buf.String())
}

func TestPrinter_FatalErrorFieldErrors(t *testing.T) {
	var errs criterio.FieldErrorsBuilder
	errs = errs.Append("history.capacity", errors.New("must be at least 1"))
	errs = errs.Append("server.addr", errors.New("missing port"))

	var buf bytes.Buffer
	New(&buf).FatalError(fmt.Errorf("load config: %w", errs.ToError()))

	out := buf.String()
	assert.Contains(t, out, "╭ Validation Error\n│ load config\n│\n")
	assert.Contains(t, out, "│ ✘ history.capacity: must be at least 1\n")
	assert.Contains(t, out, "│ ✘ server.addr: missing port\n")
}

func TestCtx(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)

	assert.Same(t, p, Ctx(NewContext(context.Background(), p)))
	assert.NotNil(t, Ctx(context.Background()))
}
