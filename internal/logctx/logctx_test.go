package logctx

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/eunmann/lineup/pkg/logging"
	"github.com/rs/zerolog"
)

func TestFromContext_FallsBackToGlobal(t *testing.T) {
	var buf bytes.Buffer
	logging.SetLogger(zerolog.New(&buf).With().Str("global", "yes").Logger())
	defer logging.Init(false, false)

	//nolint:staticcheck // nil context is part of the contract
	l := FromContext(nil)
	l.Info().Msg("nil ctx")
	l = FromContext(context.Background())
	l.Info().Msg("bare ctx")

	if got := strings.Count(buf.String(), `"global":"yes"`); got != 2 {
		t.Errorf("expected both entries from the global logger, got %d: %s", got, buf.String())
	}
}

func TestWithStr_Accumulates(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), zerolog.New(&buf))
	ctx = WithStr(ctx, "load_id", "abc")
	ctx = WithInt(ctx, "rows", 3)

	l := FromContext(ctx)
	l.Info().Msg("test")

	out := buf.String()
	if !strings.Contains(out, `"load_id":"abc"`) || !strings.Contains(out, `"rows":3`) {
		t.Errorf("missing context fields: %s", out)
	}
}

func TestWithLogger_NilContext(t *testing.T) {
	var buf bytes.Buffer
	//nolint:staticcheck // nil context is part of the contract
	ctx := WithLogger(nil, zerolog.New(&buf))
	l := FromContext(ctx)
	l.Info().Msg("ok")
	if buf.Len() == 0 {
		t.Error("expected output from attached logger")
	}
}
