package telemetry

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct{ err error }

func (s stubGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "ok", nil
}

func TestInstrument_CountsOutcomes(t *testing.T) {
	rec := NewRecorder()
	ok := rec.Instrument(stubGenerator{}, "pod")
	bad := rec.Instrument(stubGenerator{err: errors.New("down")}, "pod")

	out, err := ok.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	_, _ = ok.Complete(context.Background(), "p")
	_, err = bad.Complete(context.Background(), "p")
	assert.Error(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.generations.WithLabelValues("pod", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.generations.WithLabelValues("pod", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(rec.duration))
}

func TestRecorder_Write(t *testing.T) {
	rec := NewRecorder()
	rec.ObserveEvidence("actions", 1500)
	rec.CountReport("actions")

	var buf bytes.Buffer
	require.NoError(t, rec.Write(&buf))
	out := buf.String()
	assert.Contains(t, out, `opslens_reports_total{tool="actions"} 1`)
	assert.Contains(t, out, `opslens_evidence_chars_count{tool="actions"} 1`)
}

func TestRecorder_WriteTextfile(t *testing.T) {
	rec := NewRecorder()
	rec.CountReport("cost")

	path := filepath.Join(t.TempDir(), "opslens.prom")
	require.NoError(t, rec.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# TYPE opslens_reports_total counter")
}
