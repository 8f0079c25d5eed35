package backfill

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licita/internal/ledger/models"
	"licita/internal/ledger/service"
	"licita/internal/ledger/store/memory"
	"licita/pkg/requestcontext"
)

type call struct {
	kind    models.Kind
	actor   string
	payload string
	at      int64
}

type fakeRecorder struct {
	calls []call
	err   error
}

func (f *fakeRecorder) Record(ctx context.Context, kind models.Kind, actorID string, payload any) (string, error) {
	raw, _ := json.Marshal(payload)
	f.calls = append(f.calls, call{kind: kind, actor: actorID, payload: string(raw), at: requestcontext.Now(ctx).UnixMilli()})
	if f.err != nil {
		return "", f.err
	}
	return "hash-" + actorID, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func receipts(t *testing.T, out *bytes.Buffer) []Receipt {
	t.Helper()
	var got []Receipt
	sc := bufio.NewScanner(out)
	for sc.Scan() {
		var r Receipt
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		got = append(got, r)
	}
	return got
}

func TestRunRecordsLines(t *testing.T) {
	in := strings.NewReader(`{"tipo":"licitacao","ator_id":"gov-1","dados":{"licitacao_id":"lic-1"},"timestamp":1700000000000}

{"tipo":"proposta","ator_id":"emp-1","dados":{"licitacao_id":"lic-1","valor_proposta":10}}
`)
	rec := &fakeRecorder{}
	var out bytes.Buffer

	stats, err := Run(context.Background(), in, &out, rec, discard())
	require.NoError(t, err)
	assert.Equal(t, Stats{Recorded: 2}, stats)

	require.Len(t, rec.calls, 2)
	assert.Equal(t, models.KindLicitacao, rec.calls[0].kind)
	assert.Equal(t, int64(1700000000000), rec.calls[0].at)
	assert.JSONEq(t, `{"licitacao_id":"lic-1"}`, rec.calls[0].payload)
	assert.Greater(t, rec.calls[1].at, int64(1700000000000), "no timestamp means now")

	assert.Equal(t, []Receipt{{Linha: 1, Hash: "hash-gov-1"}, {Linha: 3, Hash: "hash-emp-1"}}, receipts(t, &out))
}

func TestRunSkipsBadLines(t *testing.T) {
	in := strings.NewReader("not json\n" +
		`{"tipo":"cadastro","ator_id":"u-1","timestamp":-5}` + "\n" +
		`{"tipo":"cadastro","ator_id":"u-2"}` + "\n")
	rec := &fakeRecorder{}
	var out bytes.Buffer

	stats, err := Run(context.Background(), in, &out, rec, discard())
	require.NoError(t, err)
	assert.Equal(t, Stats{Recorded: 1, Failed: 2}, stats)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, "null", rec.calls[0].payload)
}

func TestRunCountsRecorderFailures(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("store down")}
	var out bytes.Buffer

	stats, err := Run(context.Background(), strings.NewReader(`{"tipo":"cadastro","ator_id":"u-1"}`), &out, rec, discard())
	require.NoError(t, err)
	assert.Equal(t, Stats{Failed: 1}, stats)
	assert.Zero(t, out.Len())
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &fakeRecorder{}
	_, err := Run(ctx, strings.NewReader(`{"tipo":"cadastro","ator_id":"u-1"}`), io.Discard, rec, discard())
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.calls)
}

func TestRunAgainstLedger(t *testing.T) {
	ledger, err := service.New(memory.NewInMemoryStore())
	require.NoError(t, err)

	in := strings.NewReader(`{"tipo":"proposta","ator_id":"biz-7","dados":{"proposta_id":"p-1","valor_centavos":9007199254740991},"timestamp":1700000000000}
{"tipo":"proposta","ator_id":"biz-7","dados":{"proposta_id":"p-2","valor_centavos":9007199254740993}}
`)
	var out bytes.Buffer
	stats, err := Run(context.Background(), in, &out, ledger, discard())
	require.NoError(t, err)
	assert.Equal(t, Stats{Recorded: 1, Failed: 1}, stats, "a literal the ledger would round is rejected")

	got := receipts(t, &out)
	require.Len(t, got, 1)
	result, err := ledger.Verify(context.Background(), got[0].Hash)
	require.NoError(t, err)
	require.True(t, result.Found)
	assert.Equal(t, int64(1700000000000), result.Transaction.Timestamp)
	assert.Equal(t, map[string]any{"proposta_id": "p-1", "valor_centavos": float64(9007199254740991)}, result.Transaction.Payload)
}
