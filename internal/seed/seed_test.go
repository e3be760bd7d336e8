package seed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qms/dispatch-service/internal/ledger"
	"qms/dispatch-service/internal/store/memory"
)

const sample = `
offices:
  - name: Registrar
    details: Ground floor, window 1
  - name: Cashier
  - name: registrar
`

func TestParse(t *testing.T) {
	file, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, file.Offices, 3)
	assert.Equal(t, "Ground floor, window 1", file.Offices[0].Details)

	_, err = Parse(strings.NewReader("offices:\n  - details: nameless\n"))
	assert.Error(t, err)

	_, err = Parse(strings.NewReader("offices:\n  - name: A\n    floor: 2\n"))
	assert.Error(t, err)

	empty, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty.Offices)
}

func TestApplyIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offices.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	file, err := Load(path)
	require.NoError(t, err)

	ctx := context.Background()
	l := ledger.New(memory.NewStore(), nil)
	created, err := Apply(ctx, l, file, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	created, err = Apply(ctx, l, file, nil)
	require.NoError(t, err)
	assert.Zero(t, created)

	offices, err := l.ListOffices(ctx)
	require.NoError(t, err)
	require.Len(t, offices, 2)
	assert.Equal(t, "Registrar", offices[0].Name)
	assert.Equal(t, "Cashier", offices[1].Name)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
