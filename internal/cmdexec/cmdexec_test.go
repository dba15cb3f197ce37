package cmdexec

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticRunner(t *testing.T) {
	boom := errors.New("boom")
	r := &StaticRunner{
		Outputs: map[string][]byte{"netstat -an": []byte("ok")},
		Errors:  map[string]error{"netstat -x": boom},
	}

	out, err := r.Output(context.Background(), "netstat", "-an")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(out))

	_, err = r.Output(context.Background(), "netstat", "-x")
	assert.ErrorIs(t, err, boom)

	_, err = r.Output(context.Background(), "ps")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, []string{"netstat -an", "netstat -x", "ps"}, r.Calls)
}

func TestExecRunnerMissingCommand(t *testing.T) {
	r := NewRunner()
	assert.False(t, r.Exists("definitely-not-a-real-binary-xyz"))

	_, err := r.Output(context.Background(), "definitely-not-a-real-binary-xyz")
	assert.ErrorIs(t, err, ErrNotFound)
}
