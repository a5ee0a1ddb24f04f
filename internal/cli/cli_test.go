package cli

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrapStateAdminCmd_RequiresFlags(t *testing.T) {
	cmd := BootstrapStateAdminCmd()
	cmd.SetArgs([]string{"--name", "Asha Verma"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "email")
	assert.Contains(t, err.Error(), "state")
}

func TestEscalateCmd_LeaseFlag(t *testing.T) {
	cmd := EscalateCmd()

	lease, err := cmd.Flags().GetDuration("lease")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, lease)

	require.NoError(t, cmd.Flags().Parse([]string{"--lease", "90s"}))
	lease, err = cmd.Flags().GetDuration("lease")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, lease)
}

func TestIntegrityCmd_VerifyDefaultsOff(t *testing.T) {
	index, err := IntegrityCmd().Flags().GetInt("verify")
	require.NoError(t, err)
	assert.Equal(t, -1, index)
}

func TestOrNone(t *testing.T) {
	assert.Equal(t, "(empty log)", orNone(""))
	assert.Equal(t, "abc", orNone("abc"))
}
