package vault_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/diskcli/keystore"
	"github.com/sagarc03/diskcli/vault"
)

func newTestVault(t *testing.T) (*vault.Vault, string) {
	t.Helper()

	baseDir := t.TempDir()
	root, err := os.OpenRoot(baseDir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = root.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return vault.New(root, keystore.New(baseDir), logger), baseDir
}

func TestVault_EnsureUser(t *testing.T) {
	t.Parallel()

	v, baseDir := newTestVault(t)

	require.NoError(t, v.EnsureUser("alice"))
	require.NoError(t, v.EnsureUser("alice"))

	info, err := os.Stat(filepath.Join(baseDir, "alice"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestVault_InvalidUserNames(t *testing.T) {
	t.Parallel()

	v, baseDir := newTestVault(t)

	for _, name := range []string{"", ".", "..", "../escape", "a/b", `a\b`, ".hidden", "tab\tname"} {
		t.Run(name, func(t *testing.T) {
			err := v.EnsureUser(name)
			require.ErrorIs(t, err, vault.ErrInvalidUser)

			err = v.WriteToken(name, vault.NewToken(name, time.Now()))
			require.ErrorIs(t, err, vault.ErrInvalidUser)
		})
	}

	_, err := os.Stat(filepath.Join(filepath.Dir(baseDir), "escape"))
	assert.True(t, os.IsNotExist(err))
}

func TestVault_WideCharacterUserName(t *testing.T) {
	t.Parallel()

	v, _ := newTestVault(t)

	tok := vault.NewToken("张三", time.Now())
	require.NoError(t, v.WriteToken("张三", tok))

	got, err := v.ReadToken("张三")
	require.NoError(t, err)
	assert.Equal(t, tok, got)
}

func TestVault_TokenRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tok  vault.Token
	}{
		{
			name: "authenticated",
			tok:  vault.Token{User: "alice", Authenticated: true, Timestamp: "2024-01-02T03:04:05Z"},
		},
		{
			name: "not authenticated",
			tok:  vault.Token{User: "bob", Authenticated: false, Timestamp: "2024-06-30T23:59:59+08:00"},
		},
		{
			name: "empty timestamp",
			tok:  vault.Token{User: "carol", Authenticated: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v, baseDir := newTestVault(t)

			require.NoError(t, v.WriteToken(tt.tok.User, tt.tok))

			got, err := v.ReadToken(tt.tok.User)
			require.NoError(t, err)
			assert.Equal(t, tt.tok, got)

			info, err := os.Stat(filepath.Join(baseDir, tt.tok.User, vault.TokenFileName))
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
		})
	}
}

func TestVault_WriteToken_Overwrites(t *testing.T) {
	t.Parallel()

	v, baseDir := newTestVault(t)

	first := vault.Token{User: "alice", Authenticated: false, Timestamp: "2024-01-01T00:00:00Z"}
	second := vault.Token{User: "alice", Authenticated: true, Timestamp: "2024-02-01T00:00:00Z"}

	require.NoError(t, v.WriteToken("alice", first))
	require.NoError(t, v.WriteToken("alice", second))

	got, err := v.ReadToken("alice")
	require.NoError(t, err)
	assert.Equal(t, second, got)

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Join(baseDir, "alice"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, vault.TokenFileName, entries[0].Name())
}

func TestVault_TokenIsEncrypted(t *testing.T) {
	t.Parallel()

	v, baseDir := newTestVault(t)
	require.NoError(t, v.WriteToken("alice", vault.NewToken("alice", time.Now())))

	data, err := os.ReadFile(filepath.Join(baseDir, "alice", vault.TokenFileName))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "alice")
	assert.NotContains(t, string(data), "authenticated")
}

func TestVault_ReadToken_Tampered(t *testing.T) {
	t.Parallel()

	v, baseDir := newTestVault(t)
	require.NoError(t, v.WriteToken("alice", vault.NewToken("alice", time.Now())))

	tokenFile := filepath.Join(baseDir, "alice", vault.TokenFileName)
	data, err := os.ReadFile(tokenFile)
	require.NoError(t, err)

	for _, idx := range []int{0, len(data) / 2, len(data) - 1} {
		tampered := append([]byte(nil), data...)
		tampered[idx] ^= 0x01
		require.NoError(t, os.WriteFile(tokenFile, tampered, 0o600))

		_, err := v.ReadToken("alice")
		require.ErrorIs(t, err, vault.ErrCorruptToken, "flipped byte %d", idx)
	}
}

func TestVault_ReadToken_Truncated(t *testing.T) {
	t.Parallel()

	v, baseDir := newTestVault(t)
	require.NoError(t, v.WriteToken("alice", vault.NewToken("alice", time.Now())))

	tokenFile := filepath.Join(baseDir, "alice", vault.TokenFileName)
	require.NoError(t, os.WriteFile(tokenFile, []byte("short"), 0o600))

	_, err := v.ReadToken("alice")
	require.ErrorIs(t, err, vault.ErrCorruptToken)
}

func TestVault_ReadToken_RotatedKey(t *testing.T) {
	t.Parallel()

	v, baseDir := newTestVault(t)
	require.NoError(t, v.WriteToken("alice", vault.NewToken("alice", time.Now())))

	require.NoError(t, os.Remove(filepath.Join(baseDir, keystore.FileName)))

	_, err := v.ReadToken("alice")
	require.ErrorIs(t, err, vault.ErrCorruptToken)
}

func TestVault_ReadToken_Missing(t *testing.T) {
	t.Parallel()

	v, _ := newTestVault(t)

	_, err := v.ReadToken("nobody")
	require.ErrorIs(t, err, vault.ErrTokenNotFound)
}

func TestVault_IsAuthenticated(t *testing.T) {
	t.Parallel()

	v, baseDir := newTestVault(t)

	ok, err := v.IsAuthenticated("alice")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, v.EnsureUser("alice"))
	ok, err = v.IsAuthenticated("alice")
	require.NoError(t, err)
	assert.False(t, ok)

	// Existence only: garbage still counts.
	require.NoError(t, os.WriteFile(filepath.Join(baseDir, "alice", vault.TokenFileName), []byte("garbage"), 0o600))
	ok, err = v.IsAuthenticated("alice")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVault_ClearUser(t *testing.T) {
	t.Parallel()

	t.Run("removes token and empty directory", func(t *testing.T) {
		t.Parallel()

		v, baseDir := newTestVault(t)
		require.NoError(t, v.WriteToken("alice", vault.NewToken("alice", time.Now())))

		removed, err := v.ClearUser("alice")
		require.NoError(t, err)
		assert.True(t, removed)

		ok, err := v.IsAuthenticated("alice")
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = os.Stat(filepath.Join(baseDir, "alice"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("keeps non-empty directory", func(t *testing.T) {
		t.Parallel()

		v, baseDir := newTestVault(t)
		require.NoError(t, v.WriteToken("alice", vault.NewToken("alice", time.Now())))
		require.NoError(t, os.WriteFile(filepath.Join(baseDir, "alice", "notes.txt"), []byte("x"), 0o600))

		removed, err := v.ClearUser("alice")
		require.NoError(t, err)
		assert.True(t, removed)

		_, err = os.Stat(filepath.Join(baseDir, "alice", "notes.txt"))
		assert.NoError(t, err)
	})

	t.Run("nothing to clear", func(t *testing.T) {
		t.Parallel()

		v, _ := newTestVault(t)

		removed, err := v.ClearUser("ghost")
		require.NoError(t, err)
		assert.False(t, removed)

		ok, err := v.IsAuthenticated("ghost")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestVault_DeleteToken_KeepsDirectory(t *testing.T) {
	t.Parallel()

	v, baseDir := newTestVault(t)
	require.NoError(t, v.WriteToken("alice", vault.NewToken("alice", time.Now())))

	require.NoError(t, v.DeleteToken("alice"))
	require.NoError(t, v.DeleteToken("alice"))

	ok, err := v.IsAuthenticated("alice")
	require.NoError(t, err)
	assert.False(t, ok)

	info, err := os.Stat(filepath.Join(baseDir, "alice"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestVault_Users(t *testing.T) {
	t.Parallel()

	v, baseDir := newTestVault(t)

	require.NoError(t, v.WriteToken("bob", vault.NewToken("bob", time.Now())))
	require.NoError(t, v.EnsureUser("alice"))
	require.NoError(t, os.WriteFile(filepath.Join(baseDir, "default_user"), []byte("bob"), 0o600))

	users, err := v.Users()
	require.NoError(t, err)

	// key.bin and default_user are files, not users.
	assert.Equal(t, []vault.UserState{
		{Name: "alice", Authenticated: false},
		{Name: "bob", Authenticated: true},
	}, users)
}
