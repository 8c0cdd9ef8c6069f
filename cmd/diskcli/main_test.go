package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/diskcli/backend"
	"github.com/sagarc03/diskcli/backend/backendtest"
	"github.com/sagarc03/diskcli/config"
	"github.com/sagarc03/diskcli/session"
	"github.com/sagarc03/diskcli/vault"
)

const sampleListing = `/docs ($t $f $s $m $d):
D reports 0 2024-01-02, 03:04:05
F a.txt 100 2024-01-02, 03:04:05 abcd1234
F 报告.pdf 2048 2024-02-03, 10:11:12 ffff0000
`

type harness struct {
	t      *testing.T
	home   string
	fake   *backendtest.Fake
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		t:      t,
		home:   filepath.Join(t.TempDir(), ".diskcli"),
		fake:   &backendtest.Fake{},
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
}

func (h *harness) run(args ...string) error {
	h.t.Helper()

	h.stdout.Reset()
	h.stderr.Reset()

	a := newApp(h.stdout, h.stderr)
	a.newBackend = func(*config.Config, *slog.Logger) (backend.Client, error) {
		return h.fake, nil
	}

	cmd := newRootCmd(a)
	cmd.SetArgs(append([]string{"--home", h.home}, args...))
	return cmd.ExecuteContext(context.Background())
}

func (h *harness) login(user string) {
	h.t.Helper()
	require.NoError(h.t, h.run("login", "--user", user))
}

func requireExit(t *testing.T, err error) {
	t.Helper()
	var ee *exitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 1, ee.code)
}

func TestLogin(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("login", "--user", "alice"))
	assert.Equal(t, "✅ 用户 alice 登录成功\n", h.stdout.String())
	assert.Equal(t, []string{"ClearAuthorization", "Authorize", "List"}, h.fake.Methods())

	_, err := os.Stat(filepath.Join(h.home, "alice", vault.TokenFileName))
	require.NoError(t, err)

	// Logging in again reuses the token after a probe.
	require.NoError(t, h.run("login", "--user", "alice"))
	assert.Equal(t, []string{"ClearAuthorization", "Authorize", "List", "List"}, h.fake.Methods())
}

func TestLogin_Failure(t *testing.T) {
	h := newHarness(t)
	h.fake.AuthorizeErr = errors.New("consent denied")

	err := h.run("login", "--user", "alice")
	requireExit(t, err)
	require.ErrorIs(t, err, session.ErrAuthenticationFailed)
	assert.Contains(t, h.stderr.String(), "❌ 用户 alice 授权失败")
	assert.Empty(t, h.stdout.String())
}

func TestNoUserSpecified(t *testing.T) {
	for _, args := range [][]string{
		{"login"},
		{"logout"},
		{"list"},
		{"download", "/a", "a"},
	} {
		t.Run(args[0], func(t *testing.T) {
			h := newHarness(t)

			err := h.run(args...)
			requireExit(t, err)
			require.ErrorIs(t, err, session.ErrNoUserSpecified)
			assert.Contains(t, h.stderr.String(), "未指定用户")
			assert.Empty(t, h.fake.Calls())
		})
	}
}

func TestSetDefaultUser(t *testing.T) {
	h := newHarness(t)

	require.Error(t, h.run("set-default-user"))

	require.NoError(t, h.run("set-default-user", "--user", "alice"))
	assert.Equal(t, "✅ 默认用户已设置为 alice\n", h.stdout.String())

	data, err := os.ReadFile(filepath.Join(h.home, session.DefaultUserFileName))
	require.NoError(t, err)
	assert.Equal(t, "alice", string(data))

	// Commands without --user now act for alice.
	require.NoError(t, h.run("login"))
	assert.Equal(t, "✅ 用户 alice 登录成功\n", h.stdout.String())
}

func TestSetDefaultUser_Invalid(t *testing.T) {
	h := newHarness(t)

	err := h.run("set-default-user", "--user", "../evil")
	requireExit(t, err)
	require.ErrorIs(t, err, vault.ErrInvalidUser)
	assert.Contains(t, h.stderr.String(), "无效的用户名")
}

func TestList(t *testing.T) {
	h := newHarness(t)
	h.login("alice")
	h.fake.ListText = sampleListing

	require.NoError(t, h.run("list", "--user", "alice", "/docs"))

	out := h.stdout.String()
	assert.Contains(t, out, "📁 目录: /docs")
	assert.Contains(t, out, "文件名")
	assert.Contains(t, out, "报告.pdf")
	assert.Contains(t, out, "2.00 KB")

	calls := h.fake.Calls()
	last := calls[len(calls)-1]
	assert.Equal(t, backendtest.Call{Method: "List", Args: []string{"/docs"}}, last)
}

func TestList_DefaultsToRoot(t *testing.T) {
	h := newHarness(t)
	h.login("alice")

	require.NoError(t, h.run("list", "--user", "alice"))
	assert.Equal(t, "📁 目录 / 为空\n", h.stdout.String())
}

func TestList_JSON(t *testing.T) {
	h := newHarness(t)
	h.login("alice")
	h.fake.ListText = sampleListing

	require.NoError(t, h.run("--json", "list", "--user", "alice", "/docs"))

	var got struct {
		Dir     string `json:"dir"`
		Entries []struct {
			Name string `json:"name"`
			Kind string `json:"kind"`
			Size uint64 `json:"size"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &got))
	assert.Equal(t, "/docs", got.Dir)
	require.Len(t, got.Entries, 3)
	assert.Equal(t, "directory", got.Entries[0].Kind)
	assert.Equal(t, uint64(2048), got.Entries[2].Size)
}

func TestList_BackendStatus(t *testing.T) {
	h := newHarness(t)
	h.login("alice")
	h.fake.ListFunc = func(dir string) (string, error) {
		if dir == "/" {
			return "/ ($t $f $s $m $d):\n", nil
		}
		return "", &backend.StatusError{Op: "list", Code: 31066}
	}

	err := h.run("list", "--user", "alice", "/missing")
	requireExit(t, err)
	assert.Contains(t, h.stderr.String(), "❌ 列出目录失败，错误代码: 31066")

	// A failed listing is not a failed session.
	_, statErr := os.Stat(filepath.Join(h.home, "alice", vault.TokenFileName))
	require.NoError(t, statErr)
}

func TestList_NotAuthenticated(t *testing.T) {
	h := newHarness(t)

	err := h.run("list", "--user", "bob")
	requireExit(t, err)
	require.ErrorIs(t, err, session.ErrUserNotAuthenticated)
	assert.Contains(t, h.stderr.String(), "用户 bob 未认证，请先使用 'login' 命令进行授权")
}

func TestSessionExpired(t *testing.T) {
	h := newHarness(t)
	h.login("alice")
	h.fake.ListErr = &backend.StatusError{Op: "list", Code: 111}

	err := h.run("upload", "--user", "alice", writeLocalFile(t, "x"), "/x")
	requireExit(t, err)
	require.ErrorIs(t, err, session.ErrSessionExpired)
	assert.Contains(t, h.stderr.String(), "用户 alice 的授权已过期，请重新登录")

	_, statErr := os.Stat(filepath.Join(h.home, "alice", vault.TokenFileName))
	assert.True(t, os.IsNotExist(statErr))
}

func writeLocalFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "local.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestUpload(t *testing.T) {
	h := newHarness(t)
	h.login("alice")
	local := writeLocalFile(t, "hello")

	require.NoError(t, h.run("upload", "--user", "alice", local, "/docs/local.txt"))
	assert.Contains(t, h.stdout.String(), "📤 正在上传 "+local+" 到 /docs/local.txt...")
	assert.Contains(t, h.stdout.String(), "✅ 上传成功: "+local+" → /docs/local.txt")

	calls := h.fake.Calls()
	assert.Equal(t, backendtest.Call{Method: "Upload", Args: []string{local, "/docs/local.txt"}}, calls[len(calls)-1])
}

func TestUpload_RejectsNonRegularFile(t *testing.T) {
	h := newHarness(t)
	h.login("alice")
	before := len(h.fake.Calls())

	err := h.run("upload", "--user", "alice", t.TempDir(), "/x")
	requireExit(t, err)
	assert.Contains(t, h.stderr.String(), "not a regular file")

	err = h.run("upload", "--user", "alice", filepath.Join(t.TempDir(), "missing"), "/x")
	requireExit(t, err)

	assert.Len(t, h.fake.Calls(), before)
}

func TestUpload_BackendStatus(t *testing.T) {
	h := newHarness(t)
	h.login("alice")
	h.fake.UploadErr = &backend.StatusError{Op: "upload", Code: 31064}

	err := h.run("upload", "--user", "alice", writeLocalFile(t, "x"), "/x")
	requireExit(t, err)
	assert.Contains(t, h.stderr.String(), "❌ 上传失败，错误代码: 31064")
}

func TestUpload_Quiet(t *testing.T) {
	h := newHarness(t)
	h.login("alice")

	require.NoError(t, h.run("-q", "upload", "--user", "alice", writeLocalFile(t, "x"), "/x"))
	assert.Empty(t, h.stdout.String())
}

func TestDownload(t *testing.T) {
	h := newHarness(t)
	h.login("alice")
	require.NoError(t, h.run("set-default-user", "--user", "alice"))

	dest := filepath.Join(t.TempDir(), "out", "a.txt")
	require.NoError(t, h.run("download", "/docs/a.txt", dest))
	assert.Contains(t, h.stdout.String(), "✅ 下载成功: /docs/a.txt → "+dest)

	calls := h.fake.Calls()
	assert.Equal(t, backendtest.Call{Method: "Download", Args: []string{"/docs/a.txt", dest}}, calls[len(calls)-1])
}

func TestDownload_Error(t *testing.T) {
	h := newHarness(t)
	h.login("alice")
	h.fake.DownloadErr = errors.New("connection reset")

	err := h.run("download", "--user", "alice", "/a", "a")
	requireExit(t, err)
	assert.Contains(t, h.stderr.String(), "❌ 下载时发生错误: connection reset")
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.login("alice")

	require.NoError(t, h.run("logout", "--user", "alice"))
	assert.Equal(t, "✅ 用户 alice 已成功登出\n", h.stdout.String())

	_, err := os.Stat(filepath.Join(h.home, "alice"))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, h.run("logout", "--user", "alice"))
	assert.Equal(t, "ℹ️  用户 alice 没有认证信息需要清除\n", h.stdout.String())

	// Logging out never touches the backend.
	assert.Equal(t, []string{"ClearAuthorization", "Authorize", "List"}, h.fake.Methods())
}

func TestUsers(t *testing.T) {
	h := newHarness(t)
	h.login("alice")
	h.login("bob")
	require.NoError(t, h.run("logout", "--user", "bob"))
	require.NoError(t, h.run("set-default-user", "--user", "carol"))
	require.NoError(t, os.MkdirAll(filepath.Join(h.home, "carol"), 0o700))

	require.NoError(t, h.run("--json", "users"))
	assert.JSONEq(t, `{"users":[
		{"name":"alice","authenticated":true},
		{"name":"carol","authenticated":false,"default":true}
	]}`, h.stdout.String())

	require.NoError(t, h.run("users"))
	assert.Contains(t, h.stdout.String(), "* carol")
	assert.Contains(t, h.stdout.String(), "  alice  已登录")
}

func TestConfigFile_NameWidth(t *testing.T) {
	h := newHarness(t)
	h.login("alice")
	h.fake.ListText = "/ ($t $f $s $m $d):\nF a-very-long-file-name-indeed.txt 1 2024-01-02, 03:04:05 h\n"

	require.NoError(t, os.WriteFile(filepath.Join(h.home, "config.yaml"), []byte("list:\n  name_width: 12\n"), 0o600))

	require.NoError(t, h.run("list", "--user", "alice"))
	assert.Contains(t, h.stdout.String(), "a-very-lo...")
	assert.NotContains(t, h.stdout.String(), "indeed")
}

func TestInvalidConfig(t *testing.T) {
	h := newHarness(t)

	err := h.run("--endpoint", "not a url", "users")
	require.Error(t, err)

	var ee *exitError
	assert.False(t, errors.As(err, &ee))
	assert.Contains(t, err.Error(), "validate config")
}
