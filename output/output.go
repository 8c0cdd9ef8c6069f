// Package output renders command results for people or for programs.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sagarc03/diskcli/backend"
	"github.com/sagarc03/diskcli/listing"
	"github.com/sagarc03/diskcli/session"
	"github.com/sagarc03/diskcli/vault"
)

// Operations named in OpError.
const (
	OpLogin          = "login"
	OpLogout         = "logout"
	OpSetDefaultUser = "set-default-user"
	OpUpload         = "upload"
	OpDownload       = "download"
	OpList           = "list"
	OpUsers          = "users"
)

// OpError is a failed command with the user it acted for.
type OpError struct {
	Op   string
	User string
	Err  error
}

func (e *OpError) Error() string {
	if e.User == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + " " + e.User + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Transfer describes an upload or download.
type Transfer struct {
	User       string `json:"user"`
	LocalPath  string `json:"local_path"`
	RemotePath string `json:"remote_path"`
}

// Formatter formats results for output.
type Formatter interface {
	FormatLogin(w io.Writer, user string) error
	FormatLogout(w io.Writer, user string, removed bool) error
	FormatDefaultUser(w io.Writer, user string) error
	FormatUploadStart(w io.Writer, t *Transfer) error
	FormatUpload(w io.Writer, t *Transfer) error
	FormatDownloadStart(w io.Writer, t *Transfer) error
	FormatDownload(w io.Writer, t *Transfer) error
	FormatList(w io.Writer, dir string, entries []listing.Entry) error
	FormatUsers(w io.Writer, users []vault.UserState, defaultUser string) error
	FormatError(w io.Writer, err error) error
}

// NewFormatter returns the appropriate formatter based on flags.
func NewFormatter(jsonOutput, quiet bool, nameWidth int) Formatter {
	if jsonOutput {
		return &JSONFormatter{}
	}
	return &HumanFormatter{Quiet: quiet, NameWidth: nameWidth}
}

// HumanFormatter outputs human-readable text.
type HumanFormatter struct {
	Quiet bool
	// NameWidth fixes the name column of listings; zero sizes it to fit.
	NameWidth int
}

// FormatLogin formats a successful login.
func (f *HumanFormatter) FormatLogin(w io.Writer, user string) error {
	if !f.Quiet {
		_, _ = fmt.Fprintf(w, "✅ 用户 %s 登录成功\n", user)
	}
	return nil
}

// FormatLogout formats a logout.
func (f *HumanFormatter) FormatLogout(w io.Writer, user string, removed bool) error {
	if f.Quiet {
		return nil
	}
	if removed {
		_, _ = fmt.Fprintf(w, "✅ 用户 %s 已成功登出\n", user)
	} else {
		_, _ = fmt.Fprintf(w, "ℹ️  用户 %s 没有认证信息需要清除\n", user)
	}
	return nil
}

// FormatDefaultUser formats a changed default user.
func (f *HumanFormatter) FormatDefaultUser(w io.Writer, user string) error {
	if !f.Quiet {
		_, _ = fmt.Fprintf(w, "✅ 默认用户已设置为 %s\n", user)
	}
	return nil
}

// FormatUploadStart announces an upload.
func (f *HumanFormatter) FormatUploadStart(w io.Writer, t *Transfer) error {
	if !f.Quiet {
		_, _ = fmt.Fprintf(w, "📤 正在上传 %s 到 %s...\n", t.LocalPath, t.RemotePath)
	}
	return nil
}

// FormatUpload formats a finished upload.
func (f *HumanFormatter) FormatUpload(w io.Writer, t *Transfer) error {
	if !f.Quiet {
		_, _ = fmt.Fprintf(w, "✅ 上传成功: %s → %s\n", t.LocalPath, t.RemotePath)
	}
	return nil
}

// FormatDownloadStart announces a download.
func (f *HumanFormatter) FormatDownloadStart(w io.Writer, t *Transfer) error {
	if !f.Quiet {
		_, _ = fmt.Fprintf(w, "📥 正在下载 %s 到 %s...\n", t.RemotePath, t.LocalPath)
	}
	return nil
}

// FormatDownload formats a finished download.
func (f *HumanFormatter) FormatDownload(w io.Writer, t *Transfer) error {
	if !f.Quiet {
		_, _ = fmt.Fprintf(w, "✅ 下载成功: %s → %s\n", t.RemotePath, t.LocalPath)
	}
	return nil
}

// FormatList formats a directory listing as a table.
func (f *HumanFormatter) FormatList(w io.Writer, dir string, entries []listing.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, listing.EmptyMessage(dir))
		return err
	}
	return listing.Table{NameWidth: f.NameWidth}.Render(w, dir, entries)
}

// FormatUsers formats the known users. The default user is marked with *.
func (f *HumanFormatter) FormatUsers(w io.Writer, users []vault.UserState, defaultUser string) error {
	if len(users) == 0 {
		_, _ = fmt.Fprintln(w, "ℹ️  没有已知用户")
		return nil
	}

	nameW := listing.Width("用户")
	for _, u := range users {
		nameW = max(nameW, listing.Width(u.Name))
	}

	_, _ = fmt.Fprintf(w, "  %s  %s\n", listing.Pad("用户", nameW), "状态")
	_, _ = fmt.Fprintf(w, "  %s  %s\n", strings.Repeat("-", nameW), strings.Repeat("-", 6))

	for _, u := range users {
		marker := " "
		if u.Name == defaultUser {
			marker = "*"
		}
		state := "未登录"
		if u.Authenticated {
			state = "已登录"
		}
		_, _ = fmt.Fprintf(w, "%s %s  %s\n", marker, listing.Pad(u.Name, nameW), state)
	}
	return nil
}

// FormatError formats an error as human-readable text.
func (f *HumanFormatter) FormatError(w io.Writer, err error) error {
	_, _ = fmt.Fprintf(w, "❌ %s\n", Describe(err))
	return nil
}

// Describe returns the message shown to a person for err.
func Describe(err error) string {
	var op, user string
	var opErr *OpError
	if errors.As(err, &opErr) {
		op, user = opErr.Op, opErr.User
		err = opErr.Err
	}

	code, hasCode := backend.Code(err)

	switch {
	case errors.Is(err, session.ErrNoUserSpecified):
		return "未指定用户，请使用 --user 参数或先运行 set-default-user 设置默认用户"
	case errors.Is(err, session.ErrUserNotAuthenticated):
		return fmt.Sprintf("用户 %s 未认证，请先使用 'login' 命令进行授权", user)
	case errors.Is(err, session.ErrInvalidCredential):
		return fmt.Sprintf("用户 %s 认证信息无效", user)
	case errors.Is(err, session.ErrSessionExpired):
		return fmt.Sprintf("用户 %s 的授权已过期，请重新登录", user)
	case errors.Is(err, session.ErrAuthenticationFailed):
		if hasCode {
			return fmt.Sprintf("用户 %s 授权失败，错误代码: %d", user, code)
		}
		return fmt.Sprintf("用户 %s 授权失败: %v", user, err)
	case errors.Is(err, vault.ErrCorruptToken):
		return fmt.Sprintf("读取用户 %s 认证信息时发生错误: %v", user, err)
	case errors.Is(err, vault.ErrInvalidUser):
		return fmt.Sprintf("无效的用户名: %v", err)
	case errors.Is(err, backend.ErrInvalidPath):
		return fmt.Sprintf("无效的远程路径: %v", err)
	}

	switch op {
	case OpUpload:
		if hasCode {
			return fmt.Sprintf("上传失败，错误代码: %d", code)
		}
		return fmt.Sprintf("上传时发生错误: %v", err)
	case OpDownload:
		if hasCode {
			return fmt.Sprintf("下载失败，错误代码: %d", code)
		}
		return fmt.Sprintf("下载时发生错误: %v", err)
	case OpList:
		if hasCode {
			return fmt.Sprintf("列出目录失败，错误代码: %d", code)
		}
		return fmt.Sprintf("列出目录时发生错误: %v", err)
	case OpLogin:
		return fmt.Sprintf("登录失败: %v", err)
	case OpLogout:
		return fmt.Sprintf("登出失败: %v", err)
	}
	return err.Error()
}

// JSONFormatter outputs JSON.
type JSONFormatter struct{}

// FormatLogin formats a successful login as JSON.
func (f *JSONFormatter) FormatLogin(w io.Writer, user string) error {
	return writeJSON(w, struct {
		User          string `json:"user"`
		Authenticated bool   `json:"authenticated"`
	}{User: user, Authenticated: true})
}

// FormatLogout formats a logout as JSON.
func (f *JSONFormatter) FormatLogout(w io.Writer, user string, removed bool) error {
	return writeJSON(w, struct {
		User    string `json:"user"`
		Removed bool   `json:"removed"`
	}{User: user, Removed: removed})
}

// FormatDefaultUser formats a changed default user as JSON.
func (f *JSONFormatter) FormatDefaultUser(w io.Writer, user string) error {
	return writeJSON(w, struct {
		DefaultUser string `json:"default_user"`
	}{DefaultUser: user})
}

// FormatUploadStart writes nothing; JSON output is one document per command.
func (f *JSONFormatter) FormatUploadStart(io.Writer, *Transfer) error {
	return nil
}

// FormatUpload formats a finished upload as JSON.
func (f *JSONFormatter) FormatUpload(w io.Writer, t *Transfer) error {
	return writeJSON(w, t)
}

// FormatDownloadStart writes nothing; JSON output is one document per command.
func (f *JSONFormatter) FormatDownloadStart(io.Writer, *Transfer) error {
	return nil
}

// FormatDownload formats a finished download as JSON.
func (f *JSONFormatter) FormatDownload(w io.Writer, t *Transfer) error {
	return writeJSON(w, t)
}

// FormatList formats a directory listing as JSON.
func (f *JSONFormatter) FormatList(w io.Writer, dir string, entries []listing.Entry) error {
	if entries == nil {
		entries = []listing.Entry{}
	}
	return writeJSON(w, struct {
		Dir     string          `json:"dir"`
		Entries []listing.Entry `json:"entries"`
	}{Dir: dir, Entries: entries})
}

// FormatUsers formats the known users as JSON.
func (f *JSONFormatter) FormatUsers(w io.Writer, users []vault.UserState, defaultUser string) error {
	type jsonUser struct {
		Name          string `json:"name"`
		Authenticated bool   `json:"authenticated"`
		Default       bool   `json:"default,omitempty"`
	}

	output := struct {
		Users []jsonUser `json:"users"`
	}{
		Users: make([]jsonUser, len(users)),
	}
	for i, u := range users {
		output.Users[i] = jsonUser{
			Name:          u.Name,
			Authenticated: u.Authenticated,
			Default:       u.Name == defaultUser,
		}
	}
	return writeJSON(w, output)
}

// FormatError formats an error as JSON.
func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	output := struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Op      string `json:"op,omitempty"`
		User    string `json:"user,omitempty"`
		Code    *int   `json:"code,omitempty"`
	}{
		Error:   err.Error(),
		Message: Describe(err),
	}

	var opErr *OpError
	if errors.As(err, &opErr) {
		output.Op = opErr.Op
		output.User = opErr.User
	}
	if code, ok := backend.Code(err); ok {
		output.Code = &code
	}
	return writeJSON(w, output)
}

// writeJSON writes a value as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
