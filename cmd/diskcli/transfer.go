package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/diskcli/listing"
	"github.com/sagarc03/diskcli/output"
)

func newUploadCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <local-file> <remote-file>",
		Short: "Upload a file",
		Long: `Upload a local file to a remote path.

Examples:
  diskcli upload --user alice ./report.pdf /documents/report.pdf
  diskcli upload ./image.jpg /photos/vacation/image.jpg`,
		Args: cobra.ExactArgs(2),
		RunE: a.runUpload,
	}
	addUserFlag(cmd, a, "user to act for (default: the default user)")
	return cmd
}

func (a *app) runUpload(cmd *cobra.Command, args []string) error {
	localPath, remotePath := args[0], args[1]

	info, err := os.Stat(localPath)
	if err != nil {
		return a.fail(output.OpUpload, a.user, err)
	}
	if !info.Mode().IsRegular() {
		return a.fail(output.OpUpload, a.user, fmt.Errorf("%s is not a regular file", localPath))
	}

	e, err := a.openEnv(cmd)
	if err != nil {
		return a.fail(output.OpUpload, a.user, err)
	}
	defer func() { _ = e.Close() }()

	s, err := e.resolver.Resolve(cmd.Context(), a.user, false)
	if err != nil {
		return a.fail(output.OpUpload, e.displayUser(a.user), err)
	}

	t := &output.Transfer{User: s.User, LocalPath: localPath, RemotePath: remotePath}
	_ = a.out.FormatUploadStart(a.stdout, t)

	if err := s.Client.Upload(cmd.Context(), localPath, remotePath); err != nil {
		return a.fail(output.OpUpload, s.User, err)
	}

	return a.out.FormatUpload(a.stdout, t)
}

func newDownloadCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download <remote-file> <local-file>",
		Short: "Download a file",
		Long: `Download a remote file to a local path. Missing parent directories
of the local path are created.

Examples:
  diskcli download --user alice /documents/report.pdf ./downloads/report.pdf`,
		Args: cobra.ExactArgs(2),
		RunE: a.runDownload,
	}
	addUserFlag(cmd, a, "user to act for (default: the default user)")
	return cmd
}

func (a *app) runDownload(cmd *cobra.Command, args []string) error {
	remotePath, localPath := args[0], args[1]

	e, err := a.openEnv(cmd)
	if err != nil {
		return a.fail(output.OpDownload, a.user, err)
	}
	defer func() { _ = e.Close() }()

	s, err := e.resolver.Resolve(cmd.Context(), a.user, false)
	if err != nil {
		return a.fail(output.OpDownload, e.displayUser(a.user), err)
	}

	t := &output.Transfer{User: s.User, LocalPath: localPath, RemotePath: remotePath}
	_ = a.out.FormatDownloadStart(a.stdout, t)

	if err := s.Client.Download(cmd.Context(), remotePath, localPath); err != nil {
		return a.fail(output.OpDownload, s.User, err)
	}

	return a.out.FormatDownload(a.stdout, t)
}

func newListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [remote-dir]",
		Short: "List a remote directory",
		Long: `List a remote directory (default /).

Names are aligned by terminal display width, so mixed wide and narrow
characters line up. Set list.name_width to fix the name column and
truncate longer names.

Examples:
  diskcli list --user alice
  diskcli list /documents
  diskcli list --json /photos/vacation`,
		Args: cobra.MaximumNArgs(1),
		RunE: a.runList,
	}
	addUserFlag(cmd, a, "user to act for (default: the default user)")
	return cmd
}

func (a *app) runList(cmd *cobra.Command, args []string) error {
	dir := "/"
	if len(args) > 0 {
		dir = args[0]
	}

	e, err := a.openEnv(cmd)
	if err != nil {
		return a.fail(output.OpList, a.user, err)
	}
	defer func() { _ = e.Close() }()

	s, err := e.resolver.Resolve(cmd.Context(), a.user, false)
	if err != nil {
		return a.fail(output.OpList, e.displayUser(a.user), err)
	}

	raw, err := s.Client.List(cmd.Context(), dir)
	if err != nil {
		return a.fail(output.OpList, s.User, err)
	}

	return a.out.FormatList(a.stdout, dir, listing.Parse(raw))
}
