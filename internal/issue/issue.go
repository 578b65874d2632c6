// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	NotRootId Id = iota + 1
	ToolNotFoundId
	ConfigLoadFailedId
	CommandFailedId
	UnsupportedDistroId
	InvalidRemotePathId
	NoPreviousTransferId
	SSHAgentNotRunningId
	InvalidUsernameId
	FirewallInactiveId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n"
		extraMd += "## See also:\n"
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "](" + string(link) + ")\n"
		}
		for _, link := range i.extLinks {
			extraMd += "- [" + string(link) + "](" + string(link) + ")\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	notRootIssue = &Issue{
		id: NotRootId,
		mdMsg: `
# This command must be run as root!

The operation changes system users, packages, services or firewall rules.

## Things you can try:
- Re-run the same command with sudo:
~~~
$ sudo hostkit <command>
~~~
- Preview what would happen without privileges:
~~~
$ hostkit --dry-run <command>
~~~`,
	}

	toolNotFoundIssue = &Issue{
		id: ToolNotFoundId,
		mdMsg: `
# Required tool not found!

hostkit wraps existing system utilities and could not find one of them in your PATH.

## Things you can try:
- Install the tool with your package manager:
~~~
$ hostkit pkg install <tool>
~~~
- Check your PATH:
~~~
$ echo $PATH
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

## Things you can try:
- Check the CUE syntax of your configuration file
- Show the effective configuration:
~~~
$ hostkit config show
~~~
- Recreate the default configuration:
~~~
$ hostkit config init
~~~`,
	}

	commandFailedIssue = &Issue{
		id: CommandFailedId,
		mdMsg: `
# An external command failed!

The wrapped tool exited with a non-zero status. Its error output is shown above.

## Things you can try:
- Re-run with verbose output to see the exact command line:
~~~
$ hostkit --verbose <command>
~~~
- Preview the commands without running them:
~~~
$ hostkit --dry-run <command>
~~~`,
	}

	unsupportedDistroIssue = &Issue{
		id: UnsupportedDistroId,
		mdMsg: `
# Unsupported Linux distribution!

hostkit knows how to drive apt (Debian, Ubuntu), dnf (Fedora, RHEL, CentOS)
and pacman (Arch, Manjaro).

## Things you can try:
- Check the ID and ID_LIKE fields of /etc/os-release
- Install the packages manually and re-run the command`,
	}

	invalidRemotePathIssue = &Issue{
		id: InvalidRemotePathId,
		mdMsg: `
# Invalid transfer endpoints!

A remote path has the form ` + "`user@host:/path`" + `. rsync cannot copy
directly between two remote hosts.

## Things you can try:
- Make one side of the transfer a local path
- Quote paths that contain spaces`,
	}

	noPreviousTransferIssue = &Issue{
		id: NoPreviousTransferId,
		mdMsg: `
# No previous transfer recorded!

` + "`hostkit transfer resume`" + ` re-runs the last transfer, but no record was found.

## Things you can try:
- Start a transfer first:
~~~
$ hostkit transfer ./src user@host:/backup
~~~`,
	}

	sshAgentNotRunningIssue = &Issue{
		id: SSHAgentNotRunningId,
		mdMsg: `
# ssh-agent is not running!

SSH_AUTH_SOCK is not set in this shell.

## Things you can try:
- Start an agent for the current shell:
~~~
$ eval "$(ssh-agent -s)"
~~~
- Persist agent startup in your shell rc file:
~~~
$ hostkit ssh-key add --persist
~~~`,
	}

	invalidUsernameIssue = &Issue{
		id: InvalidUsernameId,
		mdMsg: `
# Invalid FTP username!

## Rules:
- 3 to 32 characters
- must start with a letter
- letters, digits, hyphens and underscores only
- root, admin, administrator, ftp and test are reserved`,
	}

	firewallInactiveIssue = &Issue{
		id: FirewallInactiveId,
		mdMsg: `
# ufw is inactive!

Rules can be added, but they do not filter traffic until ufw is enabled.

## Things you can try:
~~~
$ sudo ufw enable
~~~`,
	}

	issues = map[Id]*Issue{
		notRootIssue.Id():            notRootIssue,
		toolNotFoundIssue.Id():       toolNotFoundIssue,
		configLoadFailedIssue.Id():   configLoadFailedIssue,
		commandFailedIssue.Id():      commandFailedIssue,
		unsupportedDistroIssue.Id():  unsupportedDistroIssue,
		invalidRemotePathIssue.Id():  invalidRemotePathIssue,
		noPreviousTransferIssue.Id(): noPreviousTransferIssue,
		sshAgentNotRunningIssue.Id(): sshAgentNotRunningIssue,
		invalidUsernameIssue.Id():    invalidUsernameIssue,
		firewallInactiveIssue.Id():   firewallInactiveIssue,
	}
)

// Values returns all catalogue entries ordered by Id.
func Values() []*Issue {
	values := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		values = append(values, i)
	}
	slices.SortFunc(values, func(a, b *Issue) int { return int(a.id - b.id) })
	return values
}

func Get(id Id) *Issue {
	return issues[id]
}
