package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"os/exec"
	"path/filepath"
	"strings"

	ffexp "github.com/isseis/go-formfill-exporter/formfill_exporter"
	sw "github.com/isseis/go-formfill-exporter/storage_writer"
)

// terminalPrompter asks questions on a line-oriented terminal. Preset answers
// given on the command line are used without asking.
type terminalPrompter struct {
	in  *bufio.Reader
	out io.Writer

	presetAction  *ffexp.Action
	assumeConfirm bool
}

func newTerminalPrompter(in io.Reader, out io.Writer) *terminalPrompter {
	return &terminalPrompter{in: bufio.NewReader(in), out: out}
}

// ask prints question and returns the trimmed, lower-cased answer.
func (p *terminalPrompter) ask(ctx context.Context, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(p.out, question)
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read answer: %w", err)
	}
	return strings.ToLower(strings.TrimSpace(line)), nil
}

func (p *terminalPrompter) ChooseAction(ctx context.Context, fileName string) (ffexp.Action, error) {
	if p.presetAction != nil {
		return *p.presetAction, nil
	}
	for {
		answer, err := p.ask(ctx, fmt.Sprintf("%s is ready. [s]ave, s[h]are or [c]ancel? ", fileName))
		if err != nil {
			return ffexp.ActionCancel, err
		}
		switch answer {
		case "s", "save":
			return ffexp.ActionSave, nil
		case "h", "share":
			return ffexp.ActionShare, nil
		case "c", "cancel", "":
			return ffexp.ActionCancel, nil
		}
	}
}

func (p *terminalPrompter) ChooseFormat(ctx context.Context, documentName string) (ffexp.Format, bool, error) {
	for {
		answer, err := p.ask(ctx, fmt.Sprintf("Export %q as [p]df, [j]pg or [c]ancel? ", documentName))
		if err != nil {
			return "", false, err
		}
		switch answer {
		case "p", "pdf":
			return ffexp.FormatPDF, true, nil
		case "j", "jpg":
			return ffexp.FormatJPG, true, nil
		case "c", "cancel", "":
			return "", false, nil
		}
	}
}

func (p *terminalPrompter) ConfirmMultiPageSave(ctx context.Context, documentName string, pages int) (bool, error) {
	if p.assumeConfirm {
		return true, nil
	}
	answer, err := p.ask(ctx, fmt.Sprintf("%q has %d pages; each page is saved as a separate image. Save all? [y/N] ", documentName, pages))
	if err != nil {
		return false, err
	}
	return answer == "y" || answer == "yes", nil
}

func (p *terminalPrompter) Notify(ctx context.Context, message string) {
	fmt.Fprintln(p.out, message)
}

// PickDirectory asks for the directory exports are saved into. An empty
// answer cancels.
func (p *terminalPrompter) PickDirectory(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(p.out, "Folder to save exports into (empty to cancel): ")
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return "", sw.ErrGrantCancelled
		}
		return "", fmt.Errorf("read folder: %w", err)
	}
	dir := strings.TrimSpace(line)
	if dir == "" {
		return "", sw.ErrGrantCancelled
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve folder: %w", err)
	}
	return abs, nil
}

// commandSharer hands files to an external command, e.g. "xdg-open".
type commandSharer struct {
	command []string
}

func newCommandSharer(command string) *commandSharer {
	return &commandSharer{command: strings.Fields(command)}
}

func (s *commandSharer) Available() bool {
	return len(s.command) > 0
}

func (s *commandSharer) Share(ctx context.Context, uri, mimeType, title string) error {
	if !s.Available() {
		return sw.ErrSharingUnavailable
	}
	return runCommand(ctx, s.command, localPath(uri))
}

// commandPrinter prints through an external command, e.g. "lp".
type commandPrinter struct {
	command []string
}

func newCommandPrinter(command string) *commandPrinter {
	return &commandPrinter{command: strings.Fields(command)}
}

func (p *commandPrinter) Print(ctx context.Context, path, documentName string) error {
	if len(p.command) == 0 {
		return ffexp.ErrPrintingUnavailable
	}
	return runCommand(ctx, p.command, path)
}

// runCommand runs command with path appended as the last argument.
func runCommand(ctx context.Context, command []string, path string) error {
	args := append(append([]string(nil), command[1:]...), path)
	cmd := exec.CommandContext(ctx, command[0], args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", command[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// localPath converts a file:// URI into a filesystem path.
func localPath(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return uri
	}
	return filepath.FromSlash(u.Path)
}
